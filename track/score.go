package track

import (
	"github.com/chewxy/math32"

	"github.com/courtside-data/playerlock/detect"
	"github.com/courtside-data/playerlock/geom"
)

// scoreCandidate rates how plausibly a detection continues the lock's subject,
// in [0,1]. Weighted components: IoU against the advanced estimate, inverted
// center distance, size agreement, and detector confidence. Candidates close
// to the pre-advance center earn a continuity bonus so the incumbent position
// outranks an equal-looking box farther away.
func (l *Lock) scoreCandidate(d detect.Detection, preCX, preCY float32) float32 {
	cfg := &l.cfg
	current := geom.FromCenter(l.cx, l.cy, l.w, l.h)
	box := d.Box()

	gate := cfg.MaxAssociationDistance * l.gateScale()
	dist := math32.Hypot(d.CenterX-l.cx, d.CenterY-l.cy)
	distScore := math32.Max(0, 1-dist/gate)

	score := cfg.IoUWeight*current.IOU(box) +
		cfg.DistanceWeight*distScore +
		cfg.SizeWeight*current.SizeSimilarity(box) +
		cfg.ConfidenceWeight*d.Confidence

	preDist := math32.Hypot(d.CenterX-preCX, d.CenterY-preCY)
	if preDist < cfg.ContinuityRadius {
		score += cfg.ContinuityBonus * (1 - preDist/cfg.ContinuityRadius)
	}

	if score > 1 {
		return 1
	}
	if score < 0 || !geom.Finite(score) {
		return 0
	}
	return score
}

// gateScale widens the association distance while the subject has been
// missing for a while, mirroring how uncertainty about its position grows.
func (l *Lock) gateScale() float32 {
	switch l.state {
	case StateLost:
		return l.cfg.LostGateScale
	case StateReacquiring:
		return l.cfg.ReacquireGateScale
	}
	return 1
}

// clampVelocity scales a velocity vector down to maxV, preserving direction.
// Non-finite components reset to rest.
func clampVelocity(vx, vy, maxV float32) (float32, float32) {
	if !geom.Finite(vx) || !geom.Finite(vy) {
		return 0, 0
	}
	speed := math32.Hypot(vx, vy)
	if speed <= maxV || speed == 0 {
		return vx, vy
	}
	scale := maxV / speed
	return vx * scale, vy * scale
}
