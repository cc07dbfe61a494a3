package track

import (
	"time"

	"github.com/courtside-data/playerlock/geom"
)

// Predict projects the subject's box at timeline position pos without
// mutating any state. Call it at render rate between detector batches; two
// Predicts at the same pos always agree, and Update remains the only mutator.
//
// Positions before the seed return the seed anchor box: the lock never
// extrapolates backward in time. Positions shortly after the newest accepted
// detection interpolate from history; anything else dead-reckons from the
// smoothed state with the step capped at MaxPredictStep.
func (l *Lock) Predict(pos time.Duration) (geom.Box, bool) {
	visible := l.conf >= l.cfg.ConfidenceThreshold
	if pos < l.seedPos {
		return l.seedBox, visible
	}
	if !visible {
		box, _ := l.CurrentBox()
		return box, false
	}

	if box, ok := l.interpolate(pos); ok {
		return box, true
	}

	dt := float32((pos - l.lastUpdatePos).Seconds())
	maxStep := float32(l.cfg.MaxPredictStep.Seconds())
	if dt < 0 {
		dt = 0
	}
	if dt > maxStep {
		dt = maxStep
	}
	cx := geom.Clamp01(l.cx + l.vx*dt)
	cy := geom.Clamp01(l.cy + l.vy*dt)
	return geom.FromCenter(cx, cy, l.w, l.h).Clamp(l.cfg.MinBoxSize), true
}

// interpolate extrapolates from the two newest accepted detections while pos
// sits inside the interpolation window past the newest one. The easing
// weight fades the extrapolation to zero across the window so the box glides
// to a stop instead of overshooting when the next batch runs late.
func (l *Lock) interpolate(pos time.Duration) (geom.Box, bool) {
	if l.hist.len() < 2 {
		return geom.Box{}, false
	}
	newest := l.hist.previous(0)
	prior := l.hist.previous(1)

	ahead := pos - newest.pos
	if ahead < 0 || ahead > l.cfg.InterpolationWindow {
		return geom.Box{}, false
	}
	span := float32((newest.pos - prior.pos).Seconds())
	if span <= 0 {
		return geom.Box{}, false
	}

	hvx := (newest.det.CenterX - prior.det.CenterX) / span
	hvy := (newest.det.CenterY - prior.det.CenterY) / span
	hvx, hvy = clampVelocity(hvx, hvy, l.cfg.MaxVelocity)

	aheadS := float32(ahead.Seconds())
	weight := 1 - aheadS/float32(l.cfg.InterpolationWindow.Seconds())
	cx := geom.Clamp01(newest.det.CenterX + hvx*aheadS*weight)
	cy := geom.Clamp01(newest.det.CenterY + hvy*aheadS*weight)

	// Size stays on the smoothed state; raw history extents are detector
	// noise the smoother already paid to remove.
	return geom.FromCenter(cx, cy, l.w, l.h).Clamp(l.cfg.MinBoxSize), true
}
