package detect

import (
	"github.com/chewxy/math32"

	"github.com/courtside-data/playerlock/geom"
)

// Selection describes how the subject is chosen from the first usable frame.
// Exactly one strategy applies, checked in order: explicit detector id, then
// closest center to a user-drawn box, then automatic prominence.
type Selection struct {
	PlayerID string
	Box      *geom.Box
	Auto     bool
}

// Select resolves a selection against one frame's detections. ok is false when
// the frame has no candidate satisfying the strategy; callers normally retry
// on the next frame.
func Select(dets []Detection, sel Selection) (Detection, bool) {
	if len(dets) == 0 {
		return Detection{}, false
	}
	switch {
	case sel.PlayerID != "":
		for _, d := range dets {
			if d.ID == sel.PlayerID {
				return d, true
			}
		}
		return Detection{}, false
	case sel.Box != nil:
		cx, cy := sel.Box.Center()
		best, bestDist := -1, float32(math32.MaxFloat32)
		for i, d := range dets {
			dist := math32.Hypot(d.CenterX-cx, d.CenterY-cy)
			if dist < bestDist {
				best, bestDist = i, dist
			}
		}
		return dets[best], true
	case sel.Auto:
		// Prominence: the biggest confident box is almost always the subject
		// the operator wants when nothing was clicked.
		best, bestScore := -1, float32(-1)
		for i, d := range dets {
			score := d.Width * d.Height * d.Confidence
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		return dets[best], true
	}
	return Detection{}, false
}
