package track

import (
	"time"

	"github.com/bmharper/ringbuffer"

	"github.com/courtside-data/playerlock/detect"
)

// histEntry is one accepted raw detection with its timeline position.
type histEntry struct {
	det detect.Detection
	pos time.Duration
}

// history keeps the most recent accepted detections for the interpolating
// predictor. Bounded; the oldest entry is overwritten first.
type history struct {
	ring ringbuffer.RingP[histEntry]
}

func newHistory(size int) *history {
	return &history{ring: ringbuffer.NewRingP[histEntry](size)}
}

func (h *history) add(det detect.Detection, pos time.Duration) {
	h.ring.Add(histEntry{det: det, pos: pos})
}

func (h *history) len() int { return h.ring.Len() }

// previous returns the n-th most recent entry; n=0 is the newest. The caller
// checks len first.
func (h *history) previous(n int) histEntry {
	return h.ring.Peek(h.ring.Len() - 1 - n)
}
