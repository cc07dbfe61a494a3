package detect

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/courtside-data/playerlock/internal/monitoring"
)

// Frame is one normalized detector batch: every well-formed box the detector
// reported at a single timeline position.
type Frame struct {
	// Timeline is the frame's offset into the video, never wall-clock time.
	Timeline    time.Duration
	FrameWidth  int
	FrameHeight int
	Detections  []Detection
	// Skipped counts entries dropped as malformed.
	Skipped int
}

// wireFrame mirrors the detector's JSON event shape.
type wireFrame struct {
	Type        string         `json:"type"`
	TimestampMs *float64       `json:"timestampMs"`
	FrameWidth  int            `json:"frameWidth"`
	FrameHeight int            `json:"frameHeight"`
	Players     []RawDetection `json:"players"`
}

// ParseFrame decodes one detector event of the form
//
//	{"type":"detections","timestampMs":1500,"frameWidth":1920,
//	 "frameHeight":1080,"players":[...]}
//
// and normalizes every player entry. Malformed entries are dropped with a
// diagnostic and counted in Skipped; the rest of the batch survives. A
// missing, non-finite, or negative timestamp rejects the whole frame with
// ErrInvalidTimestamp.
func ParseFrame(data []byte) (*Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode detection frame: %w", err)
	}
	if w.Type != "" && w.Type != "detections" {
		return nil, fmt.Errorf("unexpected frame type %q", w.Type)
	}
	if w.TimestampMs == nil {
		return nil, fmt.Errorf("frame missing timestampMs: %w", ErrInvalidTimestamp)
	}
	ms := *w.TimestampMs
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		return nil, fmt.Errorf("frame timestampMs %v: %w", ms, ErrInvalidTimestamp)
	}

	f := &Frame{
		Timeline:    time.Duration(ms * float64(time.Millisecond)),
		FrameWidth:  w.FrameWidth,
		FrameHeight: w.FrameHeight,
	}
	for i, raw := range w.Players {
		det, err := Normalize(raw, w.FrameWidth, w.FrameHeight)
		if err != nil {
			monitoring.Logf("detect: dropping player %d (id=%q) at %v: %v", i, raw.ID, f.Timeline, err)
			f.Skipped++
			continue
		}
		f.Detections = append(f.Detections, det)
	}
	return f, nil
}
