// Package replay drives a lock over a recorded detector log the way the live
// loop would: one Update per logged frame, Predict at render cadence between
// frames. cmd/replay and cmd/locksweep are thin wrappers around LoadLog + Run.
package replay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/chewxy/math32"

	"github.com/courtside-data/playerlock/detect"
	"github.com/courtside-data/playerlock/geom"
	"github.com/courtside-data/playerlock/internal/monitoring"
	"github.com/courtside-data/playerlock/internal/sessiondb"
	"github.com/courtside-data/playerlock/track"
)

// DefaultTick is the simulated render cadence used when the caller passes no
// tick, roughly one Predict per 60fps display frame.
const DefaultTick = 16 * time.Millisecond

// PredictSample is one render-cadence Predict output taken between frames.
type PredictSample struct {
	Timeline time.Duration
	Box      geom.Box
}

// Result carries everything one replay produced. Observations and Events are
// sessiondb rows with SessionID left empty; the caller fills it in when
// persisting.
type Result struct {
	MasterID     string
	SeedTimeline time.Duration
	FramesPlayed int

	Observations []*sessiondb.Observation
	Predictions  []PredictSample
	Events       []*sessiondb.Event

	Metrics    track.Metrics
	FinalState track.State
}

// LoadLog reads a JSONL detector log: one detection frame per line, blank
// lines skipped. Frames must be timeline-ordered; a regression rejects the
// whole log rather than silently reordering someone's capture.
func LoadLog(path string) ([]*detect.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open detection log: %w", err)
	}
	defer file.Close()

	frames, err := parseLog(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	dropped := 0
	for _, f := range frames {
		dropped += f.Skipped
	}
	monitoring.Logf("replay: loaded %d frames from %s (%d malformed entries dropped)", len(frames), path, dropped)
	return frames, nil
}

// parseLog does the line work against any reader for testability.
func parseLog(r io.Reader) ([]*detect.Frame, error) {
	var frames []*detect.Frame
	scanner := bufio.NewScanner(r)
	// Frames with many players overflow the scanner's default 64KB token limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		f, err := detect.ParseFrame([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if n := len(frames); n > 0 && f.Timeline < frames[n-1].Timeline {
			return nil, fmt.Errorf("line %d: timeline moved backward from %v to %v: %w",
				lineNo, frames[n-1].Timeline, f.Timeline, detect.ErrInvalidTimestamp)
		}
		frames = append(frames, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read detection log: %w", err)
	}
	return frames, nil
}

// Run replays frames through a fresh lock. The subject is selected on the
// first frame where sel resolves; earlier frames are skipped because no lock
// exists yet. Every following frame goes through Update, and between frames
// Predict runs at the tick cadence (DefaultTick when tick <= 0) with visible
// samples recorded.
func Run(frames []*detect.Frame, sel detect.Selection, cfg track.Config, tick time.Duration) (*Result, error) {
	if len(frames) == 0 {
		return nil, errors.New("no frames to replay")
	}
	if tick <= 0 {
		tick = DefaultTick
	}

	seedIdx := -1
	var seed detect.Detection
	for i, f := range frames {
		if d, ok := detect.Select(f.Detections, sel); ok {
			seedIdx, seed = i, d
			break
		}
	}
	if seedIdx < 0 {
		return nil, errors.New("selection matched no detection in any frame")
	}

	lock, err := track.NewLock(sel.PlayerID, seed, frames[seedIdx].Timeline, cfg)
	if err != nil {
		return nil, fmt.Errorf("seed lock: %w", err)
	}
	col := &collector{}
	lock.SetCollector(col)

	res := &Result{
		MasterID:     lock.MasterID(),
		SeedTimeline: frames[seedIdx].Timeline,
	}

	last := frames[seedIdx].Timeline
	for _, f := range frames[seedIdx+1:] {
		for pos := last + tick; pos < f.Timeline; pos += tick {
			if box, ok := lock.Predict(pos); ok {
				res.Predictions = append(res.Predictions, PredictSample{Timeline: pos, Box: box})
			}
		}

		col.matched = false
		box, _, err := lock.Update(f.Detections, f.Timeline)
		if err != nil {
			return nil, fmt.Errorf("update at %v: %w", f.Timeline, err)
		}
		res.FramesPlayed++

		obs := &sessiondb.Observation{
			Timeline:   f.Timeline,
			State:      string(lock.State()),
			Box:        box,
			Confidence: lock.Confidence(),
			MatchScore: float32(math.NaN()),
			RawCenterX: float32(math.NaN()),
			RawCenterY: float32(math.NaN()),
		}
		if col.matched {
			obs.MatchedID = col.matchID
			obs.MatchScore = col.matchScore
			obs.ExactMatch = col.matchExact
			cx, cy := box.Center()
			if d, ok := matchedDetection(f.Detections, col.matchID, cx, cy); ok {
				obs.RawCenterX, obs.RawCenterY = d.CenterX, d.CenterY
			}
		}
		res.Observations = append(res.Observations, obs)
		last = f.Timeline
	}

	res.Events = col.events
	res.Metrics = lock.Metrics()
	res.FinalState = lock.State()
	return res, nil
}

// matchedDetection finds the frame entry the lock accepted. Ids are normally
// unique within a frame; duplicates (or unlabeled candidates sharing the empty
// id) tie-break on distance to the updated center.
func matchedDetection(dets []detect.Detection, id string, cx, cy float32) (detect.Detection, bool) {
	best, bestDist := -1, float32(math32.MaxFloat32)
	for i, d := range dets {
		if d.ID != id {
			continue
		}
		dist := math32.Hypot(d.CenterX-cx, d.CenterY-cy)
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return detect.Detection{}, false
	}
	return dets[best], true
}

// collector adapts lock events into sessiondb rows and remembers the accepted
// candidate of the update in flight so Run can attach it to the observation.
type collector struct {
	events []*sessiondb.Event

	matched    bool
	matchID    string
	matchScore float32
	matchExact bool
}

func (c *collector) IsEnabled() bool { return true }

func (c *collector) RecordTransition(from, to track.State, pos time.Duration, reason string) {
	c.events = append(c.events, &sessiondb.Event{
		Timeline:  pos,
		Kind:      sessiondb.EventTransition,
		FromValue: string(from),
		ToValue:   string(to),
		Detail:    reason,
	})
}

func (c *collector) RecordMatch(candidateID string, score float32, exact, accepted bool, pos time.Duration) {
	if accepted {
		c.matched = true
		c.matchID = candidateID
		c.matchScore = score
		c.matchExact = exact
		return
	}
	c.events = append(c.events, &sessiondb.Event{
		Timeline: pos,
		Kind:     sessiondb.EventPending,
		ToValue:  candidateID,
		Detail:   fmt.Sprintf("score %.3f", score),
	})
}

func (c *collector) RecordIDSwitch(from, to string, pos time.Duration) {
	c.events = append(c.events, &sessiondb.Event{
		Timeline:  pos,
		Kind:      sessiondb.EventIDSwitch,
		FromValue: from,
		ToValue:   to,
	})
}
