package replay

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside-data/playerlock/detect"
	"github.com/courtside-data/playerlock/internal/sessiondb"
	"github.com/courtside-data/playerlock/track"
)

func mkDet(id string, cx, cy, w, h, conf float32) detect.Detection {
	return detect.Detection{
		ID:         id,
		X:          cx - w/2,
		Y:          cy - h/2,
		Width:      w,
		Height:     h,
		CenterX:    cx,
		CenterY:    cy,
		Confidence: conf,
	}
}

func mkFrame(ms int, dets ...detect.Detection) *detect.Frame {
	return &detect.Frame{Timeline: time.Duration(ms) * time.Millisecond, Detections: dets}
}

func frameLine(ms float64, players ...string) string {
	return fmt.Sprintf(`{"type":"detections","timestampMs":%g,"frameWidth":1920,"frameHeight":1080,"players":[%s]}`,
		ms, strings.Join(players, ","))
}

func TestLoadLog(t *testing.T) {
	t.Parallel()

	p7 := `{"id":"p7","x":0.3,"y":0.5,"width":0.06,"height":0.14,"confidence":0.9}`
	noWidth := `{"id":"bad","x":0.5,"y":0.5,"height":0.14,"confidence":0.9}`

	path := filepath.Join(t.TempDir(), "session.jsonl")
	content := strings.Join([]string{
		frameLine(0, p7),
		"",
		frameLine(100, p7, noWidth),
		"   ",
		frameLine(200, p7),
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	frames, err := LoadLog(path)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	assert.Equal(t, time.Duration(0), frames[0].Timeline)
	assert.Equal(t, 100*time.Millisecond, frames[1].Timeline)
	assert.Equal(t, 200*time.Millisecond, frames[2].Timeline)

	// The malformed entry is dropped and counted, not fatal.
	require.Len(t, frames[1].Detections, 1)
	assert.Equal(t, "p7", frames[1].Detections[0].ID)
	assert.Equal(t, 1, frames[1].Skipped)

	assert.InDelta(t, 0.3, frames[0].Detections[0].CenterX, 1e-6)
}

func TestLoadLogMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadLog(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open detection log")
}

func TestParseLogErrors(t *testing.T) {
	t.Parallel()

	p7 := `{"id":"p7","x":0.3,"y":0.5,"width":0.06,"height":0.14,"confidence":0.9}`

	t.Run("garbage line", func(t *testing.T) {
		t.Parallel()
		_, err := parseLog(strings.NewReader("not json\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 1")
	})

	t.Run("missing timestamp", func(t *testing.T) {
		t.Parallel()
		_, err := parseLog(strings.NewReader(`{"type":"detections","players":[]}` + "\n"))
		assert.ErrorIs(t, err, detect.ErrInvalidTimestamp)
	})

	t.Run("timeline regression", func(t *testing.T) {
		t.Parallel()
		content := frameLine(200, p7) + "\n" + frameLine(100, p7) + "\n"
		_, err := parseLog(strings.NewReader(content))
		require.ErrorIs(t, err, detect.ErrInvalidTimestamp)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("equal timelines allowed", func(t *testing.T) {
		t.Parallel()
		content := frameLine(100, p7) + "\n" + frameLine(100, p7) + "\n"
		frames, err := parseLog(strings.NewReader(content))
		require.NoError(t, err)
		assert.Len(t, frames, 2)
	})
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	// Subject drifts right at a steady 0.01 units per 100ms frame, with a
	// smaller decoy present throughout.
	frames := make([]*detect.Frame, 0, 11)
	for i := 0; i <= 10; i++ {
		cx := 0.30 + float32(i)*0.01
		frames = append(frames, mkFrame(i*100,
			mkDet("p7", cx, 0.5, 0.06, 0.14, 0.9),
			mkDet("p9", 0.8, 0.2, 0.04, 0.10, 0.5),
		))
	}

	res, err := Run(frames, detect.Selection{Auto: true}, track.DefaultConfig(), 0)
	require.NoError(t, err)

	assert.Equal(t, "p7", res.MasterID)
	assert.Equal(t, time.Duration(0), res.SeedTimeline)
	assert.Equal(t, 10, res.FramesPlayed)
	assert.Equal(t, track.StateActive, res.FinalState)

	require.Len(t, res.Observations, 10)
	for i, obs := range res.Observations {
		assert.Equal(t, time.Duration(i+1)*100*time.Millisecond, obs.Timeline)
		assert.Equal(t, "p7", obs.MatchedID)
		assert.True(t, obs.ExactMatch)
		assert.Equal(t, string(track.StateActive), obs.State)
		assert.GreaterOrEqual(t, obs.Confidence, float32(0.85))
		assert.InDelta(t, 0.30+float64(i+1)*0.01, obs.RawCenterX, 1e-5)
		assert.InDelta(t, 0.5, obs.RawCenterY, 1e-5)
	}

	// Default 16ms tick fits six samples into every 100ms gap.
	assert.Len(t, res.Predictions, 60)
	for _, p := range res.Predictions {
		assert.GreaterOrEqual(t, p.Box.X, float32(0))
		assert.LessOrEqual(t, p.Box.X+p.Box.Width, float32(1.00001))
	}

	assert.Empty(t, res.Events)
	assert.Equal(t, 10, res.Metrics.Updates)
	assert.Equal(t, 10, res.Metrics.ExactMatches)
	assert.Equal(t, 0, res.Metrics.Misses)
	assert.Equal(t, 0, res.Metrics.IDSwitches)
	assert.InDelta(t, 1.0, res.Metrics.MatchRate(), 1e-9)
}

func TestRunOcclusionTransitions(t *testing.T) {
	t.Parallel()

	subject := func(ms int) *detect.Frame {
		return mkFrame(ms, mkDet("p7", 0.5, 0.5, 0.06, 0.14, 0.9))
	}

	frames := []*detect.Frame{subject(0)}
	for ms := 100; ms <= 500; ms += 100 {
		frames = append(frames, subject(ms))
	}
	for ms := 600; ms <= 1400; ms += 100 {
		frames = append(frames, mkFrame(ms))
	}
	frames = append(frames, subject(1500))

	res, err := Run(frames, detect.Selection{PlayerID: "p7"}, track.DefaultConfig(), 50*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, 9, res.Metrics.Misses)
	assert.Equal(t, 9, res.Metrics.MaxMissStreak)
	assert.Equal(t, track.StateActive, res.FinalState)

	require.Len(t, res.Events, 2)
	down, up := res.Events[0], res.Events[1]

	assert.Equal(t, sessiondb.EventTransition, down.Kind)
	assert.Equal(t, string(track.StateActive), down.FromValue)
	assert.Equal(t, string(track.StateTentative), down.ToValue)
	assert.Equal(t, 1300*time.Millisecond, down.Timeline)
	assert.Equal(t, "no match for 800ms", down.Detail)

	assert.Equal(t, sessiondb.EventTransition, up.Kind)
	assert.Equal(t, string(track.StateTentative), up.FromValue)
	assert.Equal(t, string(track.StateActive), up.ToValue)
	assert.Equal(t, 1500*time.Millisecond, up.Timeline)

	// Missed updates carry no match and NaN placeholders.
	var confs []float32
	for _, obs := range res.Observations {
		if obs.Timeline >= 600*time.Millisecond && obs.Timeline <= 1400*time.Millisecond {
			assert.Empty(t, obs.MatchedID)
			assert.True(t, math.IsNaN(float64(obs.MatchScore)))
			assert.True(t, math.IsNaN(float64(obs.RawCenterX)))
			confs = append(confs, obs.Confidence)
		}
	}
	require.Len(t, confs, 9)
	for i := 1; i < len(confs); i++ {
		assert.Less(t, confs[i], confs[i-1])
	}
}

func TestRunIDSwitchHysteresis(t *testing.T) {
	t.Parallel()

	frames := []*detect.Frame{mkFrame(0, mkDet("a", 0.5, 0.5, 0.06, 0.14, 0.9))}
	for ms := 100; ms <= 700; ms += 100 {
		frames = append(frames, mkFrame(ms, mkDet("b", 0.5, 0.5, 0.06, 0.14, 0.9)))
	}

	res, err := Run(frames, detect.Selection{PlayerID: "a"}, track.DefaultConfig(), 50*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Metrics.IDSwitches)
	assert.Equal(t, 1, res.Metrics.PendingStarted)
	assert.Equal(t, 5, res.Metrics.Misses)

	require.Len(t, res.Events, 6)
	for _, ev := range res.Events[:5] {
		assert.Equal(t, sessiondb.EventPending, ev.Kind)
		assert.Equal(t, "b", ev.ToValue)
		assert.True(t, strings.HasPrefix(ev.Detail, "score "), "detail %q", ev.Detail)
	}
	sw := res.Events[5]
	assert.Equal(t, sessiondb.EventIDSwitch, sw.Kind)
	assert.Equal(t, "a", sw.FromValue)
	assert.Equal(t, "b", sw.ToValue)
	assert.Equal(t, 600*time.Millisecond, sw.Timeline)

	// Held-back frames take the miss path; the commit frame binds b.
	for _, obs := range res.Observations {
		switch {
		case obs.Timeline < 600*time.Millisecond:
			assert.Empty(t, obs.MatchedID)
		case obs.Timeline == 600*time.Millisecond:
			assert.Equal(t, "b", obs.MatchedID)
			assert.False(t, obs.ExactMatch)
		case obs.Timeline == 700*time.Millisecond:
			assert.Equal(t, "b", obs.MatchedID)
			assert.True(t, obs.ExactMatch)
		}
	}
}

func TestRunSkipsFramesBeforeSelection(t *testing.T) {
	t.Parallel()

	frames := []*detect.Frame{
		mkFrame(0),
		mkFrame(100),
		mkFrame(200, mkDet("p7", 0.4, 0.5, 0.06, 0.14, 0.9)),
		mkFrame(300, mkDet("p7", 0.41, 0.5, 0.06, 0.14, 0.9)),
	}

	res, err := Run(frames, detect.Selection{Auto: true}, track.DefaultConfig(), 50*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, 200*time.Millisecond, res.SeedTimeline)
	assert.Equal(t, 1, res.FramesPlayed)
	require.Len(t, res.Observations, 1)
	require.Len(t, res.Predictions, 1)
	assert.Equal(t, 250*time.Millisecond, res.Predictions[0].Timeline)
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	frames := []*detect.Frame{mkFrame(0, mkDet("p7", 0.5, 0.5, 0.06, 0.14, 0.9))}

	t.Run("no frames", func(t *testing.T) {
		t.Parallel()
		_, err := Run(nil, detect.Selection{Auto: true}, track.DefaultConfig(), 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no frames")
	})

	t.Run("selection never resolves", func(t *testing.T) {
		t.Parallel()
		_, err := Run(frames, detect.Selection{PlayerID: "ghost"}, track.DefaultConfig(), 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "selection matched no detection")
	})

	t.Run("bad config", func(t *testing.T) {
		t.Parallel()
		cfg := track.DefaultConfig()
		cfg.SmoothingFactor = 2
		_, err := Run(frames, detect.Selection{Auto: true}, cfg, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "seed lock")
	})
}
