package track

import (
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside-data/playerlock/detect"
)

func TestPredictSeedAnchorBeforePreSeedTimes(t *testing.T) {
	t.Parallel()

	seed := mkDet("player_1", 0.5, 0.5, 0.06, 0.14, 0.95)
	l, err := NewLock("player_1", seed, time.Second, DefaultConfig())
	require.NoError(t, err)

	anchor, ok := l.Predict(500 * time.Millisecond)
	require.True(t, ok)
	acx, acy := anchor.Center()
	assert.InDelta(t, 0.5, acx, 1e-6)
	assert.InDelta(t, 0.5, acy, 1e-6)

	// Move the lock well away from the seed, then ask about the past again:
	// the anchor comes back unmodified instead of running motion backward.
	_, _, err = l.Update([]detect.Detection{mkDet("player_1", 0.7, 0.7, 0.06, 0.14, 0.95)}, 1500*time.Millisecond)
	require.NoError(t, err)

	again, ok := l.Predict(500 * time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, anchor, again)

	zero, ok := l.Predict(0)
	require.True(t, ok)
	assert.Equal(t, anchor, zero)
}

func TestPredictInterpolationEasing(t *testing.T) {
	t.Parallel()

	l := seedLock(t, DefaultConfig())
	_, _, err := l.Update([]detect.Detection{mkDet("player_1", 0.52, 0.5, 0.06, 0.14, 0.95)}, 500*time.Millisecond)
	require.NoError(t, err)

	// History velocity: (0.52-0.50)/0.5s = 0.04 units/s along x.
	t.Run("mid window extrapolates at half weight", func(t *testing.T) {
		box, ok := l.Predict(600 * time.Millisecond)
		require.True(t, ok)
		cx, _ := box.Center()
		// 0.52 + 0.04*0.1s*0.5 easing.
		assert.InDelta(t, 0.522, cx, 1e-4)
	})

	t.Run("window edge lands on the last detection", func(t *testing.T) {
		box, ok := l.Predict(700 * time.Millisecond)
		require.True(t, ok)
		cx, _ := box.Center()
		assert.InDelta(t, 0.52, cx, 1e-4)
	})

	t.Run("past the window falls back to dead-reckoning", func(t *testing.T) {
		box, ok := l.Predict(800 * time.Millisecond)
		require.True(t, ok)
		cx, _ := box.Center()
		// Smoothed center 0.512 plus smoothed velocity 0.02 over a 200ms
		// capped step.
		assert.InDelta(t, 0.516, cx, 1e-4)
	})
}

func TestPredictVelocityCap(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	l, err := NewLock("player_1", mkDet("player_1", 0.95, 0.95, 0.06, 0.1, 0.95), 0, cfg)
	require.NoError(t, err)

	// ~12.7 units/s implied; every velocity estimate must cap at 2.5.
	_, _, err = l.Update([]detect.Detection{mkDet("player_1", 0.05, 0.05, 0.06, 0.1, 0.95)}, 100*time.Millisecond)
	require.NoError(t, err)

	at, ok := l.Predict(100 * time.Millisecond)
	require.True(t, ok)
	later, ok := l.Predict(200 * time.Millisecond)
	require.True(t, ok)

	moved := at.CenterDistance(later)
	assert.LessOrEqual(t, moved, cfg.MaxVelocity*0.1+1e-3)
}

func TestPredictStepCap(t *testing.T) {
	t.Parallel()

	l, err := NewLock("player_1", mkDet("player_1", 0.3, 0.3, 0.06, 0.14, 0.95), 0, DefaultConfig())
	require.NoError(t, err)
	_, _, err = l.Update([]detect.Detection{mkDet("player_1", 0.4, 0.3, 0.06, 0.14, 0.95)}, 200*time.Millisecond)
	require.NoError(t, err)

	// Smoothed center 0.36, smoothed velocity 0.25 units/s. A render loop
	// that stalls for ten seconds still only advances one capped step.
	box, ok := l.Predict(10 * time.Second)
	require.True(t, ok)
	cx, _ := box.Center()
	assert.InDelta(t, 0.36+0.25*0.2, cx, 1e-4)
}

func TestPredictBetweenSeedAndLastUpdate(t *testing.T) {
	t.Parallel()

	l, err := NewLock("player_1", mkDet("player_1", 0.5, 0.5, 0.06, 0.14, 0.95), time.Second, DefaultConfig())
	require.NoError(t, err)
	_, _, err = l.Update([]detect.Detection{mkDet("player_1", 0.55, 0.5, 0.06, 0.14, 0.95)}, 2*time.Second)
	require.NoError(t, err)

	// After the seed but behind the last update: hold the current estimate,
	// never run the motion model backward.
	box, ok := l.Predict(1500 * time.Millisecond)
	require.True(t, ok)
	current, _ := l.CurrentBox()
	assert.Equal(t, current, box)
}

func TestPredictDoesNotMutate(t *testing.T) {
	t.Parallel()

	l := seedLock(t, DefaultConfig())
	_, _, err := l.Update([]detect.Detection{mkDet("player_1", 0.52, 0.5, 0.06, 0.14, 0.95)}, 500*time.Millisecond)
	require.NoError(t, err)

	before, beforeOK := l.CurrentBox()
	confBefore := l.Confidence()

	first, _ := l.Predict(620 * time.Millisecond)
	for pos := 500 * time.Millisecond; pos <= 2*time.Second; pos += 37 * time.Millisecond {
		l.Predict(pos)
	}
	second, _ := l.Predict(620 * time.Millisecond)

	assert.Equal(t, first, second, "same position must predict the same box")
	after, afterOK := l.CurrentBox()
	assert.Equal(t, before, after)
	assert.Equal(t, beforeOK, afterOK)
	assert.Equal(t, confBefore, l.Confidence())
	assert.Equal(t, 1, l.Metrics().Updates)
}

func TestPredictInterpolationUsesSmoothedSize(t *testing.T) {
	t.Parallel()

	l := seedLock(t, DefaultConfig())
	// Detector momentarily reports a much fatter box.
	_, _, err := l.Update([]detect.Detection{mkDet("player_1", 0.5, 0.5, 0.2, 0.3, 0.95)}, 500*time.Millisecond)
	require.NoError(t, err)

	box, ok := l.Predict(550 * time.Millisecond)
	require.True(t, ok)
	// Smoothed width 0.06+0.6*(0.2-0.06)=0.144, not the raw 0.2.
	assert.InDelta(t, 0.144, box.Width, 1e-4)
	assert.Less(t, box.Width, float32(0.2))
}

func TestHistoryRing(t *testing.T) {
	t.Parallel()

	h := newHistory(4)
	for i := 0; i < 6; i++ {
		h.add(mkDet("player_1", float32(i)*0.1, 0.5, 0.06, 0.14, 0.9), time.Duration(i)*100*time.Millisecond)
	}
	assert.Equal(t, 4, h.len())
	newest := h.previous(0)
	assert.InDelta(t, 0.5, newest.det.CenterX, 1e-6)
	assert.Equal(t, 500*time.Millisecond, newest.pos)
	oldest := h.previous(h.len() - 1)
	assert.InDelta(t, 0.2, oldest.det.CenterX, 1e-6)
}

func TestVelocityClampHelper(t *testing.T) {
	t.Parallel()

	vx, vy := clampVelocity(3, 4, 2.5)
	assert.InDelta(t, 2.5, math32.Hypot(vx, vy), 1e-5)
	// Direction preserved.
	assert.InDelta(t, 3.0/4.0, vx/vy, 1e-5)

	vx, vy = clampVelocity(0.5, 0.5, 2.5)
	assert.InDelta(t, 0.5, vx, 1e-6)
	assert.InDelta(t, 0.5, vy, 1e-6)

	vx, vy = clampVelocity(math32.NaN(), 1, 2.5)
	assert.Zero(t, vx)
	assert.Zero(t, vy)
}
