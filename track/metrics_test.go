package track

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside-data/playerlock/detect"
)

func TestMetricsAccumulation(t *testing.T) {
	t.Parallel()

	l := seedLock(t, DefaultConfig())

	// Two exact matches, then a miss gap long enough to go Tentative.
	_, _, err := l.Update([]detect.Detection{mkDet("player_1", 0.51, 0.5, 0.06, 0.14, 0.95)}, 500*time.Millisecond)
	require.NoError(t, err)
	_, _, err = l.Update([]detect.Detection{mkDet("player_1", 0.52, 0.5, 0.06, 0.14, 0.95)}, time.Second)
	require.NoError(t, err)
	_, _, err = l.Update(nil, 1500*time.Millisecond)
	require.NoError(t, err)
	_, _, err = l.Update(nil, 2*time.Second)
	require.NoError(t, err)

	m := l.Metrics()
	assert.Equal(t, 4, m.Updates)
	assert.Equal(t, 2, m.ExactMatches)
	assert.Zero(t, m.FallbackMatches)
	assert.Equal(t, 2, m.Misses)
	assert.Equal(t, 2, m.MaxMissStreak)
	assert.Zero(t, m.IDSwitches)
	assert.InDelta(t, 0.5, m.MatchRate(), 1e-9)
	assert.InDelta(t, 1.0, m.MeanMatchScore, 1e-9, "exact matches score 1")

	// Raw path: 0.01 per matched step. The smoothed center also moves while
	// coasting through the misses, so both path sums are positive.
	assert.InDelta(t, 0.02, m.RawPathLength, 1e-4)
	assert.Greater(t, m.SmoothedPathLength, 0.0)
	assert.Greater(t, m.CenterJitterRMS, 0.0)

	// State time covers the whole updated span.
	total := m.ActiveMs + m.TentativeMs + m.LostMs + m.ReacquiringMs
	assert.Equal(t, int64(2000), total)
}

func TestMetricsSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	l := seedLock(t, DefaultConfig())
	before := l.Metrics()
	_, _, err := l.Update(nil, 100*time.Millisecond)
	require.NoError(t, err)

	assert.Zero(t, before.Updates, "earlier snapshot must not see later updates")
	assert.Equal(t, 1, l.Metrics().Updates)
}

func TestMetricsJSONShape(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Metrics{Updates: 3, MeanMatchScore: 0.5})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"updates":3`)
	assert.Contains(t, string(data), `"mean_match_score":0.5`)
	assert.Contains(t, string(data), `"center_jitter_rms"`)
}

func TestMatchRateEmpty(t *testing.T) {
	t.Parallel()
	assert.Zero(t, Metrics{}.MatchRate())
}
