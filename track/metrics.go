package track

import (
	"math"
	"time"
)

// Metrics summarizes tracking quality over a lock's lifetime. The sweep tool
// ranks candidate tunings on these numbers; the replay tool persists them per
// session.
type Metrics struct {
	Updates         int `json:"updates"`
	ExactMatches    int `json:"exact_matches"`
	FallbackMatches int `json:"fallback_matches"`
	Misses          int `json:"misses"`
	MaxMissStreak   int `json:"max_miss_streak"`

	IDSwitches     int `json:"id_switches"`
	PendingStarted int `json:"pending_started"`
	PendingAborted int `json:"pending_aborted"`

	MeanMatchScore float64 `json:"mean_match_score"`

	// CenterJitterRMS is the RMS per-update movement of the smoothed center;
	// lower is steadier output for the same input.
	CenterJitterRMS float64 `json:"center_jitter_rms"`
	// Path lengths compare raw detector movement against the emitted
	// movement; their ratio shows how much shake the smoothing removed.
	RawPathLength      float64 `json:"raw_path_length"`
	SmoothedPathLength float64 `json:"smoothed_path_length"`

	ActiveMs      int64 `json:"active_ms"`
	TentativeMs   int64 `json:"tentative_ms"`
	LostMs        int64 `json:"lost_ms"`
	ReacquiringMs int64 `json:"reacquiring_ms"`
}

// MatchRate returns accepted matches per update, 0 when nothing ran yet.
func (m Metrics) MatchRate() float64 {
	if m.Updates == 0 {
		return 0
	}
	return float64(m.ExactMatches+m.FallbackMatches) / float64(m.Updates)
}

// metricsAccum carries the running sums behind Metrics.
type metricsAccum struct {
	updates         int
	exactMatches    int
	fallbackMatches int
	misses          int
	maxMissStreak   int

	idSwitches     int
	pendingStarted int
	pendingAborted int

	scoreSum float64
	scoreN   int

	jitterSqSum float64
	jitterN     int
	rawPath     float64
	smoothPath  float64

	lastRawCX, lastRawCY float32

	activeNs, tentativeNs, lostNs, reacquiringNs time.Duration
}

func (m *metricsAccum) addStateTime(s State, d time.Duration) {
	switch s {
	case StateActive:
		m.activeNs += d
	case StateTentative:
		m.tentativeNs += d
	case StateLost:
		m.lostNs += d
	case StateReacquiring:
		m.reacquiringNs += d
	}
}

// Metrics returns a snapshot of the lock's quality counters.
func (l *Lock) Metrics() Metrics {
	a := l.m
	out := Metrics{
		Updates:            a.updates,
		ExactMatches:       a.exactMatches,
		FallbackMatches:    a.fallbackMatches,
		Misses:             a.misses,
		MaxMissStreak:      a.maxMissStreak,
		IDSwitches:         a.idSwitches,
		PendingStarted:     a.pendingStarted,
		PendingAborted:     a.pendingAborted,
		RawPathLength:      a.rawPath,
		SmoothedPathLength: a.smoothPath,
		ActiveMs:           a.activeNs.Milliseconds(),
		TentativeMs:        a.tentativeNs.Milliseconds(),
		LostMs:             a.lostNs.Milliseconds(),
		ReacquiringMs:      a.reacquiringNs.Milliseconds(),
	}
	if a.scoreN > 0 {
		out.MeanMatchScore = a.scoreSum / float64(a.scoreN)
	}
	if a.jitterN > 0 {
		out.CenterJitterRMS = math.Sqrt(a.jitterSqSum / float64(a.jitterN))
	}
	return out
}
