// Package report turns a replay session's persisted rows into headline
// numbers, PNG time series, and a standalone HTML page. Nothing here feeds
// back into tracking; it exists so a tuning change can be judged without
// scrubbing through video.
package report

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/courtside-data/playerlock/internal/sessiondb"
)

// Summary aggregates one session's observations into quality numbers. Score
// fields accumulate over matched updates only; quantiles are zero when the
// session carries no samples for them, so the struct always marshals cleanly.
type Summary struct {
	Updates      int     `json:"updates"`
	Matches      int     `json:"matches"`
	Misses       int     `json:"misses"`
	ExactMatches int     `json:"exact_matches"`
	MatchRate    float64 `json:"match_rate"`

	MeanScore float64 `json:"mean_score"`
	ScoreP50  float64 `json:"score_p50"`
	ScoreP85  float64 `json:"score_p85"`
	ScoreP95  float64 `json:"score_p95"`

	ConfidenceP50 float64 `json:"confidence_p50"`
	ConfidenceP85 float64 `json:"confidence_p85"`
	ConfidenceP95 float64 `json:"confidence_p95"`

	// CenterJitterRMS is the RMS displacement of the smoothed center between
	// consecutive observations.
	CenterJitterRMS float64 `json:"center_jitter_rms"`
}

// Summarize folds observations, in timeline order, into a Summary. A miss is
// recognised by its NaN match score; matched id alone cannot tell because
// unlabeled detections match with an empty id.
func Summarize(obs []*sessiondb.Observation) Summary {
	s := Summary{Updates: len(obs)}

	confs := make([]float64, 0, len(obs))
	var scores []float64
	var jitterSq float64
	jitterN := 0

	for i, o := range obs {
		confs = append(confs, float64(o.Confidence))

		score := float64(o.MatchScore)
		if math.IsNaN(score) {
			s.Misses++
		} else {
			s.Matches++
			scores = append(scores, score)
			if o.ExactMatch {
				s.ExactMatches++
			}
		}

		if i > 0 {
			pcx, pcy := obs[i-1].Box.Center()
			cx, cy := o.Box.Center()
			dx := float64(cx - pcx)
			dy := float64(cy - pcy)
			jitterSq += dx*dx + dy*dy
			jitterN++
		}
	}

	if s.Updates > 0 {
		s.MatchRate = float64(s.Matches) / float64(s.Updates)
	}
	if len(scores) > 0 {
		s.MeanScore = stat.Mean(scores, nil)
	}
	if jitterN > 0 {
		s.CenterJitterRMS = math.Sqrt(jitterSq / float64(jitterN))
	}

	sort.Float64s(confs)
	sort.Float64s(scores)
	s.ConfidenceP50 = quantile(0.50, confs)
	s.ConfidenceP85 = quantile(0.85, confs)
	s.ConfidenceP95 = quantile(0.95, confs)
	s.ScoreP50 = quantile(0.50, scores)
	s.ScoreP85 = quantile(0.85, scores)
	s.ScoreP95 = quantile(0.95, scores)
	return s
}

// quantile wraps stat.Quantile with an empty-slice guard; stat panics on
// empty input.
func quantile(p float64, sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}
