package track

import (
	"fmt"
	"time"

	"github.com/courtside-data/playerlock/geom"
)

// Config holds every tunable the lock consults. All durations live in the
// video's timeline domain, all distances in normalized frame units. The
// defaults were tuned on fixed-camera courtside footage; the sweep tool
// exists to re-derive them for other setups.
type Config struct {
	// Smoothing.
	SmoothingFactor   float32 // EMA blend weight for observed center and size, (0,1]
	VelocitySmoothing float32 // EMA blend weight for observed velocity, (0,1]

	// Lifecycle timing, measured since the last accepted match.
	TentativeAfter time.Duration // Active -> Tentative
	LostAfter      time.Duration // Tentative -> Lost
	ReacquireAfter time.Duration // Lost -> Reacquiring

	// Confidence.
	DecayRate           float32 // per-second multiplicative decay while unmatched, (0,1)
	ConfidenceFloor     float32 // restored lower bound on any accepted match
	ConfidenceThreshold float32 // below this no box is reported

	// Association scoring.
	MinMatchScore          float32
	MaxAssociationDistance float32
	IoUWeight              float32
	DistanceWeight         float32
	SizeWeight             float32
	ConfidenceWeight       float32
	ContinuityRadius       float32 // bonus fades to zero at this distance from the pre-advance center
	ContinuityBonus        float32

	// Identity hysteresis: a different detector id must stay the best
	// geometry match this long before the lock rebinds to it.
	HysteresisWindow time.Duration

	// Prediction.
	InterpolationWindow time.Duration // history extrapolation horizon past the newest detection
	MaxVelocity         float32       // units/s cap on every velocity estimate
	MaxPredictStep      time.Duration // dead-reckoning advance cap per predict call

	// Occlusion behaviour.
	MissVelocityDamping float32 // per-second velocity retention while unmatched, (0,1]
	LostGateScale       float32 // association distance multiplier in Lost
	ReacquireGateScale  float32 // association distance multiplier in Reacquiring

	// Bookkeeping.
	HistorySize int     // recent accepted detections kept for interpolation
	MinBoxSize  float32 // smallest normalized extent kept after clamping
}

// DefaultConfig returns the tuned baseline configuration.
func DefaultConfig() Config {
	return Config{
		SmoothingFactor:   0.6,
		VelocitySmoothing: 0.5,

		TentativeAfter: 750 * time.Millisecond,
		LostAfter:      1500 * time.Millisecond,
		ReacquireAfter: 2500 * time.Millisecond,

		DecayRate:           0.35,
		ConfidenceFloor:     0.85,
		ConfidenceThreshold: 0.2,

		MinMatchScore:          0.25,
		MaxAssociationDistance: 0.25,
		IoUWeight:              0.4,
		DistanceWeight:         0.4,
		SizeWeight:             0.1,
		ConfidenceWeight:       0.1,
		ContinuityRadius:       0.08,
		ContinuityBonus:        0.2,

		HysteresisWindow: 500 * time.Millisecond,

		InterpolationWindow: 200 * time.Millisecond,
		MaxVelocity:         2.5,
		MaxPredictStep:      200 * time.Millisecond,

		MissVelocityDamping: 0.5,
		LostGateScale:       1.25,
		ReacquireGateScale:  1.5,

		HistorySize: 4,
		MinBoxSize:  geom.DefaultMinSize,
	}
}

// Validate rejects configurations the lock cannot run with.
func (c Config) Validate() error {
	if c.SmoothingFactor <= 0 || c.SmoothingFactor > 1 {
		return fmt.Errorf("SmoothingFactor must be in (0,1], got %g", c.SmoothingFactor)
	}
	if c.VelocitySmoothing <= 0 || c.VelocitySmoothing > 1 {
		return fmt.Errorf("VelocitySmoothing must be in (0,1], got %g", c.VelocitySmoothing)
	}
	if c.TentativeAfter <= 0 {
		return fmt.Errorf("TentativeAfter must be positive, got %v", c.TentativeAfter)
	}
	if c.LostAfter <= c.TentativeAfter {
		return fmt.Errorf("LostAfter %v must exceed TentativeAfter %v", c.LostAfter, c.TentativeAfter)
	}
	if c.ReacquireAfter <= c.LostAfter {
		return fmt.Errorf("ReacquireAfter %v must exceed LostAfter %v", c.ReacquireAfter, c.LostAfter)
	}
	if c.DecayRate <= 0 || c.DecayRate >= 1 {
		return fmt.Errorf("DecayRate must be in (0,1), got %g", c.DecayRate)
	}
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("ConfidenceFloor must be in [0,1], got %g", c.ConfidenceFloor)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold >= 1 {
		return fmt.Errorf("ConfidenceThreshold must be in [0,1), got %g", c.ConfidenceThreshold)
	}
	if c.MinMatchScore <= 0 || c.MinMatchScore >= 1 {
		return fmt.Errorf("MinMatchScore must be in (0,1), got %g", c.MinMatchScore)
	}
	if c.MaxAssociationDistance <= 0 {
		return fmt.Errorf("MaxAssociationDistance must be positive, got %g", c.MaxAssociationDistance)
	}
	if c.IoUWeight < 0 || c.DistanceWeight < 0 || c.SizeWeight < 0 || c.ConfidenceWeight < 0 {
		return fmt.Errorf("score weights must be non-negative")
	}
	if c.IoUWeight+c.DistanceWeight+c.SizeWeight+c.ConfidenceWeight <= 0 {
		return fmt.Errorf("score weights must not all be zero")
	}
	if c.ContinuityRadius <= 0 {
		return fmt.Errorf("ContinuityRadius must be positive, got %g", c.ContinuityRadius)
	}
	if c.ContinuityBonus < 0 {
		return fmt.Errorf("ContinuityBonus must be non-negative, got %g", c.ContinuityBonus)
	}
	if c.HysteresisWindow <= 0 {
		return fmt.Errorf("HysteresisWindow must be positive, got %v", c.HysteresisWindow)
	}
	if c.InterpolationWindow <= 0 {
		return fmt.Errorf("InterpolationWindow must be positive, got %v", c.InterpolationWindow)
	}
	if c.MaxVelocity <= 0 {
		return fmt.Errorf("MaxVelocity must be positive, got %g", c.MaxVelocity)
	}
	if c.MaxPredictStep <= 0 {
		return fmt.Errorf("MaxPredictStep must be positive, got %v", c.MaxPredictStep)
	}
	if c.MissVelocityDamping <= 0 || c.MissVelocityDamping > 1 {
		return fmt.Errorf("MissVelocityDamping must be in (0,1], got %g", c.MissVelocityDamping)
	}
	if c.LostGateScale < 1 || c.ReacquireGateScale < 1 {
		return fmt.Errorf("gate scales must be at least 1, got %g and %g", c.LostGateScale, c.ReacquireGateScale)
	}
	if c.HistorySize < 2 {
		return fmt.Errorf("HistorySize must be at least 2, got %d", c.HistorySize)
	}
	if c.MinBoxSize <= 0 || c.MinBoxSize >= 0.5 {
		return fmt.Errorf("MinBoxSize must be in (0,0.5), got %g", c.MinBoxSize)
	}
	return nil
}
