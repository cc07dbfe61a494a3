// Package config loads lock tunables from JSON files. Fields are pointers so
// partial files can overlay just the values they name; everything else stays
// on the compiled-in defaults from track.DefaultConfig.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/courtside-data/playerlock/track"
)

// DefaultConfigPath is the canonical tuning defaults file, kept at the
// repository root with every tunable written out explicitly.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the JSON schema for lock tunables. Durations are strings
// like "750ms". Nil fields mean "keep the base value".
type TuningConfig struct {
	// Smoothing
	SmoothingFactor   *float64 `json:"smoothing_factor,omitempty"`
	VelocitySmoothing *float64 `json:"velocity_smoothing,omitempty"`

	// Lifecycle timing
	TentativeAfter *string `json:"tentative_after,omitempty"` // duration string like "750ms"
	LostAfter      *string `json:"lost_after,omitempty"`
	ReacquireAfter *string `json:"reacquire_after,omitempty"`

	// Confidence
	DecayRate           *float64 `json:"decay_rate,omitempty"`
	ConfidenceFloor     *float64 `json:"confidence_floor,omitempty"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`

	// Association scoring
	MinMatchScore          *float64 `json:"min_match_score,omitempty"`
	MaxAssociationDistance *float64 `json:"max_association_distance,omitempty"`
	IoUWeight              *float64 `json:"iou_weight,omitempty"`
	DistanceWeight         *float64 `json:"distance_weight,omitempty"`
	SizeWeight             *float64 `json:"size_weight,omitempty"`
	ConfidenceWeight       *float64 `json:"confidence_weight,omitempty"`
	ContinuityRadius       *float64 `json:"continuity_radius,omitempty"`
	ContinuityBonus        *float64 `json:"continuity_bonus,omitempty"`

	// Identity hysteresis
	HysteresisWindow *string `json:"hysteresis_window,omitempty"`

	// Prediction
	InterpolationWindow *string  `json:"interpolation_window,omitempty"`
	MaxVelocity         *float64 `json:"max_velocity,omitempty"`
	MaxPredictStep      *string  `json:"max_predict_step,omitempty"`

	// Occlusion behaviour
	MissVelocityDamping *float64 `json:"miss_velocity_damping,omitempty"`
	LostGateScale       *float64 `json:"lost_gate_scale,omitempty"`
	ReacquireGateScale  *float64 `json:"reacquire_gate_scale,omitempty"`

	// Bookkeeping
	HistorySize *int     `json:"history_size,omitempty"`
	MinBoxSize  *float64 `json:"min_box_size,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must have
// a .json extension and stay under the size cap. Fields omitted from the file
// are left nil, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching upward from the current directory. Panics if
// the file cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,    // from cmd/
		"../../" + DefaultConfigPath, // from internal/config/ and friends
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks each present field on its own. Cross-field constraints
// (ordering of the lifecycle durations, for example) are enforced by
// track.Config.Validate once the overlay is applied.
func (c *TuningConfig) Validate() error {
	unitChecks := []struct {
		name string
		v    *float64
	}{
		{"smoothing_factor", c.SmoothingFactor},
		{"velocity_smoothing", c.VelocitySmoothing},
		{"decay_rate", c.DecayRate},
		{"confidence_floor", c.ConfidenceFloor},
		{"confidence_threshold", c.ConfidenceThreshold},
		{"min_match_score", c.MinMatchScore},
		{"miss_velocity_damping", c.MissVelocityDamping},
	}
	for _, u := range unitChecks {
		if u.v != nil && (*u.v < 0 || *u.v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", u.name, *u.v)
		}
	}

	durationChecks := []struct {
		name string
		v    *string
	}{
		{"tentative_after", c.TentativeAfter},
		{"lost_after", c.LostAfter},
		{"reacquire_after", c.ReacquireAfter},
		{"hysteresis_window", c.HysteresisWindow},
		{"interpolation_window", c.InterpolationWindow},
		{"max_predict_step", c.MaxPredictStep},
	}
	for _, d := range durationChecks {
		if d.v != nil && *d.v != "" {
			if _, err := time.ParseDuration(*d.v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
			}
		}
	}

	if c.MaxVelocity != nil && *c.MaxVelocity <= 0 {
		return fmt.Errorf("max_velocity must be positive, got %f", *c.MaxVelocity)
	}
	if c.HistorySize != nil && *c.HistorySize < 2 {
		return fmt.Errorf("history_size must be at least 2, got %d", *c.HistorySize)
	}

	return nil
}

// Apply overlays every present field onto base and returns the result. The
// compiled-in defaults live in exactly one place, track.DefaultConfig; a
// tuning file only ever narrows the delta from there.
func (c *TuningConfig) Apply(base track.Config) track.Config {
	out := base

	setF32 := func(dst *float32, src *float64) {
		if src != nil {
			*dst = float32(*src)
		}
	}
	setDur := func(dst *time.Duration, src *string) {
		if src == nil || *src == "" {
			return
		}
		if d, err := time.ParseDuration(*src); err == nil {
			*dst = d
		}
	}

	setF32(&out.SmoothingFactor, c.SmoothingFactor)
	setF32(&out.VelocitySmoothing, c.VelocitySmoothing)

	setDur(&out.TentativeAfter, c.TentativeAfter)
	setDur(&out.LostAfter, c.LostAfter)
	setDur(&out.ReacquireAfter, c.ReacquireAfter)

	setF32(&out.DecayRate, c.DecayRate)
	setF32(&out.ConfidenceFloor, c.ConfidenceFloor)
	setF32(&out.ConfidenceThreshold, c.ConfidenceThreshold)

	setF32(&out.MinMatchScore, c.MinMatchScore)
	setF32(&out.MaxAssociationDistance, c.MaxAssociationDistance)
	setF32(&out.IoUWeight, c.IoUWeight)
	setF32(&out.DistanceWeight, c.DistanceWeight)
	setF32(&out.SizeWeight, c.SizeWeight)
	setF32(&out.ConfidenceWeight, c.ConfidenceWeight)
	setF32(&out.ContinuityRadius, c.ContinuityRadius)
	setF32(&out.ContinuityBonus, c.ContinuityBonus)

	setDur(&out.HysteresisWindow, c.HysteresisWindow)

	setDur(&out.InterpolationWindow, c.InterpolationWindow)
	setF32(&out.MaxVelocity, c.MaxVelocity)
	setDur(&out.MaxPredictStep, c.MaxPredictStep)

	setF32(&out.MissVelocityDamping, c.MissVelocityDamping)
	setF32(&out.LostGateScale, c.LostGateScale)
	setF32(&out.ReacquireGateScale, c.ReacquireGateScale)

	if c.HistorySize != nil {
		out.HistorySize = *c.HistorySize
	}
	setF32(&out.MinBoxSize, c.MinBoxSize)

	return out
}

// FromConfig captures every tunable of cfg as an explicit TuningConfig, the
// inverse of Apply. The sweep tool prints its winner this way so the output
// feeds straight back in through the -config flag.
func FromConfig(cfg track.Config) *TuningConfig {
	return &TuningConfig{
		SmoothingFactor:   ptrFloat64(float64(cfg.SmoothingFactor)),
		VelocitySmoothing: ptrFloat64(float64(cfg.VelocitySmoothing)),

		TentativeAfter: ptrString(cfg.TentativeAfter.String()),
		LostAfter:      ptrString(cfg.LostAfter.String()),
		ReacquireAfter: ptrString(cfg.ReacquireAfter.String()),

		DecayRate:           ptrFloat64(float64(cfg.DecayRate)),
		ConfidenceFloor:     ptrFloat64(float64(cfg.ConfidenceFloor)),
		ConfidenceThreshold: ptrFloat64(float64(cfg.ConfidenceThreshold)),

		MinMatchScore:          ptrFloat64(float64(cfg.MinMatchScore)),
		MaxAssociationDistance: ptrFloat64(float64(cfg.MaxAssociationDistance)),
		IoUWeight:              ptrFloat64(float64(cfg.IoUWeight)),
		DistanceWeight:         ptrFloat64(float64(cfg.DistanceWeight)),
		SizeWeight:             ptrFloat64(float64(cfg.SizeWeight)),
		ConfidenceWeight:       ptrFloat64(float64(cfg.ConfidenceWeight)),
		ContinuityRadius:       ptrFloat64(float64(cfg.ContinuityRadius)),
		ContinuityBonus:        ptrFloat64(float64(cfg.ContinuityBonus)),

		HysteresisWindow: ptrString(cfg.HysteresisWindow.String()),

		InterpolationWindow: ptrString(cfg.InterpolationWindow.String()),
		MaxVelocity:         ptrFloat64(float64(cfg.MaxVelocity)),
		MaxPredictStep:      ptrString(cfg.MaxPredictStep.String()),

		MissVelocityDamping: ptrFloat64(float64(cfg.MissVelocityDamping)),
		LostGateScale:       ptrFloat64(float64(cfg.LostGateScale)),
		ReacquireGateScale:  ptrFloat64(float64(cfg.ReacquireGateScale)),

		HistorySize: ptrInt(cfg.HistorySize),
		MinBoxSize:  ptrFloat64(float64(cfg.MinBoxSize)),
	}
}
