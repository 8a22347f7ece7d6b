package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHorizon     = 15
	DefaultStep        = 0.15
	DefaultTargetSpeed = 80.0
	DefaultSteerBound  = 0.436332 // 25 degrees in radians
	DefaultAccelBound  = 1.0
	DefaultWheelbase   = 2.67
	DefaultLatency     = 0.1
	DefaultPolyDegree  = 3
)

// Weights holds the cost-function weights. Tracking terms dominate,
// rate terms damp oscillatory control, magnitude terms discourage
// unnecessary effort.
type Weights struct {
	CrossTrack float64 `yaml:"cross_track"`
	Heading    float64 `yaml:"heading"`
	Speed      float64 `yaml:"speed"`
	Steer      float64 `yaml:"steer"`
	Accel      float64 `yaml:"accel"`
	SteerRate  float64 `yaml:"steer_rate"`
	AccelRate  float64 `yaml:"accel_rate"`
}

// Solver holds the nonlinear-program iteration budgets and tolerances.
// TimeLimit is in seconds, as the wall-clock cap of the original solver
// configuration was.
type Solver struct {
	TimeLimit     float64 `yaml:"time_limit"`
	MaxOuter      int     `yaml:"max_outer"`
	MaxInner      int     `yaml:"max_inner"`
	Tolerance     float64 `yaml:"tolerance"`
	FeasTolerance float64 `yaml:"feas_tolerance"`
}

// Deadline converts the wall-clock cap to a duration. Zero means no cap.
func (s Solver) Deadline() time.Duration {
	return time.Duration(s.TimeLimit * float64(time.Second))
}

// Config is the full set of controller tunables. It is constructed once
// and treated as immutable; decision-vector offsets are derived from it
// by the mpc package rather than kept as package globals.
type Config struct {
	Horizon     int     `yaml:"horizon"`
	Step        float64 `yaml:"step"`
	TargetSpeed float64 `yaml:"target_speed"`
	SteerBound  float64 `yaml:"steer_bound"`
	AccelBound  float64 `yaml:"accel_bound"`
	Wheelbase   float64 `yaml:"wheelbase"`
	Latency     float64 `yaml:"latency"`
	PolyDegree  int     `yaml:"poly_degree"`

	// Reference-path preview points sent back for display.
	PreviewPoints  int     `yaml:"preview_points"`
	PreviewSpacing float64 `yaml:"preview_spacing"`

	Weights Weights `yaml:"weights"`
	Solver  Solver  `yaml:"solver"`

	// Fallback selects the behavior when the solver does not converge:
	// "pid" steers on cross-track error, "hold" reuses the previous
	// command, "trust" uses the solver's best iterate as-is.
	Fallback string `yaml:"fallback"`
}

func Default() *Config {
	return &Config{
		Horizon:        DefaultHorizon,
		Step:           DefaultStep,
		TargetSpeed:    DefaultTargetSpeed,
		SteerBound:     DefaultSteerBound,
		AccelBound:     DefaultAccelBound,
		Wheelbase:      DefaultWheelbase,
		Latency:        DefaultLatency,
		PolyDegree:     DefaultPolyDegree,
		PreviewPoints:  10,
		PreviewSpacing: 5.0,
		Weights: Weights{
			CrossTrack: 1000,
			Heading:    1000,
			Speed:      1,
			Steer:      100,
			Accel:      10,
			SteerRate:  10,
			AccelRate:  10,
		},
		Solver: Solver{
			TimeLimit:     0.5,
			MaxOuter:      12,
			MaxInner:      250,
			Tolerance:     1e-5,
			FeasTolerance: 1e-4,
		},
		Fallback: "pid",
	}
}

// Load reads a yaml file over the defaults, so partial files are valid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Horizon < 3 {
		return fmt.Errorf("config: horizon must be at least 3, got %d", c.Horizon)
	}
	if c.Step <= 0 {
		return fmt.Errorf("config: step must be positive, got %f", c.Step)
	}
	span := float64(c.Horizon) * c.Step
	if span < 0.5 || span > 10 {
		return fmt.Errorf("config: horizon span %.2fs outside usable range (want a few seconds)", span)
	}
	if c.SteerBound <= 0 || c.SteerBound > math.Pi/2 {
		return fmt.Errorf("config: steer bound %f out of range", c.SteerBound)
	}
	if c.AccelBound <= 0 {
		return fmt.Errorf("config: accel bound must be positive, got %f", c.AccelBound)
	}
	if c.Wheelbase <= 0 {
		return fmt.Errorf("config: wheelbase must be positive, got %f", c.Wheelbase)
	}
	if c.Latency < 0 {
		return fmt.Errorf("config: latency must not be negative, got %f", c.Latency)
	}
	if c.PolyDegree < 1 {
		return fmt.Errorf("config: poly degree must be at least 1, got %d", c.PolyDegree)
	}
	switch c.Fallback {
	case "pid", "hold", "trust":
	default:
		return fmt.Errorf("config: unknown fallback %q (want pid, hold or trust)", c.Fallback)
	}
	return nil
}
