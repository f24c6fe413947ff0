// Package ppg - Pipeline tuning.
package ppg

import (
	"time"

	"github.com/pkg/errors"
)

// GateConfig contains the finger-presence heuristic constants.
type GateConfig struct {
	// RedMin is the minimum mean red value for a covered, illuminated lens.
	RedMin float64 `json:"red_min" yaml:"red_min"`
	// GreenRatioMax is the maximum green/red ratio.
	GreenRatioMax float64 `json:"green_ratio_max" yaml:"green_ratio_max"`
	// BlueRatioMax is the maximum blue/red ratio.
	BlueRatioMax float64 `json:"blue_ratio_max" yaml:"blue_ratio_max"`
}

// ConditionerConfig contains the baseline removal parameters.
type ConditionerConfig struct {
	// WindowSize is the number of prior red samples averaged into the baseline.
	WindowSize int `json:"window_size" yaml:"window_size"`
	// Gain scales the pulsatile component. It is not a physical unit.
	Gain float64 `json:"gain" yaml:"gain"`
}

// BeatConfig contains the beat detector parameters.
type BeatConfig struct {
	// Threshold is the conditioned value a rising edge must cross.
	Threshold float64 `json:"threshold" yaml:"threshold"`
	// MinBeatInterval is the refractory period (caps the rate at 60s/MinBeatInterval).
	MinBeatInterval time.Duration `json:"min_beat_interval" yaml:"min_beat_interval"`
	// MaxBeatInterval is the largest gap still converted into a rate.
	MaxBeatInterval time.Duration `json:"max_beat_interval" yaml:"max_beat_interval"`
}

// AggregatorConfig contains the BPM smoothing parameters.
type AggregatorConfig struct {
	// WindowSize is the number of recent beats averaged into the displayed BPM.
	WindowSize int `json:"window_size" yaml:"window_size"`
	// DisplayThreshold is the quality percent at which the BPM is exposed.
	DisplayThreshold int `json:"display_threshold" yaml:"display_threshold"`
}

// QualityConfig contains the signal-quality ramp parameters.
type QualityConfig struct {
	// WarmupFrames is the number of consecutive valid frames needed for 100%.
	WarmupFrames int `json:"warmup_frames" yaml:"warmup_frames"`
}

// Config contains every tunable constant of the pipeline.
//
// None of the defaults are calibrated against ground truth; treat them as a
// starting point for empirical tuning.
type Config struct {
	Gate        GateConfig        `json:"gate"        yaml:"gate"`
	Conditioner ConditionerConfig `json:"conditioner" yaml:"conditioner"`
	Beat        BeatConfig        `json:"beat"        yaml:"beat"`
	Aggregator  AggregatorConfig  `json:"aggregator"  yaml:"aggregator"`
	Quality     QualityConfig     `json:"quality"     yaml:"quality"`
}

// DefaultConfig returns the default pipeline configuration.
//
// Returns:
//   - Config: 60/0.6/0.6 gate, 15-sample baseline with gain 4, threshold 3,
//     300ms..1500ms beat intervals, 5-beat average shown at 80% quality after
//     a 50-frame warm-up.
//
// @example
// cfg := ppg.DefaultConfig()
// cfg.Beat.Threshold = 2.0
// state := ppg.NewState(cfg)
func DefaultConfig() Config {
	return Config{
		Gate: GateConfig{
			RedMin:        60,
			GreenRatioMax: 0.6,
			BlueRatioMax:  0.6,
		},
		Conditioner: ConditionerConfig{
			WindowSize: 15,
			Gain:       4,
		},
		Beat: BeatConfig{
			Threshold:       3,
			MinBeatInterval: 300 * time.Millisecond,
			MaxBeatInterval: 1500 * time.Millisecond,
		},
		Aggregator: AggregatorConfig{
			WindowSize:       5,
			DisplayThreshold: 80,
		},
		Quality: QualityConfig{
			WarmupFrames: 50,
		},
	}
}

// Validate reports the first configuration value that cannot drive the pipeline.
func (c Config) Validate() error {
	switch {
	case c.Gate.RedMin < 0 || c.Gate.RedMin > 255:
		return errors.Errorf("gate.red_min must be within [0, 255], got %v", c.Gate.RedMin)
	case c.Gate.GreenRatioMax <= 0:
		return errors.Errorf("gate.green_ratio_max must be positive, got %v", c.Gate.GreenRatioMax)
	case c.Gate.BlueRatioMax <= 0:
		return errors.Errorf("gate.blue_ratio_max must be positive, got %v", c.Gate.BlueRatioMax)
	case c.Conditioner.WindowSize <= 0:
		return errors.Errorf("conditioner.window_size must be positive, got %d", c.Conditioner.WindowSize)
	case c.Conditioner.Gain == 0:
		return errors.New("conditioner.gain must be non-zero")
	case c.Beat.MinBeatInterval <= 0:
		return errors.Errorf("beat.min_beat_interval must be positive, got %v", c.Beat.MinBeatInterval)
	case c.Beat.MaxBeatInterval <= c.Beat.MinBeatInterval:
		return errors.Errorf("beat.max_beat_interval (%v) must exceed beat.min_beat_interval (%v)",
			c.Beat.MaxBeatInterval, c.Beat.MinBeatInterval)
	case c.Aggregator.WindowSize <= 0:
		return errors.Errorf("aggregator.window_size must be positive, got %d", c.Aggregator.WindowSize)
	case c.Aggregator.DisplayThreshold < 0 || c.Aggregator.DisplayThreshold > 100:
		return errors.Errorf("aggregator.display_threshold must be within [0, 100], got %d", c.Aggregator.DisplayThreshold)
	case c.Quality.WarmupFrames <= 0:
		return errors.Errorf("quality.warmup_frames must be positive, got %d", c.Quality.WarmupFrames)
	}
	return nil
}

// MinBPM is the slowest rate the detector can emit.
func (c BeatConfig) MinBPM() float64 {
	return 60000 / durationMs(c.MaxBeatInterval)
}

// MaxBPM is the fastest rate the detector can emit.
func (c BeatConfig) MaxBPM() float64 {
	return 60000 / durationMs(c.MinBeatInterval)
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
