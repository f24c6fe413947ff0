// Package benchmark - Accuracy and throughput runs of the pipeline over synthetic traces.
package benchmark

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nvr-ai/go-ppg/images"
)

// Scenario describes one synthetic recording.
type Scenario struct {
	Name string `json:"name"`
	// BPM is the ground-truth heart rate of the trace.
	BPM float64 `json:"bpm"`
	// FPS is the simulated camera frame rate.
	FPS float64 `json:"fps"`
	// Noise is the half-width of the uniform noise on every channel.
	Noise float64 `json:"noise"`
	// Resolution is the frame size handed to the ROI sampler.
	Resolution images.Resolution `json:"resolution"`
	// ImageFormat round-trips every frame through the codec when set, as a
	// recorded session would be.
	ImageFormat images.ImageFormat `json:"image_format,omitempty"`
	// Frames is the number of frames processed.
	Frames int `json:"frames"`
	// Seed makes the trace reproducible.
	Seed int64 `json:"seed"`
}

// ScenarioBuilder helps build scenarios with a fluent API.
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a builder for a 20 second, 70 BPM, 30 FPS trace
// at 240p.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	res, _ := images.ResolutionByName("240p")
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			BPM:        70,
			FPS:        30,
			Noise:      0.1,
			Resolution: res,
			Frames:     600,
			Seed:       1,
		},
	}
}

// WithBPM sets the ground-truth heart rate.
func (sb *ScenarioBuilder) WithBPM(bpm float64) *ScenarioBuilder {
	sb.scenario.BPM = bpm
	return sb
}

// WithFPS sets the frame rate.
func (sb *ScenarioBuilder) WithFPS(fps float64) *ScenarioBuilder {
	sb.scenario.FPS = fps
	return sb
}

// WithNoise sets the channel noise.
func (sb *ScenarioBuilder) WithNoise(noise float64) *ScenarioBuilder {
	sb.scenario.Noise = noise
	return sb
}

// WithResolution sets the frame size.
func (sb *ScenarioBuilder) WithResolution(res images.Resolution) *ScenarioBuilder {
	sb.scenario.Resolution = res
	return sb
}

// WithImageFormat enables the codec round trip.
func (sb *ScenarioBuilder) WithImageFormat(format images.ImageFormat) *ScenarioBuilder {
	sb.scenario.ImageFormat = format
	return sb
}

// WithFrames sets the number of frames.
func (sb *ScenarioBuilder) WithFrames(frames int) *ScenarioBuilder {
	sb.scenario.Frames = frames
	return sb
}

// WithSeed sets the noise seed.
func (sb *ScenarioBuilder) WithSeed(seed int64) *ScenarioBuilder {
	sb.scenario.Seed = seed
	return sb
}

// Build returns the configured scenario.
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ScenarioSet represents a collection of related scenarios.
type ScenarioSet struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Scenarios   []Scenario `json:"scenarios"`
}

// QuickScenarios covers the resting and exercise range at the default frame size.
func QuickScenarios() *ScenarioSet {
	scenarios := make([]Scenario, 0, 4)
	for _, bpm := range []float64{50, 70, 100, 140} {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("bpm_%.0f", bpm)).
			WithBPM(bpm).
			Build())
	}
	return &ScenarioSet{
		Name:        "Quick Accuracy Test",
		Description: "Four heart rates at 30 FPS, 240p, no codec",
		Scenarios:   scenarios,
	}
}

// ComprehensiveScenarios crosses heart rates, frame rates, resolutions and formats.
func ComprehensiveScenarios() *ScenarioSet {
	scenarios := make([]Scenario, 0)
	for _, bpm := range []float64{45, 70, 120, 180} {
		for _, fps := range []float64{15, 30, 60} {
			for _, res := range images.Resolutions() {
				for _, format := range []images.ImageFormat{"", images.FormatJPEG, images.FormatPNG, images.FormatWebP} {
					name := fmt.Sprintf("bpm_%.0f_fps_%.0f_%s", bpm, fps, res.Name)
					if format != "" {
						name += "_" + string(format)
					}
					scenarios = append(scenarios, NewScenarioBuilder(name).
						WithBPM(bpm).
						WithFPS(fps).
						WithResolution(res).
						WithImageFormat(format).
						WithFrames(int(20*fps)).
						Build())
				}
			}
		}
	}
	return &ScenarioSet{
		Name:        "Comprehensive Test",
		Description: "All combinations of heart rate, frame rate, resolution and image format",
		Scenarios:   scenarios,
	}
}

// NoiseScenarios sweeps the channel noise at 70 BPM.
func NoiseScenarios() *ScenarioSet {
	scenarios := make([]Scenario, 0)
	for _, noise := range []float64{0, 0.1, 0.25, 0.5, 1} {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("noise_%.2f", noise)).
			WithNoise(noise).
			Build())
	}
	return &ScenarioSet{
		Name:        "Noise Sweep",
		Description: "Accuracy as channel noise grows",
		Scenarios:   scenarios,
	}
}

// SaveScenarioSet saves a scenario set to a JSON file.
func SaveScenarioSet(scenarioSet *ScenarioSet, filename string) error {
	data, err := json.MarshalIndent(scenarioSet, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scenario set: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write scenario file: %w", err)
	}
	return nil
}

// LoadScenarioSet loads a scenario set from a JSON file.
func LoadScenarioSet(filename string) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	var scenarioSet ScenarioSet
	if err := json.Unmarshal(data, &scenarioSet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenario set: %w", err)
	}
	return &scenarioSet, nil
}
