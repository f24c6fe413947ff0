// Package synth - Synthetic fingertip PPG traces for demos and tests.
//
// The model is deliberately simple and not physiological: a steady red-dominant
// baseline, a narrow gaussian darkening at each systole, a slow respiratory
// drift and bounded uniform noise. Pulse width is fixed in time, so the trace
// stays well-formed across the whole 40-200 BPM range.
package synth

import (
	"math"
	"math/rand"
)

// Sample is one frame's worth of ROI channel means.
type Sample struct {
	TimestampMs float64
	Red         float64
	Green       float64
	Blue        float64
}

// Config parameterizes a PPG trace.
type Config struct {
	// FPS is the frame rate the generator advances at.
	FPS float64 `json:"fps" yaml:"fps"`
	// BPM is the simulated heart rate.
	BPM float64 `json:"bpm" yaml:"bpm"`
	// Red, Green, Blue are the baseline channel levels under finger contact.
	Red   float64 `json:"red"   yaml:"red"`
	Green float64 `json:"green" yaml:"green"`
	Blue  float64 `json:"blue"  yaml:"blue"`
	// Amplitude is the red darkening at the peak of each pulse.
	Amplitude float64 `json:"amplitude" yaml:"amplitude"`
	// PulseWidthMs is the gaussian sigma of a pulse.
	PulseWidthMs float64 `json:"pulse_width_ms" yaml:"pulse_width_ms"`
	// DriftAmplitude and DriftHz shape the slow baseline wander.
	DriftAmplitude float64 `json:"drift_amplitude" yaml:"drift_amplitude"`
	DriftHz        float64 `json:"drift_hz"        yaml:"drift_hz"`
	// Noise is the half-width of the uniform noise added to every channel.
	Noise float64 `json:"noise" yaml:"noise"`
	// Seed makes the noise reproducible.
	Seed int64 `json:"seed" yaml:"seed"`
}

// DefaultConfig returns a 70 BPM trace at 30 FPS.
func DefaultConfig() Config {
	return Config{
		FPS:            30,
		BPM:            70,
		Red:            200,
		Green:          40,
		Blue:           30,
		Amplitude:      3,
		PulseWidthMs:   60,
		DriftAmplitude: 0.5,
		DriftHz:        0.2,
		Noise:          0.1,
		Seed:           1,
	}
}

// Uncovered is what an uncovered lens sees in a dim room.
var Uncovered = Sample{Red: 10, Green: 10, Blue: 10}

// Generator produces a PPG trace one frame at a time.
//
// It is not safe for concurrent use.
type Generator struct {
	cfg     Config
	rng     *rand.Rand
	phase   float64
	nowMs   float64
	contact bool
}

// NewGenerator creates a generator with the finger in contact.
//
// Arguments:
//   - cfg: The trace parameters. Non-positive FPS falls back to 30.
//
// Returns:
//   - *Generator: A generator positioned at t=0, a quarter cycle before the
//     first pulse.
//
// @example
// gen := synth.NewGenerator(synth.DefaultConfig())
// s := gen.Next()
func NewGenerator(cfg Config) *Generator {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	return &Generator{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		phase:   0.25,
		contact: true,
	}
}

// SetContact places (true) or lifts (false) the simulated finger.
func (g *Generator) SetContact(on bool) {
	g.contact = on
}

// Contact reports whether the finger is placed.
func (g *Generator) Contact() bool {
	return g.contact
}

// SetBPM changes the heart rate from the next frame on.
func (g *Generator) SetBPM(bpm float64) {
	g.cfg.BPM = bpm
}

// FrameIntervalMs is the timestamp step between two frames.
func (g *Generator) FrameIntervalMs() float64 {
	return 1000 / g.cfg.FPS
}

// Next returns the sample at the current time and advances one frame.
func (g *Generator) Next() Sample {
	out := g.at(g.nowMs)

	dt := g.FrameIntervalMs()
	g.nowMs += dt
	g.phase += dt * g.cfg.BPM / 60000
	g.phase -= math.Floor(g.phase)
	return out
}

func (g *Generator) at(ms float64) Sample {
	if !g.contact {
		return Sample{
			TimestampMs: ms,
			Red:         clamp(Uncovered.Red + g.noise()),
			Green:       clamp(Uncovered.Green + g.noise()),
			Blue:        clamp(Uncovered.Blue + g.noise()),
		}
	}

	pulse := 0.0
	if g.cfg.BPM > 0 {
		// Pulse centers sit at phase 0.5 of each cycle.
		cycleMs := 60000 / g.cfg.BPM
		pulse = gauss((g.phase-0.5)*cycleMs, g.cfg.PulseWidthMs)
	}
	drift := g.cfg.DriftAmplitude * math.Sin(2*math.Pi*g.cfg.DriftHz*ms/1000)

	return Sample{
		TimestampMs: ms,
		Red:         clamp(g.cfg.Red - g.cfg.Amplitude*pulse + drift + g.noise()),
		Green:       clamp(g.cfg.Green - 0.2*g.cfg.Amplitude*pulse + g.noise()),
		Blue:        clamp(g.cfg.Blue + g.noise()),
	}
}

func (g *Generator) noise() float64 {
	if g.cfg.Noise == 0 {
		return 0
	}
	return g.cfg.Noise * (2*g.rng.Float64() - 1)
}

func gauss(x, sigma float64) float64 {
	if sigma <= 0 {
		return 0
	}
	z := x / sigma
	return math.Exp(-0.5 * z * z)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(255, v))
}
