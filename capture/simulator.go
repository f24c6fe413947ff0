package capture

import (
	"context"
	"image"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/nvr-ai/go-ppg/synth"
	"github.com/pkg/errors"
)

// SimulatorConfig configures a synthetic fingertip camera.
type SimulatorConfig struct {
	// Trace is the PPG model painted into every frame.
	Trace synth.Config `json:"trace" yaml:"trace"`
	// Width and Height are the frame size.
	Width  int `json:"width"  yaml:"width"`
	Height int `json:"height" yaml:"height"`
	// Dither is the half-width of per-pixel noise added before 8-bit rounding,
	// so that the region mean keeps sub-unit resolution.
	Dither float64 `json:"dither" yaml:"dither"`
	// Illumination makes the simulated device expose a flash. Frames are dim
	// while the flash is off.
	Illumination bool `json:"illumination" yaml:"illumination"`
	// Realtime paces delivery at the trace FPS instead of as fast as the
	// consumer reads.
	Realtime bool `json:"realtime" yaml:"realtime"`
	// FailAcquire makes Acquire fail, for exercising error paths.
	FailAcquire bool `json:"-" yaml:"-"`
}

// DefaultSimulatorConfig returns a realtime 100x100 device without a flash.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Trace:    synth.DefaultConfig(),
		Width:    100,
		Height:   100,
		Dither:   2,
		Realtime: true,
	}
}

// unlitScale is how much of the light reaches the sensor without the flash.
const unlitScale = 0.25

// Simulator is a Source painting a synthetic PPG trace into uniform frames.
type Simulator struct {
	cfg SimulatorConfig

	mu     sync.Mutex
	gen    *synth.Generator
	rng    *rand.Rand
	lit    bool
	seq    uint64
	start  time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSimulator creates a simulator positioned at the start of its trace.
//
// Arguments:
//   - cfg: The trace and frame parameters.
//
// Returns:
//   - *Simulator: A source ready for Acquire, or for direct Next calls.
//
// @example
// sim := capture.NewSimulator(capture.DefaultSimulatorConfig())
// frames, err := sim.Acquire(ctx)
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 100, 100
	}
	return &Simulator{
		cfg:   cfg,
		gen:   synth.NewGenerator(cfg.Trace),
		rng:   rand.New(rand.NewSource(cfg.Trace.Seed + 1)),
		start: time.Now(),
	}
}

// SetContact places or lifts the simulated finger.
func (s *Simulator) SetContact(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen.SetContact(on)
}

// SetBPM changes the simulated heart rate.
func (s *Simulator) SetBPM(bpm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen.SetBPM(bpm)
}

// Next renders the next frame of the trace.
func (s *Simulator) Next() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	sample := s.gen.Next()
	scale := 1.0
	if s.cfg.Illumination && !s.lit {
		scale = unlitScale
	}

	img := image.NewRGBA(image.Rect(0, 0, s.cfg.Width, s.cfg.Height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = s.quantize(sample.Red * scale)
		img.Pix[i+1] = s.quantize(sample.Green * scale)
		img.Pix[i+2] = s.quantize(sample.Blue * scale)
		img.Pix[i+3] = 0xFF
	}

	frame := Frame{
		Seq:       s.seq,
		Timestamp: s.start.Add(time.Duration(sample.TimestampMs * float64(time.Millisecond))),
		Image:     img,
	}
	s.seq++
	return frame
}

func (s *Simulator) quantize(v float64) uint8 {
	if s.cfg.Dither > 0 {
		v += s.cfg.Dither * (2*s.rng.Float64() - 1)
	}
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

// Acquire starts the frame goroutine.
func (s *Simulator) Acquire(ctx context.Context) (<-chan Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.FailAcquire {
		return nil, errors.Wrap(ErrAcquisition, "simulated device unavailable")
	}
	if s.cancel != nil {
		return nil, errors.Wrap(ErrAcquisition, "simulator already acquired")
	}

	slog.Info("capture: simulator started",
		"bpm", s.cfg.Trace.BPM,
		"fps", s.cfg.Trace.FPS,
		"illumination", s.cfg.Illumination,
	)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	frames := make(chan Frame, frameBuffer)
	go s.run(runCtx, frames, s.done)

	return frames, nil
}

func (s *Simulator) run(ctx context.Context, frames chan<- Frame, done chan<- struct{}) {
	defer close(done)
	defer close(frames)

	var tick <-chan time.Time
	if s.cfg.Realtime {
		fps := s.cfg.Trace.FPS
		if fps <= 0 {
			fps = 30
		}
		ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-tick:
			}
		}
		frame := s.Next()

		if s.cfg.Realtime {
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			default:
				slog.Debug("capture: dropping simulated frame, channel full", "seq", frame.Seq)
			}
			continue
		}
		select {
		case frames <- frame:
		case <-ctx.Done():
			return
		}
	}
}

// Release stops the frame goroutine and switches the flash off.
func (s *Simulator) Release() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.lit = false
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if !waitTimeout(done) {
		slog.Warn("capture: simulator release timeout exceeded")
	}
	return nil
}

// SupportsIllumination reports whether the simulated device has a flash.
func (s *Simulator) SupportsIllumination() bool {
	return s.cfg.Illumination
}

// SetIllumination switches the simulated flash.
func (s *Simulator) SetIllumination(on bool) error {
	if !s.cfg.Illumination {
		return ErrIlluminationUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lit = on
	return nil
}

// Illuminated reports whether the simulated flash is on.
func (s *Simulator) Illuminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lit
}
