package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/nvr-ai/go-ppg/capture"
	"github.com/nvr-ai/go-ppg/images"
	"github.com/nvr-ai/go-ppg/ppg"
	"github.com/nvr-ai/go-ppg/synth"
)

// Suite manages and executes benchmark scenarios.
type Suite struct {
	pipeline  ppg.Config
	roi       images.ROIOptions
	outputDir string

	mu        sync.RWMutex
	scenarios []Scenario
	results   []Result
}

// NewSuite creates a suite running the given pipeline configuration.
//
// Arguments:
//   - pipeline: The DSP constants under test.
//   - roi: The sampling options under test.
//   - outputDir: Where SaveResults writes; empty disables saving.
//
// Returns:
//   - *Suite: An empty suite.
func NewSuite(pipeline ppg.Config, roi images.ROIOptions, outputDir string) *Suite {
	return &Suite{pipeline: pipeline, roi: roi, outputDir: outputDir}
}

// AddScenario adds a scenario to the suite.
func (s *Suite) AddScenario(scenario Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios = append(s.scenarios, scenario)
}

// AddScenarioSet adds every scenario of a set.
func (s *Suite) AddScenarioSet(set *ScenarioSet) {
	for _, scenario := range set.Scenarios {
		s.AddScenario(scenario)
	}
}

// Results returns the results collected so far.
func (s *Suite) Results() []Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Result(nil), s.results...)
}

// Run executes every scenario in order and stops at the first error.
func (s *Suite) Run(ctx context.Context) ([]Result, error) {
	s.mu.RLock()
	scenarios := append([]Scenario(nil), s.scenarios...)
	s.mu.RUnlock()

	for _, scenario := range scenarios {
		res, err := s.RunScenario(ctx, scenario)
		if err != nil {
			return s.Results(), fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		s.mu.Lock()
		s.results = append(s.results, *res)
		s.mu.Unlock()
	}
	return s.Results(), nil
}

// RunScenario renders the scenario's frames and feeds them through the
// sampler and the pipeline, timing each stage.
//
// Arguments:
//   - ctx: Cancels the run between frames.
//   - scenario: The trace to run.
//
// Returns:
//   - *Result: Accuracy and cost of the run.
//   - error: A cancelled context or an invalid scenario.
func (s *Suite) RunScenario(ctx context.Context, scenario Scenario) (*Result, error) {
	if scenario.Frames <= 0 || scenario.FPS <= 0 {
		return nil, fmt.Errorf("invalid scenario: frames=%d fps=%v", scenario.Frames, scenario.FPS)
	}

	trace := synth.DefaultConfig()
	trace.BPM = scenario.BPM
	trace.FPS = scenario.FPS
	trace.Noise = scenario.Noise
	trace.Seed = scenario.Seed

	sim := capture.NewSimulator(capture.SimulatorConfig{
		Trace:  trace,
		Width:  scenario.Resolution.Width,
		Height: scenario.Resolution.Height,
		Dither: 2,
	})
	state := ppg.NewState(s.pipeline)
	var summary ppg.SummaryRecorder

	result := &Result{Scenario: scenario, Timestamp: time.Now(), FirstReadingFrame: -1}
	errors := 0

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)
	start := time.Now()

	for i := 0; i < scenario.Frames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame := sim.Next()
		img := frame.Image
		if scenario.ImageFormat != "" {
			t := time.Now()
			decoded, err := roundTrip(img, scenario.ImageFormat)
			result.CodecDuration += time.Since(t)
			if err != nil {
				errors++
				continue
			}
			img = decoded
		}

		t := time.Now()
		means, err := images.SampleROI(img, s.roi)
		result.SampleDuration += time.Since(t)
		if err != nil {
			errors++
			continue
		}

		sample := ppg.ChannelSample{
			TimestampMs: frame.TimestampMs(),
			Red:         means.Red,
			Green:       means.Green,
			Blue:        means.Blue,
		}
		t = time.Now()
		tick, err := state.Tick(sample, s.pipeline)
		result.TickDuration += time.Since(t)
		if err != nil {
			summary.Drop()
			errors++
			continue
		}
		summary.Observe(sample, tick)

		result.ReadingBPM = tick.BPM
		if tick.BPM != nil && result.FirstReadingFrame < 0 {
			result.FirstReadingFrame = i
		}
	}

	result.TotalDuration = time.Since(start)
	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	if result.ReadingBPM != nil {
		result.ErrorBPM = *result.ReadingBPM - int(math.Round(scenario.BPM))
	}
	sum := summary.Summary()
	result.Beats = sum.Beats
	result.MeanBPM = sum.MeanBPM
	result.RMSSDMs = sum.RMSSDMs
	result.FramesPerSecond = float64(scenario.Frames) / result.TotalDuration.Seconds()
	result.ErrorRate = float64(errors) / float64(scenario.Frames)
	result.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
	}
	return result, nil
}

// SaveResults writes the collected results to a timestamped JSON file.
//
// Returns:
//   - string: The written path.
//   - error: A marshal or write error.
func (s *Suite) SaveResults() (string, error) {
	if s.outputDir == "" {
		return "", fmt.Errorf("no output directory configured")
	}
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(s.Results(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal results: %w", err)
	}
	path := filepath.Join(s.outputDir, fmt.Sprintf("results-%s.json", time.Now().Format("20060102-150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write results: %w", err)
	}
	return path, nil
}

// PrintReport prints one line per result.
func (s *Suite) PrintReport(tolerance int) {
	results := s.Results()
	converged := 0

	fmt.Printf("\n📊 Benchmark Results\n")
	fmt.Printf("=====================================\n")
	for _, r := range results {
		status := "❌"
		if r.Converged(tolerance) {
			status = "✅"
			converged++
		}
		reading := "—"
		if r.ReadingBPM != nil {
			reading = fmt.Sprintf("%d", *r.ReadingBPM)
		}
		fmt.Printf("%s %-32s truth %5.1f | reading %4s | error %+3d | first %4d | %8.1f fps\n",
			status, r.Scenario.Name, r.Scenario.BPM, reading, r.ErrorBPM, r.FirstReadingFrame, r.FramesPerSecond)
	}
	fmt.Printf("=====================================\n")
	fmt.Printf("%d/%d scenarios within ±%d BPM\n", converged, len(results), tolerance)
}

func roundTrip(img image.Image, format images.ImageFormat) (image.Image, error) {
	encoded, err := images.NewImage(img, format)
	if err != nil {
		return nil, err
	}
	return encoded.Decode()
}
