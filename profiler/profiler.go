// Package profiler - Pipeline timing and metric tracking with periodic reports.
package profiler

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Collector supplies metrics sampled on every profiler tick.
type Collector interface {
	CollectMetrics() map[string]float64
}

// Options configures a Profiler.
type Options struct {
	// ReportInterval specifies how often to log a report (default: 10s).
	ReportInterval time.Duration `json:"report_interval" yaml:"report_interval"`
	// SampleInterval specifies how often collectors are sampled (default: 1s).
	SampleInterval time.Duration `json:"sample_interval" yaml:"sample_interval"`
	// MaxSamples bounds the history kept per metric (default: 600).
	MaxSamples int `json:"max_samples" yaml:"max_samples"`
}

// Stat summarizes the retained history of one metric or operation.
type Stat struct {
	Last    float64 `json:"last"`
	Avg     float64 `json:"avg"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Samples int     `json:"samples"`
	Count   int64   `json:"count"`
}

// Snapshot is a point-in-time view of the profiler.
type Snapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	HeapAlloc     uint64  `json:"heap_alloc_bytes"`
	GCCycles      uint32  `json:"gc_cycles"`
	// Metrics holds recorded and collected values.
	Metrics map[string]Stat `json:"metrics"`
	// Operations holds operation durations in milliseconds.
	Operations map[string]Stat `json:"operations_ms"`
}

// series is a bounded history with running aggregates.
type series struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
}

func (s *series) add(v float64, limit int) {
	if s.count == 0 {
		s.min, s.max = v, v
	}
	s.values = append(s.values, v)
	s.sum += v
	if len(s.values) > limit {
		s.sum -= s.values[0]
		s.values = s.values[1:]
	}
	s.count++
	s.min = math.Min(s.min, v)
	s.max = math.Max(s.max, v)
}

func (s *series) stat() Stat {
	n := len(s.values)
	if n == 0 {
		return Stat{}
	}
	return Stat{
		Last:    s.values[n-1],
		Avg:     s.sum / float64(n),
		Min:     s.min,
		Max:     s.max,
		Samples: n,
		Count:   s.count,
	}
}

// Profiler tracks per-operation timings and named metrics.
//
// Every method is safe for concurrent use. A nil *Profiler is valid and
// records nothing, so callers can leave profiling unconfigured.
type Profiler struct {
	opts Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.RWMutex
	running    bool
	startTime  time.Time
	metrics    map[string]*series
	operations map[string]*series
	collectors []Collector
}

// New creates a stopped profiler.
//
// Arguments:
// - opts: Configuration options; zero values take defaults.
//
// Returns:
// - A configured Profiler instance
func New(opts Options) *Profiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 10 * time.Second
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = time.Second
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Profiler{
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		startTime:  time.Now(),
		metrics:    make(map[string]*series),
		operations: make(map[string]*series),
	}
}

// Start launches the sampling and reporting goroutines. Calling it twice is a no-op.
func (p *Profiler) Start() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.startTime = time.Now()

	p.wg.Add(2)
	go p.loop(p.opts.SampleInterval, p.sample)
	go p.loop(p.opts.ReportInterval, p.report)
}

// Stop halts the goroutines and waits for them.
func (p *Profiler) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

func (p *Profiler) loop(interval time.Duration, fn func()) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// AddCollector registers a collector sampled every SampleInterval.
func (p *Profiler) AddCollector(c Collector) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collectors = append(p.collectors, c)
}

// RecordMetric records a metric value.
//
// Arguments:
// - name: The name of the metric
// - value: The metric value to record
func (p *Profiler) RecordMetric(name string, value float64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(p.metrics, name, value)
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
//
// @example
// done := prof.StartOperation("tick")
// defer done()
func (p *Profiler) StartOperation(name string) func() {
	if p == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		ms := float64(time.Since(start)) / float64(time.Millisecond)
		p.mu.Lock()
		defer p.mu.Unlock()
		p.record(p.operations, name, ms)
	}
}

func (p *Profiler) record(into map[string]*series, name string, value float64) {
	s, ok := into[name]
	if !ok {
		s = &series{}
		into[name] = s
	}
	s.add(value, p.opts.MaxSamples)
}

// sample pulls every collector. Collectors are called without the lock held
// so they may read their own state freely.
func (p *Profiler) sample() {
	p.mu.RLock()
	collectors := append([]Collector(nil), p.collectors...)
	p.mu.RUnlock()

	for _, c := range collectors {
		for name, value := range c.CollectMetrics() {
			p.RecordMetric(name, value)
		}
	}
}

// Snapshot returns the current statistics.
func (p *Profiler) Snapshot() Snapshot {
	if p == nil {
		return Snapshot{Metrics: map[string]Stat{}, Operations: map[string]Stat{}}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(p.startTime).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		HeapAlloc:     mem.HeapAlloc,
		GCCycles:      mem.NumGC,
		Metrics:       make(map[string]Stat, len(p.metrics)),
		Operations:    make(map[string]Stat, len(p.operations)),
	}
	for name, s := range p.metrics {
		snap.Metrics[name] = s.stat()
	}
	for name, s := range p.operations {
		snap.Operations[name] = s.stat()
	}
	return snap
}

// report logs the snapshot, one line per metric and operation.
func (p *Profiler) report() {
	snap := p.Snapshot()

	slog.Info("profiler: status report",
		"uptime", time.Duration(snap.UptimeSeconds*float64(time.Second)).Truncate(time.Millisecond),
		"goroutines", snap.Goroutines,
		"heap_alloc", formatBytes(snap.HeapAlloc),
		"gc_cycles", snap.GCCycles,
	)
	for _, name := range sortedKeys(snap.Metrics) {
		s := snap.Metrics[name]
		slog.Info("profiler: metric", "name", name, "last", s.Last, "avg", s.Avg, "min", s.Min, "max", s.Max, "samples", s.Samples)
	}
	for _, name := range sortedKeys(snap.Operations) {
		s := snap.Operations[name]
		slog.Info("profiler: operation", "name", name, "avg_ms", s.Avg, "min_ms", s.Min, "max_ms", s.Max, "count", s.Count)
	}
}

func sortedKeys(m map[string]Stat) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return strconv.FormatUint(bytes, 10) + " B"
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(bytes)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "B"
}
