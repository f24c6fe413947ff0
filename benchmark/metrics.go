package benchmark

import "time"

// Result captures the accuracy and cost of one scenario run.
type Result struct {
	Scenario  Scenario  `json:"scenario"`
	Timestamp time.Time `json:"timestamp"`

	// ReadingBPM is the reading shown on the last frame, nil if it was hidden.
	ReadingBPM *int `json:"reading_bpm"`
	// ErrorBPM is ReadingBPM minus the ground truth, zero without a reading.
	ErrorBPM int `json:"error_bpm"`
	// FirstReadingFrame is the first frame that showed a reading, -1 if none did.
	FirstReadingFrame int `json:"first_reading_frame"`
	// Beats, MeanBPM and RMSSDMs come from the session summary.
	Beats   int     `json:"beats"`
	MeanBPM float64 `json:"mean_bpm"`
	RMSSDMs float64 `json:"rmssd_ms"`

	TotalDuration  time.Duration `json:"total_duration"`
	CodecDuration  time.Duration `json:"codec_duration"`
	SampleDuration time.Duration `json:"sample_duration"`
	TickDuration   time.Duration `json:"tick_duration"`
	// FramesPerSecond is the processing throughput, not the simulated frame rate.
	FramesPerSecond float64       `json:"frames_per_second"`
	ErrorRate       float64       `json:"error_rate"`
	MemoryStats     MemoryMetrics `json:"memory_stats"`
}

// Converged reports whether the run ended with a reading within tolerance.
func (r Result) Converged(tolerance int) bool {
	return r.ReadingBPM != nil && r.ErrorBPM >= -tolerance && r.ErrorBPM <= tolerance
}

// MemoryMetrics captures memory usage statistics.
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
}
