package ppg

import "math"

// BPMWindow keeps the most recent instantaneous rates.
type BPMWindow struct {
	values []float64
	size   int
}

// NewBPMWindow creates an empty window of the given size.
func NewBPMWindow(size int) *BPMWindow {
	if size <= 0 {
		size = 1
	}
	return &BPMWindow{values: make([]float64, 0, size), size: size}
}

// Push adds a rate, dropping the oldest once the window is full.
func (w *BPMWindow) Push(bpm float64) {
	if len(w.values) == w.size {
		copy(w.values, w.values[1:])
		w.values = w.values[:w.size-1]
	}
	w.values = append(w.values, bpm)
}

// Values returns a copy of the held rates, oldest first.
func (w *BPMWindow) Values() []float64 {
	out := make([]float64, len(w.values))
	copy(out, w.values)
	return out
}

// Len returns the number of rates held.
func (w *BPMWindow) Len() int {
	return len(w.values)
}

// Reset empties the window.
func (w *BPMWindow) Reset() {
	w.values = w.values[:0]
}

// AverageBPM rounds the mean of the given rates.
//
// Returns:
//   - int: round(mean(values)).
//   - bool: false when values is empty.
func AverageBPM(values []float64) (int, bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return int(math.Round(sum / float64(len(values)))), true
}

// DisplayBPM returns the reading to expose, or nil while quality is below the
// display threshold or no beat has been confirmed yet.
func DisplayBPM(values []float64, qualityPercent int, cfg AggregatorConfig) *int {
	if qualityPercent < cfg.DisplayThreshold {
		return nil
	}
	bpm, ok := AverageBPM(values)
	if !ok {
		return nil
	}
	return &bpm
}
