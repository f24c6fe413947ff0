package ppg

// RedWindow is a fixed-length ring buffer of the most recent red values.
//
// It holds the trailing baseline for the conditioner. The zero value is unusable;
// construct it with NewRedWindow.
type RedWindow struct {
	values []float64
	next   int
	count  int
	sum    float64
}

// NewRedWindow creates an empty window holding at most size values.
func NewRedWindow(size int) *RedWindow {
	if size <= 0 {
		size = 1
	}
	return &RedWindow{values: make([]float64, size)}
}

// Push appends a value, evicting the oldest one once the window is full.
func (w *RedWindow) Push(v float64) {
	if w.count == len(w.values) {
		w.sum -= w.values[w.next]
	} else {
		w.count++
	}
	w.values[w.next] = v
	w.sum += v
	w.next = (w.next + 1) % len(w.values)
}

// Full reports whether the window has reached its capacity.
func (w *RedWindow) Full() bool {
	return w.count == len(w.values)
}

// Len returns the number of values held.
func (w *RedWindow) Len() int {
	return w.count
}

// Mean returns the mean of the held values, or 0 when empty.
func (w *RedWindow) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

// Values returns a copy of the held values, oldest first.
func (w *RedWindow) Values() []float64 {
	out := make([]float64, 0, w.count)
	start := (w.next - w.count + len(w.values)) % len(w.values)
	for i := 0; i < w.count; i++ {
		out = append(out, w.values[(start+i)%len(w.values)])
	}
	return out
}

// Reset empties the window.
func (w *RedWindow) Reset() {
	for i := range w.values {
		w.values[i] = 0
	}
	w.next, w.count, w.sum = 0, 0, 0
}

// Condition isolates the pulsatile component of the current red value.
//
// The baseline is the mean of the trailing window. A beat darkens the red
// channel, so the current value is subtracted from the baseline: every beat
// becomes a positive-going peak.
//
// Arguments:
//   - current: The red mean of the current frame.
//   - window: The prior red values (excluding current).
//   - gain: The amplification applied to the difference.
//
// Returns:
//   - float64: (mean(window) - current) * gain, or 0 when window is empty.
//
// @example
// v := ppg.Condition(198, []float64{200, 201, 199}, 4) // 8
func Condition(current float64, window []float64, gain float64) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, v := range window {
		sum += v
	}
	return (sum/float64(len(window)) - current) * gain
}
