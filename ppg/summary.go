// Package ppg - Session summary statistics.
package ppg

import "math"

// Summary describes a finished or running measurement session.
type Summary struct {
	// Frames is the number of frames that completed a tick.
	Frames int `json:"frames"`
	// Dropped is the number of frames rejected as malformed or out of order.
	Dropped int `json:"dropped"`
	// ContactRatio is the fraction of ticked frames that passed the finger gate.
	ContactRatio float64 `json:"contact_ratio"`
	// Beats is the number of confirmed beats.
	Beats int `json:"beats"`
	// MeanBPM, MinBPM and MaxBPM summarize the instantaneous rates.
	MeanBPM float64 `json:"mean_bpm"`
	MinBPM  float64 `json:"min_bpm"`
	MaxBPM  float64 `json:"max_bpm"`
	// RMSSDMs is the root mean square of successive inter-beat interval differences.
	RMSSDMs float64 `json:"rmssd_ms"`
	// DurationMs spans the first and last ticked frame.
	DurationMs float64 `json:"duration_ms"`
	// FPS is the mean ticked frame rate.
	FPS float64 `json:"fps"`
}

// SummaryRecorder accumulates a Summary from tick results.
type SummaryRecorder struct {
	frames    int
	dropped   int
	contact   int
	beats     []Beat
	firstMs   float64
	lastMs    float64
	hasFrames bool
}

// Observe records one successful tick.
func (r *SummaryRecorder) Observe(sample ChannelSample, res TickResult) {
	if !r.hasFrames {
		r.firstMs, r.hasFrames = sample.TimestampMs, true
	}
	r.lastMs = sample.TimestampMs
	r.frames++
	if res.FingerPresent {
		r.contact++
	}
	if res.Beat != nil {
		r.beats = append(r.beats, *res.Beat)
	}
}

// Drop records one rejected frame.
func (r *SummaryRecorder) Drop() {
	r.dropped++
}

// Summary computes the statistics recorded so far.
//
// Statistics that need more data than recorded are reported as zero rather
// than NaN so the summary always encodes to JSON.
func (r *SummaryRecorder) Summary() Summary {
	out := Summary{
		Frames:  r.frames,
		Dropped: r.dropped,
		Beats:   len(r.beats),
	}
	if r.frames > 0 {
		out.ContactRatio = float64(r.contact) / float64(r.frames)
		out.DurationMs = r.lastMs - r.firstMs
		if out.DurationMs > 0 {
			out.FPS = float64(r.frames-1) / (out.DurationMs / 1000)
		}
	}
	if len(r.beats) == 0 {
		return out
	}

	rates := make([]float64, len(r.beats))
	intervals := make([]float64, len(r.beats))
	for i, b := range r.beats {
		rates[i] = b.InstantaneousBPM
		intervals[i] = 60000 / b.InstantaneousBPM
	}
	out.MeanBPM = mean(rates)
	out.MinBPM, out.MaxBPM = minMax(rates)
	out.RMSSDMs = rmssd(intervals)
	return out
}

func mean(data []float64) float64 {
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

func minMax(data []float64) (float64, float64) {
	lo, hi := data[0], data[0]
	for _, v := range data[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// rmssd is zero for fewer than two intervals.
func rmssd(intervals []float64) float64 {
	if len(intervals) < 2 {
		return 0
	}
	var sumSquares float64
	for i := 1; i < len(intervals); i++ {
		d := intervals[i] - intervals[i-1]
		sumSquares += d * d
	}
	return math.Sqrt(sumSquares / float64(len(intervals)-1))
}
