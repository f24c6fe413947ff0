// Package ppg - Camera photoplethysmography pipeline: finger gating, baseline
// removal, beat detection, BPM averaging and signal quality.
//
// Every stage is a pure function over explicit inputs, or a small value owned by
// the caller. Nothing in this package holds global state, spawns goroutines or
// performs I/O, so a single State can be driven deterministically from tests.
//
// Pipeline Overview:
//
// ┌────────────────┐
// │ ChannelSample  │  (ROI red/green/blue means, one per frame)
// └──────┬─────────┘
// ┌────────────────────────────┐
// │ Finger-Presence Gate       │──► QualityState (ramp / instant reset)
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Signal Conditioner         │  (trailing mean − red) × gain
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Beat Detector              │  rising edge + refractory + max gap
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ BPM Aggregator             │  round(mean(last N)) gated by quality
// └────────────────────────────┘
package ppg

import (
	"math"

	"github.com/pkg/errors"
)

var (
	// ErrOutOfOrder is returned when a sample is older than the previous one.
	ErrOutOfOrder = errors.New("ppg: out-of-order sample")
	// ErrMalformedSample is returned when a sample carries channel values outside [0, 255].
	ErrMalformedSample = errors.New("ppg: malformed sample")
)

// ChannelSample is the ROI reduction of one frame.
type ChannelSample struct {
	// TimestampMs is the capture time of the frame in milliseconds.
	TimestampMs float64 `json:"timestamp_ms"`
	// Red is the mean red value over the ROI.
	Red float64 `json:"red"`
	// Green is the mean green value over the ROI.
	Green float64 `json:"green"`
	// Blue is the mean blue value over the ROI.
	Blue float64 `json:"blue"`
}

// Validate checks that every channel lies in [0, 255] and the timestamp is finite.
//
// Returns:
//   - error: ErrMalformedSample wrapped with the offending field, or nil.
func (s ChannelSample) Validate() error {
	if math.IsNaN(s.TimestampMs) || math.IsInf(s.TimestampMs, 0) {
		return errors.Wrap(ErrMalformedSample, "timestamp is not finite")
	}
	channels := []struct {
		name  string
		value float64
	}{
		{"red", s.Red},
		{"green", s.Green},
		{"blue", s.Blue},
	}
	for _, c := range channels {
		if math.IsNaN(c.value) || c.value < 0 || c.value > 255 {
			return errors.Wrapf(ErrMalformedSample, "%s=%v", c.name, c.value)
		}
	}
	return nil
}

// ConditionedSample is the baseline-removed, sign-inverted pulsatile value.
type ConditionedSample struct {
	TimestampMs float64 `json:"timestamp_ms"`
	Value       float64 `json:"value"`
}

// Beat is a confirmed heartbeat together with the rate implied by the gap to
// the previous confirmed beat.
type Beat struct {
	TimestampMs      float64 `json:"timestamp_ms"`
	InstantaneousBPM float64 `json:"instantaneous_bpm"`
}

// QualityState tracks finger contact continuity.
type QualityState struct {
	ConsecutiveValidFrames int `json:"consecutive_valid_frames"`
	QualityPercent         int `json:"quality_percent"`
}
