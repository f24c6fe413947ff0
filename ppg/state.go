// Package ppg - Per-frame pipeline tick.
package ppg

import "github.com/pkg/errors"

// TickResult is everything one frame produced.
type TickResult struct {
	// FingerPresent is the gate verdict for the frame.
	FingerPresent bool `json:"finger_present"`
	// Conditioned is nil while the baseline window warms up or on invalid frames.
	Conditioned *ConditionedSample `json:"conditioned,omitempty"`
	// Beat is non-nil when the frame confirmed a beat.
	Beat *Beat `json:"beat,omitempty"`
	// Quality is the quality state after the frame.
	Quality QualityState `json:"quality"`
	// BPM is the reading to expose, nil while it must be hidden.
	BPM *int `json:"bpm,omitempty"`
}

// State holds the rolling buffers of one measurement session.
//
// It is not safe for concurrent use; the session controller serializes ticks.
type State struct {
	red      *RedWindow
	detector DetectorState
	bpm      *BPMWindow
	quality  QualityState

	lastTimestampMs float64
	hasTimestamp    bool
}

// NewState creates empty buffers sized from cfg.
//
// Arguments:
//   - cfg: The pipeline configuration. Window sizes are fixed at construction.
//
// Returns:
//   - *State: A state ready for the first Tick.
//
// @example
// cfg := ppg.DefaultConfig()
// st := ppg.NewState(cfg)
//
//	for _, s := range samples {
//	    res, err := st.Tick(s, cfg)
//	    ...
//	}
func NewState(cfg Config) *State {
	return &State{
		red: NewRedWindow(cfg.Conditioner.WindowSize),
		bpm: NewBPMWindow(cfg.Aggregator.WindowSize),
	}
}

// Reset discards every buffer, as at session start.
func (s *State) Reset() {
	s.red.Reset()
	s.bpm.Reset()
	s.detector = DetectorState{}
	s.quality = QualityState{}
	s.lastTimestampMs, s.hasTimestamp = 0, false
}

// Quality returns the current quality state.
func (s *State) Quality() QualityState {
	return s.quality
}

// RecentBPM returns the rates currently averaged into the reading.
func (s *State) RecentBPM() []float64 {
	return s.bpm.Values()
}

// Tick runs one synchronous pass of the pipeline over a frame's ROI means.
//
// Order: validation, ordering check, finger gate, quality update, then (only on
// valid frames) conditioning, beat detection and aggregation. An invalid frame
// clears the red baseline and detector memory because the gap in contact would
// corrupt interval math. The BPM window survives so the reading comes back as
// soon as quality recovers.
//
// Arguments:
//   - sample: The ROI means of the frame.
//   - cfg: The pipeline configuration.
//
// Returns:
//   - TickResult: What the frame produced.
//   - error: ErrMalformedSample or ErrOutOfOrder; state is untouched in both cases.
func (s *State) Tick(sample ChannelSample, cfg Config) (TickResult, error) {
	if err := sample.Validate(); err != nil {
		return TickResult{}, err
	}
	if s.hasTimestamp && sample.TimestampMs < s.lastTimestampMs {
		return TickResult{}, errors.Wrapf(ErrOutOfOrder, "%.3fms after %.3fms",
			sample.TimestampMs, s.lastTimestampMs)
	}
	s.lastTimestampMs, s.hasTimestamp = sample.TimestampMs, true

	present := IsFingerPresent(sample, cfg.Gate)
	s.quality = UpdateQuality(s.quality, present, cfg.Quality)

	res := TickResult{FingerPresent: present, Quality: s.quality}
	if !present {
		s.red.Reset()
		s.detector = DetectorState{}
	} else {
		if s.red.Full() {
			c := ConditionedSample{
				TimestampMs: sample.TimestampMs,
				Value:       Condition(sample.Red, s.red.Values(), cfg.Conditioner.Gain),
			}
			res.Conditioned = &c

			var beat *Beat
			s.detector, beat = DetectBeat(s.detector, c, cfg.Beat)
			if beat != nil {
				s.bpm.Push(beat.InstantaneousBPM)
				res.Beat = beat
			}
		}
		s.red.Push(sample.Red)
	}

	res.BPM = DisplayBPM(s.bpm.Values(), s.quality.QualityPercent, cfg.Aggregator)
	return res, nil
}
