package ppg

// DetectorState is the beat detector's memory between samples.
//
// The zero value is the state at session start: no previous value and no
// confirmed beat.
type DetectorState struct {
	// LastBeatMs is the timestamp of the last accepted crossing.
	LastBeatMs float64
	// HasLastBeat is false until the first crossing of the session.
	HasLastBeat bool
	// PrevValue is the previous conditioned value, used for edge detection.
	PrevValue float64
	// HasPrev is false until the first conditioned sample.
	HasPrev bool
}

// DetectBeat advances the detector by one conditioned sample.
//
// A candidate is a rising edge through cfg.Threshold. Candidates no later than
// MinBeatInterval after the last accepted crossing are ringing and ignored
// outright. Otherwise the crossing is accepted and LastBeatMs moves to it. A
// Beat is emitted only when a previous crossing exists and the gap is below
// MaxBeatInterval, which keeps the rate inside [MinBPM, MaxBPM].
//
// Arguments:
//   - st: The detector state after the previous sample.
//   - s: The conditioned sample to evaluate.
//   - cfg: The detector constants.
//
// Returns:
//   - DetectorState: The updated state.
//   - *Beat: The confirmed beat, or nil.
func DetectBeat(st DetectorState, s ConditionedSample, cfg BeatConfig) (DetectorState, *Beat) {
	rising := st.HasPrev && st.PrevValue <= cfg.Threshold && s.Value > cfg.Threshold
	st.PrevValue, st.HasPrev = s.Value, true
	if !rising {
		return st, nil
	}

	if !st.HasLastBeat {
		st.LastBeatMs, st.HasLastBeat = s.TimestampMs, true
		return st, nil
	}

	interval := s.TimestampMs - st.LastBeatMs
	if interval <= durationMs(cfg.MinBeatInterval) {
		return st, nil
	}

	st.LastBeatMs = s.TimestampMs
	if interval >= durationMs(cfg.MaxBeatInterval) {
		return st, nil
	}
	return st, &Beat{
		TimestampMs:      s.TimestampMs,
		InstantaneousBPM: 60000 / interval,
	}
}
