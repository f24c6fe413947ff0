package ppg

// UpdateQuality advances the quality estimate by one frame.
//
// Quality decays instantly on signal loss but only ramps gradually on
// recovery: a valid frame adds 100/WarmupFrames percent, an invalid frame
// resets everything to zero.
//
// Arguments:
//   - q: The quality state after the previous frame.
//   - valid: The finger gate verdict for this frame.
//   - cfg: The ramp parameters.
//
// Returns:
//   - QualityState: The updated state.
func UpdateQuality(q QualityState, valid bool, cfg QualityConfig) QualityState {
	if !valid || cfg.WarmupFrames <= 0 {
		return QualityState{}
	}
	q.ConsecutiveValidFrames++
	if q.ConsecutiveValidFrames > cfg.WarmupFrames {
		q.ConsecutiveValidFrames = cfg.WarmupFrames
	}
	q.QualityPercent = q.ConsecutiveValidFrames * 100 / cfg.WarmupFrames
	if q.QualityPercent > 100 {
		q.QualityPercent = 100
	}
	return q
}
