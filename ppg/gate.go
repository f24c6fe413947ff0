package ppg

// IsFingerPresent reports whether a sample looks like a fingertip pressed over
// an illuminated lens.
//
// Tissue absorbs green and blue while red passes through, so genuine contact is
// bright and strongly red-dominant. An uncovered lens or ambient light fails the
// ratio test.
//
// Arguments:
//   - s: The ROI channel means of one frame.
//   - cfg: The gate constants.
//
// Returns:
//   - bool: true when red > RedMin and green, blue are below their red ratios.
//
// @example
// ppg.IsFingerPresent(ppg.ChannelSample{Red: 200, Green: 40, Blue: 30}, cfg.Gate) // true
func IsFingerPresent(s ChannelSample, cfg GateConfig) bool {
	return s.Red > cfg.RedMin &&
		s.Green < s.Red*cfg.GreenRatioMax &&
		s.Blue < s.Red*cfg.BlueRatioMax
}
