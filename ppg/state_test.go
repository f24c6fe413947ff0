package ppg

import (
	"math"
	"testing"

	"github.com/nvr-ai/go-ppg/synth"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toSample(s synth.Sample) ChannelSample {
	return ChannelSample{TimestampMs: s.TimestampMs, Red: s.Red, Green: s.Green, Blue: s.Blue}
}

// feed ticks n generator frames and returns the last result.
func feed(t *testing.T, st *State, gen *synth.Generator, cfg Config, n int) TickResult {
	t.Helper()
	var res TickResult
	for i := 0; i < n; i++ {
		var err error
		res, err = st.Tick(toSample(gen.Next()), cfg)
		require.NoError(t, err)
	}
	return res
}

func TestTickConvergesOnSyntheticTrace(t *testing.T) {
	tests := []struct {
		name string
		bpm  float64
		seed int64
	}{
		{name: "Resting 60 BPM", bpm: 60, seed: 1},
		{name: "Resting 70 BPM", bpm: 70, seed: 2},
		{name: "Elevated 90 BPM", bpm: 90, seed: 3},
		{name: "Exercise 120 BPM", bpm: 120, seed: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			synCfg := synth.DefaultConfig()
			synCfg.BPM, synCfg.Seed = tt.bpm, tt.seed
			gen := synth.NewGenerator(synCfg)
			st := NewState(cfg)

			// 10 seconds at 30 FPS.
			res := feed(t, st, gen, cfg, 300)

			assert.True(t, res.FingerPresent)
			assert.Equal(t, 100, res.Quality.QualityPercent)
			require.NotNil(t, res.BPM)
			assert.InDelta(t, tt.bpm, float64(*res.BPM), 2)
			for _, v := range st.RecentBPM() {
				assert.InDelta(t, tt.bpm, v, 10, "instantaneous rate")
			}
		})
	}
}

// sineTrace returns n frames at 30 FPS of a red channel oscillating at bpm,
// with uniform noise of the given half-width from a fixed LCG.
func sineTrace(bpm, amplitude, noise float64, n int) []ChannelSample {
	state := uint32(12345)
	uniform := func() float64 {
		state = state*1664525 + 1013904223
		return float64(state)/float64(math.MaxUint32)*2 - 1
	}

	out := make([]ChannelSample, n)
	for i := range out {
		ms := float64(i) * 1000 / 30
		out[i] = ChannelSample{
			TimestampMs: ms,
			Red:         200 + amplitude*math.Sin(2*math.Pi*bpm/60*ms/1000) + noise*uniform(),
			Green:       40,
			Blue:        30,
		}
	}
	return out
}

func TestTickConvergesOnNoisySine(t *testing.T) {
	tests := []struct {
		name string
		bpm  float64
	}{
		{name: "Bradycardic 48 BPM", bpm: 48},
		{name: "Resting 60 BPM", bpm: 60},
		{name: "Resting 72 BPM", bpm: 72},
		{name: "Elevated 100 BPM", bpm: 100},
		{name: "Exercise 120 BPM", bpm: 120},
		{name: "Exercise 150 BPM", bpm: 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			st := NewState(cfg)

			var res TickResult
			for _, s := range sineTrace(tt.bpm, 2, 0.3, 300) {
				var err error
				res, err = st.Tick(s, cfg)
				require.NoError(t, err)
			}

			assert.Equal(t, 100, res.Quality.QualityPercent)
			require.NotNil(t, res.BPM)
			assert.InDelta(t, tt.bpm, float64(*res.BPM), 2)
		})
	}
}

func TestTickWarmup(t *testing.T) {
	cfg := DefaultConfig()
	gen := synth.NewGenerator(synth.DefaultConfig())
	st := NewState(cfg)

	for i := 0; i < cfg.Conditioner.WindowSize; i++ {
		res, err := st.Tick(toSample(gen.Next()), cfg)
		require.NoError(t, err)
		assert.Nil(t, res.Conditioned, "frame %d", i)
		assert.Nil(t, res.BPM, "frame %d", i)
	}

	res, err := st.Tick(toSample(gen.Next()), cfg)
	require.NoError(t, err)
	assert.NotNil(t, res.Conditioned)
}

func TestTickSignalLossAndRecovery(t *testing.T) {
	cfg := DefaultConfig()
	gen := synth.NewGenerator(synth.DefaultConfig())
	st := NewState(cfg)

	res := feed(t, st, gen, cfg, 150)
	require.NotNil(t, res.BPM)
	before := *res.BPM

	gen.SetContact(false)
	res = feed(t, st, gen, cfg, 30)
	assert.False(t, res.FingerPresent)
	assert.Equal(t, 0, res.Quality.QualityPercent)
	assert.Nil(t, res.BPM)
	assert.NotEmpty(t, st.RecentBPM(), "rate history survives signal loss")

	gen.SetContact(true)
	firstShown := -1
	for i := 0; i < 60; i++ {
		res = feed(t, st, gen, cfg, 1)
		if res.BPM != nil && firstShown < 0 {
			firstShown = i
		}
	}
	assert.Equal(t, 39, firstShown, "reading returns once quality reaches 80%")
	assert.Equal(t, 100, res.Quality.QualityPercent)
	require.NotNil(t, res.BPM)
	assert.InDelta(t, before, *res.BPM, 2)
}

func TestTickRejectsBadInput(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		samples  []ChannelSample
		expected error
	}{
		{
			name: "Out of order timestamp",
			samples: []ChannelSample{
				{TimestampMs: 100, Red: 200, Green: 40, Blue: 30},
				{TimestampMs: 50, Red: 200, Green: 40, Blue: 30},
			},
			expected: ErrOutOfOrder,
		},
		{
			name:     "Channel above range",
			samples:  []ChannelSample{{TimestampMs: 0, Red: 300, Green: 40, Blue: 30}},
			expected: ErrMalformedSample,
		},
		{
			name:     "Negative channel",
			samples:  []ChannelSample{{TimestampMs: 0, Red: 200, Green: -1, Blue: 30}},
			expected: ErrMalformedSample,
		},
		{
			name:     "NaN channel",
			samples:  []ChannelSample{{TimestampMs: 0, Red: 200, Green: 40, Blue: math.NaN()}},
			expected: ErrMalformedSample,
		},
		{
			name:     "Infinite timestamp",
			samples:  []ChannelSample{{TimestampMs: math.Inf(1), Red: 200, Green: 40, Blue: 30}},
			expected: ErrMalformedSample,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewState(cfg)
			var (
				err     error
				before  QualityState
				lastIdx = len(tt.samples) - 1
			)
			for i, s := range tt.samples {
				if i == lastIdx {
					before = st.Quality()
				}
				_, err = st.Tick(s, cfg)
				if i < lastIdx {
					require.NoError(t, err)
				}
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.expected), "got %v", err)
			assert.Equal(t, before, st.Quality(), "rejected frame leaves state untouched")
		})
	}
}

func TestTickAcceptsEqualTimestamps(t *testing.T) {
	cfg := DefaultConfig()
	st := NewState(cfg)
	s := ChannelSample{TimestampMs: 10, Red: 200, Green: 40, Blue: 30}

	_, err := st.Tick(s, cfg)
	require.NoError(t, err)
	_, err = st.Tick(s, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Quality().ConsecutiveValidFrames)
}

func TestStateReset(t *testing.T) {
	cfg := DefaultConfig()
	gen := synth.NewGenerator(synth.DefaultConfig())
	st := NewState(cfg)
	feed(t, st, gen, cfg, 150)
	require.NotEmpty(t, st.RecentBPM())

	st.Reset()
	assert.Empty(t, st.RecentBPM())
	assert.Equal(t, QualityState{}, st.Quality())

	// Timestamps may restart after a reset.
	_, err := st.Tick(ChannelSample{TimestampMs: 0, Red: 200, Green: 40, Blue: 30}, cfg)
	assert.NoError(t, err)
}
