package ppg

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	ms    float64
	value float64
}

func runDetector(points []point, cfg BeatConfig) (DetectorState, []Beat) {
	var (
		st    DetectorState
		beats []Beat
	)
	for _, p := range points {
		var b *Beat
		st, b = DetectBeat(st, ConditionedSample{TimestampMs: p.ms, Value: p.value}, cfg)
		if b != nil {
			beats = append(beats, *b)
		}
	}
	return st, beats
}

func TestDetectBeat(t *testing.T) {
	cfg := DefaultConfig().Beat

	tests := []struct {
		name          string
		points        []point
		expectedBeats []Beat
		expectedLast  float64
	}{
		{
			name:         "First crossing only arms the detector",
			points:       []point{{0, 0}, {33, 5}},
			expectedLast: 33,
		},
		{
			name:          "Second crossing emits a beat",
			points:        []point{{0, 0}, {100, 5}, {200, 0}, {1100, 5}},
			expectedBeats: []Beat{{TimestampMs: 1100, InstantaneousBPM: 60}},
			expectedLast:  1100,
		},
		{
			name:          "Crossing inside refractory period is ignored",
			points:        []point{{0, 0}, {100, 5}, {200, 0}, {350, 5}, {400, 0}, {1100, 5}},
			expectedBeats: []Beat{{TimestampMs: 1100, InstantaneousBPM: 60}},
			expectedLast:  1100,
		},
		{
			name:         "Crossing exactly at refractory period is ignored",
			points:       []point{{0, 0}, {100, 5}, {200, 0}, {400, 5}},
			expectedLast: 100,
		},
		{
			name:          "Gap beyond max interval re-arms without a beat",
			points:        []point{{0, 0}, {100, 5}, {200, 0}, {1700, 5}, {1800, 0}, {2500, 5}},
			expectedBeats: []Beat{{TimestampMs: 2500, InstantaneousBPM: 75}},
			expectedLast:  2500,
		},
		{
			name:         "Signal held above threshold counts once",
			points:       []point{{0, 0}, {100, 5}, {500, 6}, {900, 7}, {1300, 8}},
			expectedLast: 100,
		},
		{
			name:         "Touching the threshold is not a crossing",
			points:       []point{{0, 0}, {100, 3}, {200, 0}, {1000, 3}},
			expectedLast: 0,
		},
		{
			name:         "Leading sample above threshold is not an edge",
			points:       []point{{0, 5}, {33, 6}},
			expectedLast: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, beats := runDetector(tt.points, cfg)
			require.Len(t, beats, len(tt.expectedBeats))
			for i, b := range tt.expectedBeats {
				assert.InDelta(t, b.TimestampMs, beats[i].TimestampMs, 1e-9)
				assert.InDelta(t, b.InstantaneousBPM, beats[i].InstantaneousBPM, 1e-9)
			}
			assert.InDelta(t, tt.expectedLast, st.LastBeatMs, 1e-9)
		})
	}
}

func TestDetectBeatRateBounds(t *testing.T) {
	cfg := DefaultConfig().Beat
	rng := rand.New(rand.NewSource(42))

	var (
		points []point
		ms     float64
	)
	for i := 0; i < 20000; i++ {
		ms += 5 + rng.Float64()*60
		points = append(points, point{ms: ms, value: rng.Float64()*20 - 10})
	}

	_, beats := runDetector(points, cfg)
	require.NotEmpty(t, beats)
	for _, b := range beats {
		assert.GreaterOrEqual(t, b.InstantaneousBPM, cfg.MinBPM())
		assert.LessOrEqual(t, b.InstantaneousBPM, cfg.MaxBPM())
	}
	assert.InDelta(t, 40.0, cfg.MinBPM(), 1e-9)
	assert.InDelta(t, 200.0, cfg.MaxBPM(), 1e-9)
}
