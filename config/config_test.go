package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvr-ai/go-ppg/capture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ppg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, SourceCamera, cfg.Source.Kind)
	assert.InDelta(t, 3.0, cfg.Pipeline.Beat.Threshold, 1e-9)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  beat:
    threshold: 2.5
    min_beat_interval: 250ms
  aggregator:
    window_size: 8
session:
  acquire_timeout: 2s
source:
  kind: simulator
  simulator:
    trace:
      bpm: 90
publish:
  encoding: msgpack
  mqtt:
    broker: tcp://127.0.0.1:1883
    qos: 1
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.InDelta(t, 2.5, cfg.Pipeline.Beat.Threshold, 1e-9)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.Beat.MinBeatInterval)
	assert.Equal(t, 1500*time.Millisecond, cfg.Pipeline.Beat.MaxBeatInterval, "untouched keys keep defaults")
	assert.Equal(t, 8, cfg.Pipeline.Aggregator.WindowSize)
	assert.Equal(t, 15, cfg.Pipeline.Conditioner.WindowSize)
	assert.Equal(t, 2*time.Second, cfg.Session.AcquireTimeout)
	assert.Equal(t, 5*time.Second, cfg.Session.FirstFrameTimeout)

	assert.Equal(t, SourceSimulator, cfg.Source.Kind)
	assert.InDelta(t, 90, cfg.Source.Simulator.Trace.BPM, 1e-9)
	assert.InDelta(t, 30, cfg.Source.Simulator.Trace.FPS, 1e-9)

	assert.Equal(t, "msgpack", cfg.Publish.Encoding)
	assert.Equal(t, "ppg/display", cfg.Publish.MQTT.Topic)
	assert.Equal(t, byte(1), cfg.Publish.MQTT.QoS)

	ctrl := cfg.Controller()
	assert.Equal(t, cfg.Pipeline, ctrl.Pipeline)
	assert.Equal(t, 2*time.Second, ctrl.AcquireTimeout)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{name: "syntax", body: "pipeline: [", expected: "failed to parse"},
		{name: "bad pipeline", body: "pipeline:\n  conditioner:\n    window_size: 0\n", expected: "conditioner.window_size"},
		{name: "bad roi", body: "roi:\n  width: 0\n", expected: "roi"},
		{name: "unknown source", body: "source:\n  kind: rtsp\n", expected: "unknown source.kind"},
		{name: "directory without dir", body: "source:\n  kind: directory\n", expected: "source.directory.dir"},
		{name: "bad encoding", body: "publish:\n  encoding: xml\n", expected: "publish.encoding"},
		{name: "nats without subject", body: "publish:\n  nats:\n    url: nats://x\n    subject: \"\"\n", expected: "publish.nats.subject"},
		{name: "bad qos", body: "publish:\n  mqtt:\n    qos: 3\n", expected: "publish.mqtt.qos"},
		{name: "bad level", body: "log:\n  level: loud\n", expected: "unknown log level"},
		{name: "bad resolution", body: "source:\n  camera:\n    resolution: 8k\n", expected: "source.camera.resolution"},
		{name: "bad timeout", body: "session:\n  acquire_timeout: 0s\n", expected: "session.acquire_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expected)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewSource(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		check  func(t *testing.T, src capture.Source)
	}{
		{
			name:   "simulator",
			mutate: func(c *Config) { c.Source.Kind = SourceSimulator },
			check: func(t *testing.T, src capture.Source) {
				assert.IsType(t, &capture.Simulator{}, src)
			},
		},
		{
			name: "directory",
			mutate: func(c *Config) {
				c.Source.Kind = SourceDirectory
				c.Source.Directory.Dir = t.TempDir()
			},
			check: func(t *testing.T, src capture.Source) {
				assert.IsType(t, &capture.Directory{}, src)
				assert.False(t, src.SupportsIllumination())
			},
		},
		{
			name:   "camera",
			mutate: func(c *Config) {},
			check: func(t *testing.T, src capture.Source) {
				assert.IsType(t, &capture.Camera{}, src)
				assert.False(t, src.SupportsIllumination())
			},
		},
		{
			name: "camera with torch",
			mutate: func(c *Config) {
				dir := t.TempDir()
				require.NoError(t, os.WriteFile(filepath.Join(dir, "max_brightness"), []byte("255\n"), 0o644))
				require.NoError(t, os.WriteFile(filepath.Join(dir, "brightness"), []byte("0\n"), 0o644))
				c.Source.Camera.TorchPath = dir
			},
			check: func(t *testing.T, src capture.Source) {
				assert.True(t, src.SupportsIllumination())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			src, err := cfg.NewSource()
			require.NoError(t, err)
			tt.check(t, src)
		})
	}
}

func TestCameraResolutionPreset(t *testing.T) {
	path := writeConfig(t, "source:\n  camera:\n    resolution: 720p\n    skip_duplicates: true\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	src, err := cfg.NewSource()
	require.NoError(t, err)
	assert.IsType(t, &capture.Camera{}, src)
	assert.Equal(t, "720p", cfg.Source.Camera.Resolution)
	assert.True(t, cfg.Source.Camera.SkipDuplicates)
}

func TestNewSourceMissingTorch(t *testing.T) {
	cfg := Default()
	cfg.Source.Camera.TorchPath = filepath.Join(t.TempDir(), "nope")

	_, err := cfg.NewSource()
	require.Error(t, err)
	assert.ErrorIs(t, err, capture.ErrIlluminationUnavailable)
}

func TestInitLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger, err := InitLogger(&buf, LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)

	logger.Info("controller: hidden")
	slog.Warn("controller: shown", "session_id", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "controller: shown", entry["msg"])
	assert.Equal(t, "abc", entry["session_id"])

	_, err = InitLogger(&buf, LogConfig{Format: "xml"})
	assert.Error(t, err)
}
