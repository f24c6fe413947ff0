// Package config - YAML configuration for the heart-rate service.
package config

import (
	"image"
	"os"
	"time"

	"github.com/nvr-ai/go-ppg/capture"
	"github.com/nvr-ai/go-ppg/controller"
	"github.com/nvr-ai/go-ppg/images"
	"github.com/nvr-ai/go-ppg/ppg"
	"github.com/nvr-ai/go-ppg/publish"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	SourceCamera    = "camera"
	SourceDirectory = "directory"
	SourceSimulator = "simulator"
)

// Config is the complete service configuration.
type Config struct {
	Pipeline ppg.Config        `yaml:"pipeline"`
	ROI      images.ROIOptions `yaml:"roi"`
	Session  SessionConfig     `yaml:"session"`
	Source   SourceConfig      `yaml:"source"`
	Publish  PublishConfig     `yaml:"publish"`
	HTTP     HTTPConfig        `yaml:"http"`
	Log      LogConfig         `yaml:"log"`
	Profiler ProfilerConfig    `yaml:"profiler"`
}

// SessionConfig contains the controller timeouts.
type SessionConfig struct {
	AcquireTimeout    time.Duration `yaml:"acquire_timeout"`
	FirstFrameTimeout time.Duration `yaml:"first_frame_timeout"`
}

// SourceConfig selects and configures the frame source.
type SourceConfig struct {
	// Kind is camera, directory or simulator.
	Kind      string                  `yaml:"kind"`
	Camera    CameraConfig            `yaml:"camera"`
	Directory capture.DirectoryConfig `yaml:"directory"`
	Simulator capture.SimulatorConfig `yaml:"simulator"`
}

// CameraConfig is the YAML form of capture.CameraConfig.
type CameraConfig struct {
	DeviceID int `yaml:"device_id"`
	// Resolution names a capture preset (e.g. 480p) and overrides Width and Height.
	Resolution      string  `yaml:"resolution"`
	Width           int     `yaml:"width"`
	Height          int     `yaml:"height"`
	FPS             float64 `yaml:"fps"`
	DownscaleWidth  int     `yaml:"downscale_width"`
	DownscaleHeight int     `yaml:"downscale_height"`
	SkipDuplicates  bool    `yaml:"skip_duplicates"`
	// TorchPath is a sysfs LED class directory, e.g. /sys/class/leds/flashlight.
	TorchPath string `yaml:"torch_path"`
}

// PublishConfig configures the display sinks. Empty sections are disabled.
type PublishConfig struct {
	// Encoding is json or msgpack.
	Encoding  string             `yaml:"encoding"`
	NATS      NATSConfig         `yaml:"nats"`
	MQTT      publish.MQTTConfig `yaml:"mqtt"`
	WebSocket WebSocketConfig    `yaml:"websocket"`
}

// NATSConfig configures the NATS sink.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// WebSocketConfig configures the /v1/stream hub.
type WebSocketConfig struct {
	Enabled bool `yaml:"enabled"`
}

// HTTPConfig configures the control API. An empty Addr disables it.
type HTTPConfig struct {
	Addr         string   `yaml:"addr"`
	AllowOrigins []string `yaml:"allow_origins"`
}

// LogConfig configures the default slog logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// ProfilerConfig configures the runtime profiler.
type ProfilerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

// Default returns the configuration used when no file is given: the
// built-in camera, no network sinks and the API on localhost:8080.
func Default() Config {
	ctrl := controller.DefaultConfig()
	return Config{
		Pipeline: ctrl.Pipeline,
		ROI:      ctrl.ROI,
		Session: SessionConfig{
			AcquireTimeout:    ctrl.AcquireTimeout,
			FirstFrameTimeout: ctrl.FirstFrameTimeout,
		},
		Source: SourceConfig{
			Kind:      SourceCamera,
			Camera:    CameraConfig{Width: 640, Height: 480, FPS: 30},
			Directory: capture.DirectoryConfig{FPS: 30, Realtime: true},
			Simulator: capture.DefaultSimulatorConfig(),
		},
		Publish: PublishConfig{
			Encoding: "json",
			NATS:     NATSConfig{Subject: "ppg.display"},
			MQTT:     publish.MQTTConfig{ClientID: "go-ppg", Topic: "ppg/display"},
		},
		HTTP: HTTPConfig{Addr: "127.0.0.1:8080"},
		Log:  LogConfig{Level: "info", Format: "text"},
		Profiler: ProfilerConfig{
			ReportInterval: 10 * time.Second,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
//
// Arguments:
//   - path: The configuration file. Keys missing from the file keep their defaults.
//
// Returns:
//   - *Config: The merged configuration.
//   - error: A read, parse or validation error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	if err := c.ROI.Validate(); err != nil {
		return err
	}
	if c.Session.AcquireTimeout <= 0 {
		return errors.Errorf("session.acquire_timeout must be positive, got %v", c.Session.AcquireTimeout)
	}
	if c.Session.FirstFrameTimeout <= 0 {
		return errors.Errorf("session.first_frame_timeout must be positive, got %v", c.Session.FirstFrameTimeout)
	}

	switch c.Source.Kind {
	case SourceCamera:
		if c.Source.Camera.DeviceID < 0 {
			return errors.Errorf("source.camera.device_id must not be negative, got %d", c.Source.Camera.DeviceID)
		}
		if name := c.Source.Camera.Resolution; name != "" {
			if _, ok := images.ResolutionByName(name); !ok {
				return errors.Errorf("unknown source.camera.resolution %q", name)
			}
		}
	case SourceDirectory:
		if c.Source.Directory.Dir == "" {
			return errors.New("source.directory.dir is required")
		}
		if c.Source.Directory.FPS <= 0 {
			return errors.Errorf("source.directory.fps must be positive, got %v", c.Source.Directory.FPS)
		}
	case SourceSimulator:
		if c.Source.Simulator.Trace.FPS <= 0 {
			return errors.Errorf("source.simulator.trace.fps must be positive, got %v", c.Source.Simulator.Trace.FPS)
		}
	default:
		return errors.Errorf("unknown source.kind %q", c.Source.Kind)
	}

	if _, err := publish.CodecByName(c.Publish.Encoding); err != nil {
		return errors.Wrap(err, "publish.encoding")
	}
	if c.Publish.NATS.URL != "" && c.Publish.NATS.Subject == "" {
		return errors.New("publish.nats.subject is required with publish.nats.url")
	}
	if c.Publish.MQTT.Broker != "" && c.Publish.MQTT.Topic == "" {
		return errors.New("publish.mqtt.topic is required with publish.mqtt.broker")
	}
	if c.Publish.MQTT.QoS > 2 {
		return errors.Errorf("publish.mqtt.qos must be 0, 1 or 2, got %d", c.Publish.MQTT.QoS)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Controller returns the session configuration.
func (c *Config) Controller() controller.Config {
	return controller.Config{
		Pipeline:          c.Pipeline,
		ROI:               c.ROI,
		AcquireTimeout:    c.Session.AcquireTimeout,
		FirstFrameTimeout: c.Session.FirstFrameTimeout,
	}
}

// NewSource builds the configured frame source.
func (c *Config) NewSource() (capture.Source, error) {
	switch c.Source.Kind {
	case SourceDirectory:
		return capture.NewDirectory(c.Source.Directory), nil
	case SourceSimulator:
		return capture.NewSimulator(c.Source.Simulator), nil
	case SourceCamera:
		cam := c.Source.Camera
		cfg := capture.CameraConfig{
			DeviceID:       cam.DeviceID,
			Width:          cam.Width,
			Height:         cam.Height,
			FPS:            cam.FPS,
			Downscale:      image.Pt(cam.DownscaleWidth, cam.DownscaleHeight),
			SkipDuplicates: cam.SkipDuplicates,
		}
		if res, ok := images.ResolutionByName(cam.Resolution); ok {
			cfg.Width, cfg.Height = res.Width, res.Height
		}
		if cam.TorchPath != "" {
			torch, err := capture.NewLEDTorch(cam.TorchPath)
			if err != nil {
				return nil, errors.Wrap(err, "source.camera.torch_path")
			}
			cfg.Torch = torch
		}
		return capture.NewCamera(cfg), nil
	}
	return nil, errors.Errorf("unknown source.kind %q", c.Source.Kind)
}
