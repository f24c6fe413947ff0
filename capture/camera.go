package capture

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nvr-ai/go-ppg/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// CameraConfig configures a gocv video capture device.
type CameraConfig struct {
	// DeviceID is the video capture device index.
	DeviceID int `json:"device_id" yaml:"device_id"`
	// Width, Height and FPS are requested from the driver; zero keeps its default.
	Width  int     `json:"width"  yaml:"width"`
	Height int     `json:"height" yaml:"height"`
	FPS    float64 `json:"fps"    yaml:"fps"`
	// Downscale resizes frames before conversion to image.Image; zero disables it.
	Downscale image.Point `json:"-" yaml:"-"`
	// SkipDuplicates drops reads whose pixels equal the previous read.
	SkipDuplicates bool `json:"skip_duplicates" yaml:"skip_duplicates"`
	// Torch is the flash next to the lens, nil when there is none.
	Torch Torch `json:"-" yaml:"-"`
}

// Camera is a Source backed by gocv.VideoCapture.
type Camera struct {
	cfg CameraConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	dropped    atomic.Uint64
	duplicates atomic.Uint64
}

// NewCamera creates an unopened camera.
//
// Arguments:
//   - cfg: The device configuration.
//
// Returns:
//   - *Camera: A camera ready for Acquire.
//
// @example
// cam := capture.NewCamera(capture.CameraConfig{DeviceID: 0, Downscale: image.Pt(100, 100)})
// frames, err := cam.Acquire(ctx)
func NewCamera(cfg CameraConfig) *Camera {
	return &Camera{cfg: cfg}
}

// Acquire opens the device and starts the reader goroutine.
func (c *Camera) Acquire(ctx context.Context) (<-chan Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return nil, errors.Wrap(ErrAcquisition, "camera already acquired")
	}

	webcam, err := gocv.OpenVideoCapture(c.cfg.DeviceID)
	if err != nil {
		return nil, errors.Wrapf(ErrAcquisition, "failed to open device %d: %v", c.cfg.DeviceID, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, errors.Wrapf(ErrAcquisition, "device %d did not open", c.cfg.DeviceID)
	}
	if c.cfg.Width > 0 && c.cfg.Height > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(c.cfg.Width))
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(c.cfg.Height))
	}
	if c.cfg.FPS > 0 {
		webcam.Set(gocv.VideoCaptureFPS, c.cfg.FPS)
	}

	slog.Info("capture: camera opened",
		"device", c.cfg.DeviceID,
		"width", webcam.Get(gocv.VideoCaptureFrameWidth),
		"height", webcam.Get(gocv.VideoCaptureFrameHeight),
		"fps", webcam.Get(gocv.VideoCaptureFPS),
	)

	readCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	frames := make(chan Frame, frameBuffer)
	go c.read(readCtx, webcam, frames, c.done)

	return frames, nil
}

func (c *Camera) read(ctx context.Context, webcam *gocv.VideoCapture, frames chan<- Frame, done chan<- struct{}) {
	defer close(done)
	defer close(frames)
	defer webcam.Close()

	mat := gocv.NewMat()
	defer mat.Close()
	small := gocv.NewMat()
	defer small.Close()

	var (
		seq      uint64
		lastHash uint64
	)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if ok := webcam.Read(&mat); !ok {
			slog.Warn("capture: cannot read device", "device", c.cfg.DeviceID)
			return
		}
		if mat.Empty() {
			continue
		}
		ts := time.Now()

		if c.cfg.SkipDuplicates {
			hash := images.MatChecksum(mat)
			if hash == lastHash {
				c.duplicates.Add(1)
				continue
			}
			lastHash = hash
		}

		src := mat
		if c.cfg.Downscale.X > 0 && c.cfg.Downscale.Y > 0 {
			gocv.Resize(mat, &small, c.cfg.Downscale, 0, 0, gocv.InterpolationArea)
			src = small
		}
		img, err := src.ToImage()
		if err != nil {
			slog.Warn("capture: frame conversion failed", "seq", seq, "error", err)
			continue
		}

		frame := Frame{Seq: seq, Timestamp: ts, Image: img}
		seq++
		select {
		case frames <- frame:
		case <-ctx.Done():
			return
		default:
			c.dropped.Add(1)
			slog.Debug("capture: dropping frame, channel full", "seq", frame.Seq)
		}
	}
}

// Release stops the reader goroutine, which closes the device.
func (c *Camera) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil {
		return nil
	}
	c.cancel()
	c.cancel = nil
	if !waitTimeout(c.done) {
		slog.Warn("capture: camera release timeout exceeded", "device", c.cfg.DeviceID)
	}
	slog.Info("capture: camera released", "device", c.cfg.DeviceID, "dropped", c.dropped.Load(), "duplicates", c.duplicates.Load())
	return nil
}

// SupportsIllumination reports whether a torch is configured.
func (c *Camera) SupportsIllumination() bool {
	return c.cfg.Torch != nil
}

// SetIllumination switches the torch.
func (c *Camera) SetIllumination(on bool) error {
	if c.cfg.Torch == nil {
		return ErrIlluminationUnavailable
	}
	return c.cfg.Torch.Set(on)
}

// Dropped returns the number of frames dropped because the consumer lagged.
func (c *Camera) Dropped() uint64 {
	return c.dropped.Load()
}

// Duplicates returns the number of stale reads skipped.
func (c *Camera) Duplicates() uint64 {
	return c.duplicates.Load()
}
