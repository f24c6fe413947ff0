package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nvr-ai/go-ppg/images"
	"github.com/nvr-ai/go-ppg/util"
	"github.com/pkg/errors"
)

// DirectoryConfig configures replay of a recorded frame-<N> sequence.
type DirectoryConfig struct {
	// Dir holds the recorded frames.
	Dir string `json:"dir" yaml:"dir"`
	// FPS sets the replay timeline; frames are stamped N/FPS after the start.
	FPS float64 `json:"fps" yaml:"fps"`
	// Realtime paces delivery at FPS instead of as fast as the consumer reads.
	Realtime bool `json:"realtime" yaml:"realtime"`
	// Loop restarts the sequence when it is exhausted.
	Loop bool `json:"loop" yaml:"loop"`
}

// Directory is a Source replaying recorded frames. It has no illumination.
type Directory struct {
	cfg DirectoryConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDirectory creates a replay source. Non-positive FPS falls back to 30.
func NewDirectory(cfg DirectoryConfig) *Directory {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	return &Directory{cfg: cfg}
}

// Acquire loads the whole sequence and starts replay.
func (d *Directory) Acquire(ctx context.Context) (<-chan Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		return nil, errors.Wrap(ErrAcquisition, "directory already acquired")
	}

	files, err := util.LoadDirectoryImageFiles(d.cfg.Dir)
	if err != nil {
		return nil, errors.Wrapf(ErrAcquisition, "%v", err)
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(ErrAcquisition, "no frames in %s", d.cfg.Dir)
	}

	slog.Info("capture: replaying directory",
		"dir", d.cfg.Dir,
		"frames", len(files),
		"fps", d.cfg.FPS,
		"loop", d.cfg.Loop,
	)

	replayCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	frames := make(chan Frame, frameBuffer)
	go d.replay(replayCtx, files, frames, d.done)

	return frames, nil
}

func (d *Directory) replay(ctx context.Context, files []util.ImageFile, frames chan<- Frame, done chan<- struct{}) {
	defer close(done)
	defer close(frames)

	interval := time.Duration(float64(time.Second) / d.cfg.FPS)
	var ticker *time.Ticker
	if d.cfg.Realtime {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	start := time.Now()
	var seq uint64
	for {
		for _, f := range files {
			if ticker != nil {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}

			img, err := images.Decode(f.Data, f.Format)
			if err != nil {
				slog.Warn("capture: skipping undecodable frame", "path", f.Path, "error", err)
				continue
			}
			frame := Frame{
				Seq:       seq,
				Timestamp: start.Add(time.Duration(seq) * interval),
				Image:     img,
			}
			seq++

			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
		if !d.cfg.Loop {
			slog.Info("capture: directory replay finished", "dir", d.cfg.Dir, "frames", seq)
			return
		}
	}
}

// Release stops replay.
func (d *Directory) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel == nil {
		return nil
	}
	d.cancel()
	d.cancel = nil
	if !waitTimeout(d.done) {
		slog.Warn("capture: directory release timeout exceeded", "dir", d.cfg.Dir)
	}
	return nil
}

// SupportsIllumination is always false for recordings.
func (d *Directory) SupportsIllumination() bool {
	return false
}

// SetIllumination always fails for recordings.
func (d *Directory) SetIllumination(bool) error {
	return ErrIlluminationUnavailable
}
