// Package capture - Frame sources for the measurement pipeline.
//
// A Source hands out frames on a channel that only its own goroutine sends
// on and closes. Every implementation follows the same contract:
//   - Acquire returns once the device is open, or fails with ErrAcquisition.
//   - The returned channel closes when the source is released or exhausted.
//   - Release is idempotent.
//   - SetIllumination fails with ErrIlluminationUnavailable when the source
//     has no light it can control.
package capture

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrAcquisition is returned when a source cannot be opened.
	ErrAcquisition = errors.New("capture: acquisition failed")
	// ErrIlluminationUnavailable is returned when a source has no controllable light.
	ErrIlluminationUnavailable = errors.New("capture: illumination unavailable")
)

const (
	// frameBuffer is the capacity of every source's frame channel.
	frameBuffer = 10
	// releaseTimeout bounds how long Release waits for the reader goroutine.
	releaseTimeout = 3 * time.Second
)

// Frame is one captured image.
type Frame struct {
	// Seq is the per-acquisition sequence number, starting at 0.
	Seq uint64
	// Timestamp is the capture time.
	Timestamp time.Time
	// Image is the decoded frame.
	Image image.Image
}

// TimestampMs returns the capture time in fractional Unix milliseconds.
func (f Frame) TimestampMs() float64 {
	return float64(f.Timestamp.UnixMicro()) / 1000
}

// Source is a camera-like frame producer with optional illumination.
type Source interface {
	// Acquire opens the device and starts delivering frames.
	Acquire(ctx context.Context) (<-chan Frame, error)
	// Release stops delivery and closes the device.
	Release() error
	// SupportsIllumination reports whether SetIllumination can succeed.
	SupportsIllumination() bool
	// SetIllumination turns the light on or off.
	SetIllumination(on bool) error
}

// Torch is a controllable light next to the lens.
type Torch interface {
	Set(on bool) error
}

// waitTimeout waits for done or gives up after releaseTimeout.
func waitTimeout(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	case <-time.After(releaseTimeout):
		return false
	}
}
