package capture

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// LEDTorch drives a Linux LED class device, e.g. /sys/class/leds/flashlight.
type LEDTorch struct {
	dir string
	max int
}

// NewLEDTorch opens an LED class directory.
//
// Arguments:
//   - dir: The LED class directory holding brightness and max_brightness.
//
// Returns:
//   - *LEDTorch: The torch.
//   - error: ErrIlluminationUnavailable wrapped with the cause.
func NewLEDTorch(dir string) (*LEDTorch, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return nil, errors.Wrapf(ErrIlluminationUnavailable, "led %s: %v", dir, err)
	}
	max, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || max <= 0 {
		return nil, errors.Wrapf(ErrIlluminationUnavailable, "led %s: invalid max_brightness %q", dir, raw)
	}
	return &LEDTorch{dir: dir, max: max}, nil
}

// Set writes full or zero brightness.
func (t *LEDTorch) Set(on bool) error {
	level := 0
	if on {
		level = t.max
	}
	path := filepath.Join(t.dir, "brightness")
	if err := os.WriteFile(path, []byte(strconv.Itoa(level)), 0o644); err != nil {
		return errors.Wrapf(ErrIlluminationUnavailable, "led %s: %v", t.dir, err)
	}
	return nil
}
