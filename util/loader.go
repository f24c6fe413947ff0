package util

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nvr-ai/go-ppg/images"
	"github.com/pkg/errors"
)

// FramePrefix is the file name prefix of recorded frames: frame-<N>.<ext>.
const FramePrefix = "frame-"

// ImageFile represents a recorded frame file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Frame is the frame number of the image file.
	Frame int
	// Format is the container format derived from the extension.
	Format images.ImageFormat
}

// LoadDirectoryImageFiles reads all recorded frames from a directory.
//
// Files whose extension is not a supported image format are skipped. A
// supported file that does not follow the frame-<N> naming is an error, since
// replay order would be ambiguous.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: Slice of ImageFile sorted by frame number.
// - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read frame directory %s", dir)
	}

	var frames []ImageFile
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		ext := filepath.Ext(file.Name())
		format, ok := images.FormatFromExtension(ext)
		if !ok {
			continue
		}

		frame, err := ParseFrameNumber(file.Name())
		if err != nil {
			return nil, err
		}
		imgPath := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(imgPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read frame %s", imgPath)
		}
		frames = append(frames, ImageFile{
			Path:   imgPath,
			Data:   data,
			Frame:  frame,
			Format: format,
		})
	}

	sort.Slice(frames, func(i, j int) bool {
		return frames[i].Frame < frames[j].Frame
	})

	return frames, nil
}

// ParseFrameNumber extracts N from a frame-<N>.<ext> file name.
func ParseFrameNumber(name string) (int, error) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if !strings.HasPrefix(base, FramePrefix) {
		return 0, errors.Errorf("frame file %q does not match %s<N>", name, FramePrefix)
	}
	frame, err := strconv.Atoi(strings.TrimPrefix(base, FramePrefix))
	if err != nil || frame < 0 {
		return 0, errors.Errorf("frame file %q has an invalid frame number", name)
	}
	return frame, nil
}

// FrameFileName returns the file name a frame is recorded under.
func FrameFileName(frame int, format images.ImageFormat) string {
	return fmt.Sprintf("%s%06d%s", FramePrefix, frame, format.Extension())
}

// WriteImageFile records one encoded frame into dir.
//
// Arguments:
// - dir: Destination directory; it is created if missing.
// - frame: The frame number.
// - img: The encoded frame.
//
// Returns:
// - string: The written path.
// - error: Error if writing fails.
func WriteImageFile(dir string, frame int, img *images.Image) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create frame directory %s", dir)
	}
	path := filepath.Join(dir, FrameFileName(frame, img.Format))
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to write frame %s", path)
	}
	return path, nil
}
