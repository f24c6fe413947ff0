package images

import (
	"fmt"
	"image"
	"math"
	"sort"
	"strings"
)

// AspectRatio represents an aspect ratio by name (e.g., "16:9").
type AspectRatio string

// Aspect ratios of the capture presets.
const (
	AspectRatio169 AspectRatio = "16:9"
	AspectRatio43  AspectRatio = "4:3"
)

// Resolution is a named capture size a camera driver can be asked for.
type Resolution struct {
	Name        string      `json:"name"`
	AspectRatio AspectRatio `json:"aspect_ratio"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
}

// MegaPixels returns the pixel count in millions, rounded to two decimals.
func (r Resolution) MegaPixels() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0.0
	}
	mp := float64(r.Width*r.Height) / 1_000_000.0
	return math.Round(mp*100) / 100
}

// String returns a human-readable summary of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Name, r.Width, r.Height, r.MegaPixels())
}

// Point returns the size as an image.Point.
func (r Resolution) Point() image.Point {
	return image.Pt(r.Width, r.Height)
}

// Covers reports whether a frame of this size contains a w x h region.
func (r Resolution) Covers(w, h int) bool {
	return r.Width >= w && r.Height >= h
}

// resolutions holds the capture presets. The PPG signal only needs the
// centre of the frame, so small sizes are preferred to keep the frame
// rate high.
var resolutions = map[string]Resolution{
	"240p":  {Name: "240p", AspectRatio: AspectRatio43, Width: 320, Height: 240},
	"360p":  {Name: "360p", AspectRatio: AspectRatio169, Width: 640, Height: 360},
	"480p":  {Name: "480p", AspectRatio: AspectRatio43, Width: 640, Height: 480},
	"540p":  {Name: "540p", AspectRatio: AspectRatio169, Width: 960, Height: 540},
	"720p":  {Name: "720p", AspectRatio: AspectRatio169, Width: 1280, Height: 720},
	"1080p": {Name: "1080p", AspectRatio: AspectRatio169, Width: 1920, Height: 1080},
}

// ResolutionByName looks up a preset, case-insensitively.
//
// Arguments:
//   - name: The preset name, e.g. "480p".
//
// Returns:
//   - Resolution: The preset.
//   - bool: False when the name is unknown.
func ResolutionByName(name string) (Resolution, bool) {
	res, ok := resolutions[strings.ToLower(name)]
	return res, ok
}

// Resolutions returns every preset ordered by pixel count.
func Resolutions() []Resolution {
	all := make([]Resolution, 0, len(resolutions))
	for _, res := range resolutions {
		all = append(all, res)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Width*all[i].Height < all[j].Width*all[j].Height
	})
	return all
}

// SmallestCovering returns the smallest preset containing a w x h region.
//
// Arguments:
//   - w: The minimum width.
//   - h: The minimum height.
//
// Returns:
//   - Resolution: The smallest covering preset.
//   - bool: False when no preset is large enough.
func SmallestCovering(w, h int) (Resolution, bool) {
	for _, res := range Resolutions() {
		if res.Covers(w, h) {
			return res, true
		}
	}
	return Resolution{}, false
}
