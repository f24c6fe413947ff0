package images

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ErrEmptyImage is returned for nil or zero-sized frames.
var ErrEmptyImage = errors.New("images: empty image")

// ChannelMeans holds the average 8-bit red, green and blue values of a region.
type ChannelMeans struct {
	Red   float64 `json:"red"`
	Green float64 `json:"green"`
	Blue  float64 `json:"blue"`
}

// ROIOptions configures SampleROI.
type ROIOptions struct {
	// Width and Height are the size of the centered sampling region.
	Width  int `json:"width"  yaml:"width"`
	Height int `json:"height" yaml:"height"`
	// CaptureWidth and CaptureHeight bound the frame before sampling. Larger
	// frames are down-scaled (aspect preserved) so the region always covers
	// the same share of the lens.
	CaptureWidth  int `json:"capture_width"  yaml:"capture_width"`
	CaptureHeight int `json:"capture_height" yaml:"capture_height"`
	// Interpolation is the down-scaling filter.
	Interpolation resize.InterpolationFunction `json:"-" yaml:"-"`
}

// DefaultROIOptions samples the central 30x30 of a 100x100 capture.
func DefaultROIOptions() ROIOptions {
	return ROIOptions{
		Width:         30,
		Height:        30,
		CaptureWidth:  100,
		CaptureHeight: 100,
		Interpolation: resize.Bilinear,
	}
}

// Validate reports a region or capture size that cannot be sampled.
func (o ROIOptions) Validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return errors.Errorf("invalid roi dimensions: width=%d, height=%d", o.Width, o.Height)
	}
	if o.CaptureWidth <= 0 || o.CaptureHeight <= 0 {
		return errors.Errorf("invalid capture dimensions: width=%d, height=%d", o.CaptureWidth, o.CaptureHeight)
	}
	return nil
}

// SampleROI reduces a frame to the mean channel values of its center region.
//
// When the region is larger than the (down-scaled) frame, the whole frame is
// sampled.
//
// Arguments:
//   - img: The captured frame.
//   - opts: Region and capture sizes.
//
// Returns:
//   - ChannelMeans: The 8-bit channel means, each within [0, 255].
//   - error: ErrEmptyImage for a nil or empty frame, or an options error.
//
// @example
// means, err := images.SampleROI(frame, images.DefaultROIOptions())
func SampleROI(img image.Image, opts ROIOptions) (ChannelMeans, error) {
	if img == nil || img.Bounds().Empty() {
		return ChannelMeans{}, ErrEmptyImage
	}
	if err := opts.Validate(); err != nil {
		return ChannelMeans{}, err
	}

	b := img.Bounds()
	if b.Dx() > opts.CaptureWidth || b.Dy() > opts.CaptureHeight {
		img = resize.Thumbnail(uint(opts.CaptureWidth), uint(opts.CaptureHeight), img, opts.Interpolation)
		b = img.Bounds()
	}

	region := CenterRect(b, opts.Width, opts.Height)
	return regionMeans(img, region), nil
}

// CenterRect returns the w x h rectangle centered in bounds, clipped to it.
func CenterRect(bounds image.Rectangle, w, h int) image.Rectangle {
	w = min(w, bounds.Dx())
	h = min(h, bounds.Dy())
	x0 := bounds.Min.X + (bounds.Dx()-w)/2
	y0 := bounds.Min.Y + (bounds.Dy()-h)/2
	return image.Rect(x0, y0, x0+w, y0+h)
}

func regionMeans(img image.Image, r image.Rectangle) ChannelMeans {
	var rs, gs, bs float64
	n := float64(r.Dx() * r.Dy())

	// Fast path for the layout produced by the simulator and resize.
	if rgba, ok := img.(*image.RGBA); ok {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			off := rgba.PixOffset(r.Min.X, y)
			row := rgba.Pix[off : off+r.Dx()*4]
			for i := 0; i < len(row); i += 4 {
				rs += float64(row[i])
				gs += float64(row[i+1])
				bs += float64(row[i+2])
			}
		}
		return ChannelMeans{Red: rs / n, Green: gs / n, Blue: bs / n}
	}

	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			rs += float64(cr >> 8)
			gs += float64(cg >> 8)
			bs += float64(cb >> 8)
		}
	}
	return ChannelMeans{Red: rs / n, Green: gs / n, Blue: bs / n}
}
