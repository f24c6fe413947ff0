package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
)

// ErrUnsupportedFormat is returned for formats the codec cannot handle.
var ErrUnsupportedFormat = errors.New("images: unsupported format")

// Decode decodes an encoded frame.
//
// Arguments:
//   - data: The encoded bytes.
//   - format: The container format. An empty format is sniffed from the data.
//
// Returns:
//   - image.Image: The decoded frame.
//   - error: ErrEmptyImage for empty data, ErrUnsupportedFormat for unknown
//     formats, or the decoder error.
//
// @example
// img, err := images.Decode(data, images.FormatWebP)
func Decode(data []byte, format ImageFormat) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if format == "" {
		detected, ok := DetectFormat(data)
		if !ok {
			return nil, errors.Wrap(ErrUnsupportedFormat, "unrecognized magic")
		}
		format = detected
	}

	var (
		img image.Image
		err error
	)
	switch format {
	case FormatJPEG:
		img, err = jpeg.Decode(bytes.NewReader(data))
	case FormatWebP:
		img, err = webp.Decode(bytes.NewReader(data))
	case FormatPNG:
		img, err = png.Decode(bytes.NewReader(data))
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", format)
	}
	return img, nil
}

// Encode encodes a frame. WebP frames are lossless so that recorded sessions
// replay with the exact channel means they were captured with.
//
// Arguments:
//   - img: The frame to encode.
//   - format: The container format.
//
// Returns:
//   - []byte: The encoded bytes.
//   - error: ErrEmptyImage, ErrUnsupportedFormat, or the encoder error.
func Encode(img image.Image, format ImageFormat) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	var (
		buf bytes.Buffer
		err error
	)
	switch format {
	case FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	case FormatWebP:
		err = webp.Encode(&buf, img, &webp.Options{Lossless: true})
	case FormatPNG:
		err = png.Encode(&buf, img)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s", format)
	}
	return buf.Bytes(), nil
}
