// Package images - Frame codecs and region-of-interest sampling.
package images

import (
	"bytes"
	"image"
)

// Image represents an encoded frame with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

// Extension returns the file extension used when writing the format.
func (f ImageFormat) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatWebP:
		return ".webp"
	case FormatPNG:
		return ".png"
	}
	return ""
}

// FormatFromExtension maps a file extension (with the dot) to a format.
func FormatFromExtension(ext string) (ImageFormat, bool) {
	switch ext {
	case ".jpg", ".jpeg", ".JPG", ".JPEG":
		return FormatJPEG, true
	case ".webp", ".WEBP":
		return FormatWebP, true
	case ".png", ".PNG":
		return FormatPNG, true
	}
	return "", false
}

// DetectFormat sniffs the container magic of an encoded frame.
func DetectFormat(data []byte) (ImageFormat, bool) {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return FormatJPEG, true
	case len(data) >= 8 && bytes.Equal(data[:8], []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG, true
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return FormatWebP, true
	}
	return "", false
}

// NewImage encodes img and records its dimensions.
func NewImage(img image.Image, format ImageFormat) (*Image, error) {
	data, err := Encode(img, format)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &Image{Format: format, Data: data, Width: b.Dx(), Height: b.Dy()}, nil
}

// Decode decodes the frame data.
func (i *Image) Decode() (image.Image, error) {
	return Decode(i.Data, i.Format)
}
