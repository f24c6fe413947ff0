package images

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolutionMegaPixels(t *testing.T) {
	testCases := []struct {
		name     string
		res      Resolution
		expected float64
	}{
		{name: "1080p", res: Resolution{Width: 1920, Height: 1080}, expected: 2.07},
		{name: "480p", res: Resolution{Width: 640, Height: 480}, expected: 0.31},
		{name: "zero width", res: Resolution{Width: 0, Height: 1080}, expected: 0},
		{name: "negative height", res: Resolution{Width: 1920, Height: -1}, expected: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, tc.res.MegaPixels(), 1e-9)
		})
	}
}

func TestResolutionByName(t *testing.T) {
	res, ok := ResolutionByName("720P")
	require.True(t, ok)
	assert.Equal(t, image.Pt(1280, 720), res.Point())
	assert.Equal(t, AspectRatio169, res.AspectRatio)
	assert.Equal(t, "720p (1280x720, 0.92MP)", res.String())

	_, ok = ResolutionByName("8k")
	assert.False(t, ok)
}

func TestResolutionsOrdered(t *testing.T) {
	all := Resolutions()
	require.Len(t, all, 6)
	assert.Equal(t, "240p", all[0].Name)
	assert.Equal(t, "1080p", all[len(all)-1].Name)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Width*all[i-1].Height, all[i].Width*all[i].Height)
	}
}

func TestSmallestCovering(t *testing.T) {
	testCases := []struct {
		name     string
		w, h     int
		expected string
		found    bool
	}{
		{name: "default capture", w: 100, h: 100, expected: "240p", found: true},
		{name: "wide", w: 600, h: 300, expected: "360p", found: true},
		{name: "tall", w: 600, h: 400, expected: "480p", found: true},
		{name: "exact", w: 1920, h: 1080, expected: "1080p", found: true},
		{name: "too large", w: 4000, h: 3000, found: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, ok := SmallestCovering(tc.w, tc.h)
			assert.Equal(t, tc.found, ok)
			if tc.found {
				assert.Equal(t, tc.expected, res.Name)
			}
		})
	}
}
