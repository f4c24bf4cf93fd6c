package processor

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func solidImage(width, height int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createTestJPEG creates a test JPEG image with the specified dimensions.
func createTestJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	err := jpeg.Encode(&buf, solidImage(width, height, color.NRGBA{R: 255, G: 128, B: 64, A: 255}), &jpeg.Options{Quality: 90})
	require.NoError(t, err)
	return buf.Bytes()
}

// createTestPNG creates a test PNG image with the specified dimensions.
func createTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	err := png.Encode(&buf, solidImage(width, height, color.NRGBA{R: 64, G: 128, B: 255, A: 255}))
	require.NoError(t, err)
	return buf.Bytes()
}

func sourceOf(img image.Image) *Source {
	b := img.Bounds()
	return &Source{Image: img, Width: b.Dx(), Height: b.Dy(), Format: "memory"}
}

func decodeOutput(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	return img
}

// near reports whether two colors differ by at most tol per 8-bit channel.
func near(a, b color.Color, tol int) bool {
	ar, ag, ab, _ := a.RGBA()
	br, bg, bb, _ := b.RGBA()
	diff := func(x, y uint32) int {
		d := int(x>>8) - int(y>>8)
		if d < 0 {
			d = -d
		}
		return d
	}
	return diff(ar, br) <= tol && diff(ag, bg) <= tol && diff(ab, bb) <= tol
}
