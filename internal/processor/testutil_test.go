package processor

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newGradientImage returns an image with a smooth gradient. Gradients
// compress like photographs, so shrink tests on them behave like real
// inputs rather than like flat synthetic ones.
func newGradientImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8(255 * x / width)
			g := uint8(255 * y / height)
			img.Set(x, y, color.RGBA{R: r, G: g, B: 128, A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

// writeTestJPEG writes a gradient JPEG into dir and returns its path.
func writeTestJPEG(t *testing.T, dir, name string, width, height, quality int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data := encodeJPEG(t, newGradientImage(width, height), quality)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// writeFakeJPEG writes PNG bytes under a .jpg name, for wrong-format
// failure cases.
func writeFakeJPEG(t *testing.T, dir, name string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, newGradientImage(32, 32)))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func decodeDimensions(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	return cfg.Width, cfg.Height
}
