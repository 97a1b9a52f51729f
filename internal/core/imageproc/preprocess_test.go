package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/envelope-ocr/internal/regions"
)

// gradient returns a w x h image whose gray level grows left to right.
func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / (w - 1))
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestOrientRotatesClockwise(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 30, 10))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})

	out := Orient(src)
	assert.Equal(t, 10, out.Bounds().Dx())
	assert.Equal(t, 30, out.Bounds().Dy())
	// top-left of the source ends up top-right
	assert.Equal(t, uint8(255), out.NRGBAAt(9, 0).R)
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).R)
}

func TestCropMatchesRegion(t *testing.T) {
	page := gradient(100, 60)
	r := regions.Region{Name: "t", X: 10, Y: 5, Width: 40, Height: 20}
	c := Crop(page, r)
	assert.Equal(t, image.Rect(0, 0, 40, 20), c.Bounds())
	assert.Equal(t, page.NRGBAAt(10, 5), c.NRGBAAt(0, 0))
}

func TestBinarizeThreshold(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 159, G: 159, B: 159, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 160, G: 160, B: 160, A: 255})
	img.SetNRGBA(2, 0, color.NRGBA{R: 10, G: 10, B: 10, A: 255})

	out := Binarize(img, Threshold)
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(255), out.NRGBAAt(1, 0).R)
	assert.Equal(t, uint8(0), out.NRGBAAt(2, 0).R)
}

func TestCropThenNormalizeIsBinaryAtRegionSize(t *testing.T) {
	page := gradient(200, 100)
	r := regions.Region{Name: "t", X: 20, Y: 10, Width: 150, Height: 50}

	out := Normalize(Crop(page, r))
	require.Equal(t, image.Rect(0, 0, 150, 50), out.Bounds())
	for y := 0; y < 50; y++ {
		for x := 0; x < 150; x++ {
			c := out.NRGBAAt(x, y)
			assert.True(t, c.R == 0 || c.R == 255, "pixel (%d,%d) = %d", x, y, c.R)
			assert.Equal(t, c.R, c.G)
		}
	}
}

func TestPreviewSizeAndEncoding(t *testing.T) {
	p := Preview(gradient(919, 260))
	assert.Equal(t, image.Rect(0, 0, PreviewWidth, PreviewHeight), p.Bounds())

	b, err := EncodePNG(p)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, PreviewWidth, cfg.Width)
	assert.Equal(t, PreviewHeight, cfg.Height)
}
