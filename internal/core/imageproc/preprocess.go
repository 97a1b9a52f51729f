// Package imageproc prepares page regions for OCR and for report previews.
package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/envelope-ocr/internal/regions"
)

const (
	// Threshold splits gray pixels: below is black, the rest white.
	Threshold = 160

	PreviewWidth  = 200
	PreviewHeight = 80
)

// sharpenKernel is the classic 3x3 SHARPEN kernel (normalized by its sum, 16).
var sharpenKernel = [9]float64{
	-2, -2, -2,
	-2, 32, -2,
	-2, -2, -2,
}

// Orient rotates a page 90 degrees clockwise, swapping its width and height.
// Scans arrive on their side, so every page goes through here before cropping.
func Orient(page image.Image) *image.NRGBA {
	return imaging.Rotate270(page)
}

// Crop cuts the region out of page. Any part outside the page is clipped.
func Crop(page image.Image, r regions.Region) *image.NRGBA {
	return imaging.Crop(page, r.Rect())
}

// Normalize prepares a cropped region for OCR: grayscale, binarize at
// Threshold, then sharpen.
func Normalize(img image.Image) *image.NRGBA {
	gray := imaging.Grayscale(img)
	bw := Binarize(gray, Threshold)
	return Sharpen(bw)
}

// Binarize maps every pixel whose red channel (gray level) is below threshold
// to opaque black and everything else to opaque white.
func Binarize(img image.Image, threshold uint8) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		if c.R < threshold {
			return color.NRGBA{A: 255}
		}
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	})
}

// Sharpen applies the fixed sharpening kernel.
func Sharpen(img image.Image) *image.NRGBA {
	return imaging.Convolve3x3(img, sharpenKernel, &imaging.ConvolveOptions{Normalize: true})
}

// Preview scales a crop to the fixed report thumbnail size.
func Preview(crop image.Image) *image.NRGBA {
	return imaging.Resize(crop, PreviewWidth, PreviewHeight, imaging.Lanczos)
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
