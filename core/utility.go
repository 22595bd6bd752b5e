package core

import (
	"image"

	"golang.org/x/image/draw"
)

// GetPixels transforms a given image into tightly packed RGBA8 pixels
// by drawing the decoded image onto a controlled RGBA canvas
func GetPixels(img image.Image) []uint8 {
	bounds := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == 4*bounds.Dx() && bounds.Min == (image.Point{}) {
		return rgba.Pix
	}

	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Src)
	return canvas.Pix
}

// ScalePixels resamples img to width by height and returns
// its tightly packed RGBA8 pixels
func ScalePixels(img image.Image, width, height int, scaler draw.Scaler) []uint8 {
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	scaler.Scale(canvas, canvas.Bounds(), img, img.Bounds(), draw.Src, nil)
	return canvas.Pix
}
