package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

// Bottom-right corner region that holds the watermark, as fractions of the
// page dimensions.
const (
	cornerWidthRatio  = 0.15
	cornerHeightRatio = 0.08
)

// BlankWatermarkArea fills the bottom-right watermark corner with a
// background color sampled just above it, so the enhancement service can
// inpaint the region instead of reproducing the watermark.
func BlankWatermarkArea(pngBytes []byte) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, fmt.Errorf("decode page image: %w", err)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	cw := int(float64(w) * cornerWidthRatio)
	ch := int(float64(h) * cornerHeightRatio)
	x1 := b.Min.X + w - cw
	y1 := b.Min.Y + h - ch

	// Sample the background just above the corner; fall back to light gray.
	var bg color.Color = color.RGBA{245, 245, 245, 255}
	sy := y1 - 10
	if sy < b.Min.Y {
		sy = b.Min.Y
	}
	sx := x1 + cw/2
	if sx < b.Max.X && sy < b.Max.Y {
		bg = src.At(sx, sy)
	}

	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	corner := image.Rect(x1, y1, b.Max.X, b.Max.Y)
	draw.Draw(dst, corner, &image.Uniform{C: bg}, image.Point{}, draw.Src)

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, fmt.Errorf("encode page image: %w", err)
	}
	return out.Bytes(), nil
}
