// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"
)

// Fixture colors. SkinTone classifies as skin, Sky does not.
var (
	SkinTone = color.RGBA{R: 224, G: 172, B: 105, A: 255}
	Sky      = color.RGBA{R: 30, G: 60, B: 200, A: 255}
)

type fataler interface {
	Helper()
	Fatalf(string, ...any)
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// SolidPNG encodes a w×h PNG filled with c.
func SolidPNG(t fataler, w, h int, c color.Color) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, solid(w, h, c)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// SolidJPEG encodes a w×h JPEG filled with c.
func SolidJPEG(t fataler, w, h int, c color.Color) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, solid(w, h, c), &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// SolidGIF encodes a w×h GIF filled with c using the web-safe palette.
func SolidGIF(t fataler, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, w, h), palette.WebSafe)
	idx := uint8(img.Palette.Index(c))
	for i := range img.Pix {
		img.Pix[i] = idx
	}
	buf := bytes.NewBuffer(nil)
	if err := gif.Encode(buf, img, nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	return buf.Bytes()
}

// StripedPNG encodes a w×h PNG whose first skinRows rows are SkinTone and
// the rest Sky.
func StripedPNG(t fataler, w, h, skinRows int) []byte {
	t.Helper()
	img := solid(w, h, Sky)
	for y := 0; y < skinRows && y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, SkinTone)
		}
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
