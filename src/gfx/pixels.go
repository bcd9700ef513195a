// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

import (
	"image"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	// BMP textures are accepted alongside the standard formats.
	_ "golang.org/x/image/bmp"
	_ "image/jpeg"
	_ "image/png"
)

// BytesPerPixel is the size of one RGBA8 texel.
const BytesPerPixel = 4

// Pixels is tightly packed RGBA8 pixel data, row after row
// with no padding, as expected by a buffer to image copy.
type Pixels struct {
	Extent Extent2D
	Data   []byte
}

// Size returns the byte size tightly packed data of Extent needs.
// Data of any other length is malformed.
func (p Pixels) Size() int {
	return int(p.Extent.Width) * int(p.Extent.Height) * BytesPerPixel
}

// PixelsFromImage transforms a given image into the right arrangement of pixels
// by drawing it onto a controlled RGBA canvas.
func PixelsFromImage(img image.Image) Pixels {
	bounds := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Copy(canvas, image.Point{}, img, bounds, draw.Src, nil)
	return Pixels{
		Extent: Extent2D{
			Width:  uint32(bounds.Dx()),
			Height: uint32(bounds.Dy()),
		},
		Data: canvas.Pix,
	}
}

// DecodePixels decodes any registered image format from r.
func DecodePixels(r io.Reader) (Pixels, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return Pixels{}, errors.Wrap(err, "image.Decode()")
	}
	return PixelsFromImage(img), nil
}

// Checkerboard generates a two color checkerboard, used when
// no texture is available.
func Checkerboard(size, cell uint32) Pixels {
	if cell == 0 {
		cell = 1
	}
	data := make([]byte, int(size)*int(size)*BytesPerPixel)
	for y := uint32(0); y < size; y++ {
		for x := uint32(0); x < size; x++ {
			var v byte = 0x20
			if (x/cell+y/cell)%2 == 0 {
				v = 0xe0
			}
			off := (int(y)*int(size) + int(x)) * BytesPerPixel
			data[off], data[off+1], data[off+2], data[off+3] = v, v, v, 0xff
		}
	}
	return Pixels{
		Extent: Extent2D{Width: size, Height: size},
		Data:   data,
	}
}
