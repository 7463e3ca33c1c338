// Package sheet decodes grid-packed frame sheets and cuts them into raw frames.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "github.com/ftrvxmtrx/tga"
	_ "golang.org/x/image/webp"
)

var (
	// ErrGridMismatch is returned when a sheet is smaller than its declared grid.
	ErrGridMismatch = errors.New("sheet: image smaller than grid")

	// ErrBadGrid is returned for non-positive grid dimensions.
	ErrBadGrid = errors.New("sheet: grid dimensions must be positive")
)

// Load reads a PNG, JPEG, TGA or WebP sheet and returns it as NRGBA.
func Load(path string) (*image.NRGBA, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sheet: read %s: %w", path, err)
	}
	img, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("sheet: decode %s: %w", path, err)
	}
	return img, nil
}

// Decode decodes any registered image format into NRGBA.
func Decode(data []byte) (*image.NRGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return ToNRGBA(img), nil
}

// ToNRGBA converts any image to NRGBA format anchored at the origin.
func ToNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	switch src.(type) {
	case *image.YCbCr, *image.Gray:
		// No alpha: draw, then force alpha to 255
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		for i := 3; i < len(dst.Pix); i += 4 {
			dst.Pix[i] = 255
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
				dst.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
			}
		}
	}
	return dst
}
