package raster

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// encodeSteps is the resolution of the linear→sRGB lookup table.
const encodeSteps = 1 << 14

// Precomputed sRGB-to-linear lookup table (256 entries).
var srgbToLinear [256]float64

// Precomputed linear-to-sRGB lookup table over [0, 1].
var linearToSRGB [encodeSteps + 1]uint8

func init() {
	for i := 0; i < 256; i++ {
		v := float64(i) / 255.0
		srgbToLinear[i], _, _ = colorful.Color{R: v, G: v, B: v}.LinearRgb()
	}
	for i := 0; i <= encodeSteps; i++ {
		v := float64(i) / encodeSteps
		r, _, _ := colorful.LinearRgb(v, v, v).Clamped().RGB255()
		linearToSRGB[i] = r
	}
}

// ToLinear decodes an 8-bit sRGB channel into linear light.
func ToLinear(c uint8) float64 {
	return srgbToLinear[c]
}

// ToSRGB8 encodes a linear-light value back into an 8-bit sRGB channel.
func ToSRGB8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return linearToSRGB[int(v*encodeSteps+0.5)]
}

// ParseHexColor parses "#rrggbb" into an opaque NRGBA colour.
func ParseHexColor(s string) (color.NRGBA, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("raster: parse colour %q: %w", s, err)
	}
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// LinearColor converts an NRGBA colour into a linear-light Texel.
func LinearColor(c color.NRGBA) Texel {
	a := float64(c.A) / 255.0
	return Texel{
		R: ToLinear(c.R) * a,
		G: ToLinear(c.G) * a,
		B: ToLinear(c.B) * a,
		A: a,
	}
}
