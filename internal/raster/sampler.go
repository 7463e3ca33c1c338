package raster

import (
	"image"
	"math"
)

// Texel is a filtered sample in linear light with colour premultiplied by A.
type Texel struct {
	R, G, B, A float64
}

// Add returns t + o.
func (t Texel) Add(o Texel) Texel {
	return Texel{t.R + o.R, t.G + o.G, t.B + o.B, t.A + o.A}
}

// Scale multiplies every channel, alpha included, by s.
func (t Texel) Scale(s float64) Texel {
	return Texel{t.R * s, t.G * s, t.B * s, t.A * s}
}

// Straight returns the un-premultiplied linear colour.
func (t Texel) Straight() (r, g, b float64) {
	if t.A <= 1e-9 {
		return 0, 0, 0
	}
	inv := 1 / t.A
	return t.R * inv, t.G * inv, t.B * inv
}

// SampleLinear performs bilinear filtering at continuous pixel coordinates
// (pixel centres sit at +0.5). Texels outside the image are transparent.
// Accesses img.Pix directly for performance.
func SampleLinear(img *image.NRGBA, x, y float64) Texel {
	b := img.Rect
	fx := x - 0.5 - float64(b.Min.X)
	fy := y - 0.5 - float64(b.Min.Y)
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	dx := fx - float64(x0)
	dy := fy - float64(y0)

	w00 := (1 - dx) * (1 - dy)
	w10 := dx * (1 - dy)
	w01 := (1 - dx) * dy
	w11 := dx * dy

	var out Texel
	out = out.Add(texelAt(img, x0, y0).Scale(w00))
	out = out.Add(texelAt(img, x0+1, y0).Scale(w10))
	out = out.Add(texelAt(img, x0, y0+1).Scale(w01))
	out = out.Add(texelAt(img, x0+1, y0+1).Scale(w11))
	return out
}

// SampleAlpha bilinearly filters only the alpha channel, in [0, 1].
func SampleAlpha(img *image.NRGBA, x, y float64) float64 {
	b := img.Rect
	fx := x - 0.5 - float64(b.Min.X)
	fy := y - 0.5 - float64(b.Min.Y)
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	dx := fx - float64(x0)
	dy := fy - float64(y0)

	return (alphaAt(img, x0, y0)*(1-dx)*(1-dy) +
		alphaAt(img, x0+1, y0)*dx*(1-dy) +
		alphaAt(img, x0, y0+1)*(1-dx)*dy +
		alphaAt(img, x0+1, y0+1)*dx*dy) / 255.0
}

// texelAt reads one pixel relative to the image origin; out of range is transparent.
func texelAt(img *image.NRGBA, x, y int) Texel {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if x < 0 || y < 0 || x >= w || y >= h {
		return Texel{}
	}
	i := y*img.Stride + x*4
	a8 := img.Pix[i+3]
	if a8 == 0 {
		return Texel{}
	}
	a := float64(a8) / 255.0
	return Texel{
		R: srgbToLinear[img.Pix[i]] * a,
		G: srgbToLinear[img.Pix[i+1]] * a,
		B: srgbToLinear[img.Pix[i+2]] * a,
		A: a,
	}
}

func alphaAt(img *image.NRGBA, x, y int) float64 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if x < 0 || y < 0 || x >= w || y >= h {
		return 0
	}
	return float64(img.Pix[y*img.Stride+x*4+3])
}

// Put writes a linear premultiplied texel into dst at (x, y) relative to its origin.
func Put(dst *image.NRGBA, x, y int, t Texel) {
	i := y*dst.Stride + x*4
	a := t.A
	if a <= 0 {
		dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = 0, 0, 0, 0
		return
	}
	if a > 1 {
		a = 1
	}
	r, g, b := t.Straight()
	dst.Pix[i] = ToSRGB8(r)
	dst.Pix[i+1] = ToSRGB8(g)
	dst.Pix[i+2] = ToSRGB8(b)
	dst.Pix[i+3] = clamp8(a * 255)
}
