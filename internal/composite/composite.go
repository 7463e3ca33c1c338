// Package composite holds the per-tick pixel passes that turn stabilized tiles
// into the on-screen frame: Stitch blends two adjacent yaw frames across a
// motion-aligned seam, Parallax fakes depth by offsetting alpha bands,
// Shadow projects a contact shadow below the ground line. Mix and Zoom
// support multi-ring views and magnification.
//
// Every pass is a pure function of its inputs. Colour math happens in
// linear light on premultiplied texels; buffers are read-only and each pass
// allocates its output.
package composite

import (
	"image"

	"golang.org/x/image/draw"

	"turntable/internal/mathutil"
	"turntable/internal/raster"
)

// alphaEpsilon guards weight normalisation against empty coverage.
const alphaEpsilon = 1e-6

// Mix crossfades two equally sized composites by w∈[0,1] in linear light.
// It is used to blend the two rings bracketing the current pitch.
func Mix(a, b *image.NRGBA, w float64) *image.NRGBA {
	w = mathutil.Clamp01(w)
	if w == 0 {
		return raster.Clone(a)
	}
	if w == 1 {
		return raster.Clone(b)
	}

	bounds := a.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	dst := raster.NewCanvas(width, height)
	for y := 0; y < height; y++ {
		py := float64(y) + 0.5
		for x := 0; x < width; x++ {
			px := float64(x) + 0.5
			ta := raster.SampleLinear(a, px, py).Scale(1 - w)
			tb := raster.SampleLinear(b, px, py).Scale(w)
			raster.Put(dst, x, y, ta.Add(tb))
		}
	}
	return dst
}

// Zoom magnifies src about its centre, keeping the output size.
// Factors at or below 1 return a copy.
func Zoom(src *image.NRGBA, zoom float64) *image.NRGBA {
	b := src.Bounds()
	if zoom <= 1 || b.Empty() {
		return raster.Clone(src)
	}
	cw := max(1, int(float64(b.Dx())/zoom+0.5))
	ch := max(1, int(float64(b.Dy())/zoom+0.5))
	x0 := b.Min.X + (b.Dx()-cw)/2
	y0 := b.Min.Y + (b.Dy()-ch)/2
	crop := image.Rect(x0, y0, x0+cw, y0+ch)

	dst := raster.NewCanvas(b.Dx(), b.Dy())
	draw.BiLinear.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}
