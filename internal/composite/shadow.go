package composite

import (
	"image"
	"image/color"
	"math"

	"turntable/internal/mathutil"
	"turntable/internal/raster"
)

// ShadowParams describe a projected contact shadow.
type ShadowParams struct {
	Light      mathutil.Vec2 // projection direction; Y > 0 reaches back up the object
	GroundY    float64       // ground line as a fraction of tile height
	Skew       float64
	BlurRadius float64 // px, box blur half-width
	Intensity  float64 // 0 disables the pass
	Color      color.NRGBA
}

// DefaultShadow returns a soft black shadow cast to the right.
func DefaultShadow() ShadowParams {
	return ShadowParams{
		Light:      mathutil.Vec2{0.6, 0.35},
		GroundY:    0.85,
		Skew:       1,
		BlurRadius: 2,
		Intensity:  0.55,
		Color:      color.NRGBA{A: 255},
	}
}

// Shadow composites a projected shadow under src. Pixels above the ground
// line pass through unchanged.
func Shadow(src *image.NRGBA, p ShadowParams) *image.NRGBA {
	dst := raster.Clone(src)
	if p.Intensity <= 0 {
		return dst
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	ground := mathutil.Clamp01(p.GroundY) * float64(h)
	span := float64(h) - ground
	if span <= 0 {
		return dst
	}
	shadow := raster.LinearColor(p.Color)
	sr, sg, sb := shadow.Straight()
	radius := max(0, int(math.Round(p.BlurRadius)))

	for y := 0; y < h; y++ {
		py := float64(y) + 0.5
		if py < ground {
			continue
		}
		dist := py - ground
		falloff := mathutil.Clamp01(1 - dist/span)
		if falloff <= 0 {
			continue
		}
		for x := 0; x < w; x++ {
			px := float64(x) + 0.5
			sx := px + p.Light[0]*p.Skew*dist
			sy := ground - p.Light[1]*dist
			mask := mathutil.Clamp01(boxAlpha(src, sx, sy, radius) * falloff * p.Intensity)
			if mask <= 0 {
				continue
			}

			base := raster.SampleLinear(src, px, py)
			k := mask * (1 - base.A)
			r, g, b := sr, sg, sb
			if base.A > alphaEpsilon {
				br, bg, bb := base.Straight()
				r = mathutil.Lerp(br, sr, k)
				g = mathutil.Lerp(bg, sg, k)
				b = mathutil.Lerp(bb, sb, k)
			}
			a := math.Max(base.A, mask*0.5)
			raster.Put(dst, x, y, raster.Texel{R: r * a, G: g * a, B: b * a, A: a})
		}
	}
	return dst
}

// boxAlpha averages alpha over a (2r+1)² box centred on (x, y).
func boxAlpha(img *image.NRGBA, x, y float64, r int) float64 {
	if r == 0 {
		return raster.SampleAlpha(img, x, y)
	}
	var sum float64
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			sum += raster.SampleAlpha(img, x+float64(dx), y+float64(dy))
		}
	}
	n := 2*r + 1
	return sum / float64(n*n)
}
