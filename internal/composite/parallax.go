package composite

import (
	"image"
	"math"

	"turntable/internal/mathutil"
	"turntable/internal/raster"
)

// ParallaxParams split a tile into core, mid and rim bands by a pseudo
// distance derived from alpha, and sample each band at its own offset.
type ParallaxParams struct {
	Offset mathutil.Vec2 `yaml:"-" json:"-"` // px, per tick

	CoreR     float64 `yaml:"core_r" json:"coreR"`
	MidR      float64 `yaml:"mid_r" json:"midR"`
	RimR      float64 `yaml:"rim_r" json:"rimR"`
	Feather   float64 `yaml:"feather" json:"feather"`
	MidFactor float64 `yaml:"mid_factor" json:"midFactor"`
	RimFactor float64 `yaml:"rim_factor" json:"rimFactor"`
	SDFScale  float64 `yaml:"sdf_scale" json:"sdfScale"`
}

// DefaultParallax returns band radii for an SDF range of ±4.
func DefaultParallax() ParallaxParams {
	return ParallaxParams{
		CoreR:     2,
		MidR:      0,
		RimR:      -2,
		Feather:   1,
		MidFactor: 0.5,
		RimFactor: 1,
		SDFScale:  8,
	}
}

// Bands returns the normalised core/mid/rim memberships for pseudo distance d.
func (p ParallaxParams) Bands(d float64) (core, mid, rim float64) {
	f := p.Feather
	core = mathutil.Smoothstep(p.CoreR-f, p.CoreR+f, d)
	inner := mathutil.Smoothstep(p.MidR-f, p.MidR+f, d)
	mid = math.Max(inner-core, 0)
	rim = (1 - inner) * mathutil.Smoothstep(p.RimR-f, p.RimR+f, d)

	sum := core + mid + rim
	if sum <= alphaEpsilon {
		return 0, 0, 1
	}
	return core / sum, mid / sum, rim / sum
}

// Parallax resamples src with band-dependent offsets along p.Offset.
func Parallax(src *image.NRGBA, p ParallaxParams) *image.NRGBA {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if p.Offset.Len() < 1e-9 {
		return raster.Clone(src)
	}
	dst := raster.NewCanvas(w, h)
	mid := p.Offset.Scale(p.MidFactor)
	rim := p.Offset.Scale(p.RimFactor)

	for y := 0; y < h; y++ {
		row := y * src.Stride
		py := float64(y) + 0.5
		for x := 0; x < w; x++ {
			px := float64(x) + 0.5
			alpha := float64(src.Pix[row+x*4+3]) / 255
			d := (alpha - 0.5) * p.SDFScale
			wc, wm, wr := p.Bands(d)

			tc := raster.SampleLinear(src, px, py)
			tm := raster.SampleLinear(src, px+mid[0], py+mid[1])
			tr := raster.SampleLinear(src, px+rim[0], py+rim[1])

			outA := math.Max(tc.A, math.Max(tm.A, tr.A))
			if outA <= alphaEpsilon {
				continue
			}
			acc := tc.Scale(wc).Add(tm.Scale(wm)).Add(tr.Scale(wr))
			if acc.A <= alphaEpsilon {
				// Only an unweighted band has coverage; take its colour.
				acc = tc.Add(tm).Add(tr)
			}
			r, g, b := acc.Straight()
			raster.Put(dst, x, y, raster.Texel{R: r * outA, G: g * outA, B: b * outA, A: outA})
		}
	}
	return dst
}
