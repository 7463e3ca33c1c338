package composite

import (
	"image"
	"math"

	"turntable/internal/mathutil"
	"turntable/internal/raster"
)

// StitchParams control the seam blend between two adjacent yaw frames.
// T, SeamAngle and StepDeg change every tick; the rest is configuration.
type StitchParams struct {
	T         float64 `yaml:"-" json:"-"` // blend factor, 0 = A, 1 = B
	SeamAngle float64 `yaml:"-" json:"-"` // radians, motion direction
	StepDeg   float64 `yaml:"-" json:"-"` // angular spacing of the ring

	FeatherPx   float64 `yaml:"feather_px" json:"featherPx"`
	MaxWarpDeg  float64 `yaml:"max_warp_deg" json:"maxWarpDeg"`
	ShearFactor float64 `yaml:"shear_factor" json:"shearFactor"`
	SeamDrift   float64 `yaml:"seam_drift_px" json:"seamDriftPx"`
}

// DefaultStitch returns the stitch configuration tuned for 312px tiles.
func DefaultStitch() StitchParams {
	return StitchParams{
		FeatherPx:   24,
		MaxWarpDeg:  4,
		ShearFactor: 0.02,
		SeamDrift:   12,
	}
}

// Stitch blends frame a into frame b at p.T. The output has a's size.
//
// Sampling coordinates are centred and rotated by −SeamAngle so the seam is
// perpendicular to the motion direction. The seam only shows mid-transition:
// at T=0 the output is A, at T=1 it is B (modulo warp and shear).
func Stitch(a, b *image.NRGBA, p StitchParams) *image.NRGBA {
	bounds := a.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	dst := raster.NewCanvas(w, h)
	hw, hh := float64(w)/2, float64(h)/2

	t := mathutil.Clamp01(p.T)
	maxWarp := p.MaxWarpDeg
	if p.StepDeg > 0 {
		maxWarp = math.Min(maxWarp, p.StepDeg/2)
	}
	warpA := mathutil.Deg2Rad(-maxWarp * t)
	warpB := mathutil.Deg2Rad(maxWarp * (1 - t))
	velocity := 2*t - 1
	shearA := -p.ShearFactor * velocity
	shearB := p.ShearFactor * velocity

	cosS, sinS := math.Cos(p.SeamAngle), math.Sin(p.SeamAngle)
	offset := (0.5 - t) * p.SeamDrift
	f := math.Max(p.FeatherPx, 0)
	seamWeight := 4 * t * (1 - t)

	for y := 0; y < h; y++ {
		cy := float64(y) + 0.5 - hh
		for x := 0; x < w; x++ {
			cx := float64(x) + 0.5 - hw

			// Rotate by −SeamAngle.
			rx := cx*cosS + cy*sinS
			edge := mathutil.Smoothstep(-f, f, rx-offset)
			maskB := (1-seamWeight)*t + seamWeight*edge
			maskA := 1 - maskB

			var ta, tb raster.Texel
			if maskA > 0 {
				ta = warpSample(a, cx, cy, hw, hh, warpA, shearA)
			}
			if maskB > 0 {
				tb = warpSample(b, cx, cy, hw, hh, warpB, shearB)
			}

			wa := maskA * ta.A
			wb := maskB * tb.A
			sum := wa + wb
			if sum <= alphaEpsilon {
				continue
			}
			// Premultiplied sum; Put normalises colour by the summed weight.
			out := ta.Scale(maskA).Add(tb.Scale(maskB))
			out.A = mathutil.Clamp01(sum)
			raster.Put(dst, x, y, out)
		}
	}
	return dst
}

// warpSample reads img at centred coordinates (cx, cy) after a cylindrical
// rotation by warp radians about the vertical axis and a horizontal shear.
func warpSample(img *image.NRGBA, cx, cy, hw, hh, warp, shear float64) raster.Texel {
	sx := cx
	if warp != 0 && hw > 0 {
		u := mathutil.Clamp(cx/hw, -1, 1)
		sx += hw * (math.Sin(math.Asin(u)+warp) - u)
	}
	sx += shear * cy
	return raster.SampleLinear(img, sx+hw, cy+hh)
}
