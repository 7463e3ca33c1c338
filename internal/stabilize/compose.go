package stabilize

import (
	"image"
	"math"

	"turntable/internal/mathutil"
	"turntable/internal/raster"
)

// placement maps target space onto the square output canvas: the target
// centroid lands on the canvas centre and the target extent fills fit of it.
type placement struct {
	size   int
	gain   float64
	target mathutil.Vec2
}

func newPlacement(size int, fit float64, target Target, cell image.Rectangle) placement {
	extent := target.Extent
	if extent <= 0 {
		extent = float64(max(cell.Dx(), cell.Dy()))
	}
	return placement{
		size:   size,
		gain:   fit * float64(size) / math.Max(extent, 1),
		target: target.Centroid,
	}
}

// compose resamples raw through t and the placement, then feathers the border.
// For each destination pixel, the source position is found by inverse mapping.
func compose(raw *image.NRGBA, t Transform, pl placement, featherPx float64) *image.NRGBA {
	size := pl.size
	dst := raster.NewCanvas(size, size)
	half := float64(size) / 2
	invScale := 1 / t.Scale
	invGain := 1 / pl.gain

	for y := 0; y < size; y++ {
		oy := float64(y) + 0.5
		qy := (oy-half)*invGain + pl.target[1]
		py := (qy - t.Dy) * invScale
		for x := 0; x < size; x++ {
			ox := float64(x) + 0.5
			qx := (ox-half)*invGain + pl.target[0]
			px := (qx - t.Dx) * invScale

			tx := raster.SampleLinear(raw, px, py)
			if tx.A <= 0 {
				continue
			}
			if f := feather(ox, oy, float64(size), featherPx); f < 1 {
				tx = tx.Scale(f)
			}
			raster.Put(dst, x, y, tx)
		}
	}
	return dst
}

// feather is a linear ramp from 0 at the canvas border to 1 at featherPx inside.
func feather(x, y, size, featherPx float64) float64 {
	if featherPx <= 0 {
		return 1
	}
	d := math.Min(math.Min(x, size-x), math.Min(y, size-y))
	return mathutil.Clamp01(d / featherPx)
}
