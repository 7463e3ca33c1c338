package stabilize

import (
	"math"

	"turntable/internal/mathutil"
)

// Transform maps a raw frame onto the group target: p' = Scale·p + (Dx, Dy).
type Transform struct {
	Dx    float64 `json:"dx"`
	Dy    float64 `json:"dy"`
	Scale float64 `json:"scale"`
}

// Apply maps a raw-frame point through the transform.
func (t Transform) Apply(p mathutil.Vec2) mathutil.Vec2 {
	return mathutil.Vec2{t.Scale*p[0] + t.Dx, t.Scale*p[1] + t.Dy}
}

// Target is the robust (median) stabilization target of a frame set.
type Target struct {
	Centroid mathutil.Vec2 `json:"centroid"`
	Area     float64       `json:"area"`
	Extent   float64       `json:"extent"`
}

// robustTarget takes medians over usable frames; if none are usable, over all.
func robustTarget(analyses []FrameAnalysis) Target {
	var xs, ys, areas, extents []float64
	collect := func(skipDegenerate bool) {
		for _, a := range analyses {
			if skipDegenerate && a.Degenerate {
				continue
			}
			xs = append(xs, a.Centroid[0])
			ys = append(ys, a.Centroid[1])
			areas = append(areas, float64(a.Area))
			extents = append(extents, float64(a.Extent()))
		}
	}
	collect(true)
	if len(xs) == 0 {
		collect(false)
	}
	return Target{
		Centroid: mathutil.Vec2{mathutil.Median(xs), mathutil.Median(ys)},
		Area:     mathutil.Median(areas),
		Extent:   mathutil.Median(extents),
	}
}

// frameTransform computes the scale and translation that move a frame onto target.
// Degenerate frames and a zero target area fall back to the guarded unit scale.
func frameTransform(a FrameAnalysis, target Target, scaleClamp float64) Transform {
	scale := 1.0
	if !a.Degenerate && target.Area > 0 {
		scale = math.Sqrt(target.Area / math.Max(float64(a.Area), 1))
		scale = mathutil.Clamp(scale, 1-scaleClamp, 1+scaleClamp)
	}
	return anchored(scale, a.Centroid, target.Centroid)
}

// anchored places the scaled centroid exactly on target.
func anchored(scale float64, centroid, target mathutil.Vec2) Transform {
	return Transform{
		Dx:    target[0] - scale*centroid[0],
		Dy:    target[1] - scale*centroid[1],
		Scale: scale,
	}
}

// sanitizeWindow forces an odd window of at least 3 that fits into n frames.
// It returns 1 (no smoothing) when fewer than three frames exist.
func sanitizeWindow(window, n int) int {
	if n < 3 {
		return 1
	}
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	if window > n {
		window = n
		if window%2 == 0 {
			window--
		}
	}
	return window
}

// smoothSeries applies a triangular-weighted moving average. Entries with
// skip set contribute no weight. Without loop, frames closer than half a window
// to either end reuse the nearest full window; with loop, indices wrap.
func smoothSeries(vals []float64, skip []bool, window int, loop bool) []float64 {
	n := len(vals)
	out := make([]float64, n)
	copy(out, vals)
	if window <= 1 {
		return out
	}
	k := window / 2

	for i := 0; i < n; i++ {
		centre := i
		if !loop {
			centre = min(max(i, k), n-1-k)
		}
		var sum, wsum float64
		for j := -k; j <= k; j++ {
			idx := centre + j
			if loop {
				idx = ((idx % n) + n) % n
			}
			if skip != nil && skip[idx] {
				continue
			}
			w := float64(k + 1 - abs(j))
			sum += w * vals[idx]
			wsum += w
		}
		if wsum > 0 {
			out[i] = sum / wsum
		}
	}
	return out
}

// smoothTransforms smooths every field of the transform sequence.
func smoothTransforms(ts []Transform, skip []bool, window int, loop bool) []Transform {
	n := len(ts)
	dx := make([]float64, n)
	dy := make([]float64, n)
	sc := make([]float64, n)
	for i, t := range ts {
		dx[i], dy[i], sc[i] = t.Dx, t.Dy, t.Scale
	}
	dx = smoothSeries(dx, skip, window, loop)
	dy = smoothSeries(dy, skip, window, loop)
	sc = smoothSeries(sc, skip, window, loop)

	out := make([]Transform, n)
	for i := range out {
		out[i] = Transform{Dx: dx[i], Dy: dy[i], Scale: sc[i]}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
