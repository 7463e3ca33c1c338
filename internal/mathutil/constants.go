package mathutil

import "math"

// FullTurn is one full orbit in degrees.
const FullTurn = 360.0

// SignedAngleDelta returns b-a folded into (-180, 180].
func SignedAngleDelta(a, b float64) float64 {
	d := math.Mod(b-a, FullTurn)
	if d <= -180 {
		d += FullTurn
	} else if d > 180 {
		d -= FullTurn
	}
	return d
}

// WrapDeg normalizes an angle in degrees into [0, 360).
func WrapDeg(d float64) float64 {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	w := math.Mod(d, FullTurn)
	if w < 0 {
		w += FullTurn
	}
	// math.Mod(-tiny, 360)+360 rounds to exactly 360
	if w >= FullTurn {
		w = 0
	}
	return w
}
