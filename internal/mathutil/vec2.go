package mathutil

import "math"

// Vec2 is a 2-component vector (value type, stack-allocated).
type Vec2 [2]float64

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{v[0] + o[0], v[1] + o[1]}
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{v[0] - o[0], v[1] - o[1]}
}

// Scale returns v multiplied by s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{v[0] * s, v[1] * s}
}

// Len returns the Euclidean length of v.
func (v Vec2) Len() float64 {
	return math.Hypot(v[0], v[1])
}
