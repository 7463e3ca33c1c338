package mathutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapDeg(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{370, 10},
		{-10, 350},
		{-720, 0},
		{-1e-15, 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, WrapDeg(tt.in), 1e-9, "WrapDeg(%v)", tt.in)
	}
}

func TestSignedAngleDelta(t *testing.T) {
	assert.InDelta(t, 20, SignedAngleDelta(350, 10), 1e-9)
	assert.InDelta(t, -20, SignedAngleDelta(10, 350), 1e-9)
	assert.InDelta(t, 180, SignedAngleDelta(0, 180), 1e-9)
}

func TestSmoothstep(t *testing.T) {
	assert.Equal(t, 0.0, Smoothstep(0, 1, -1))
	assert.Equal(t, 1.0, Smoothstep(0, 1, 2))
	assert.InDelta(t, 0.5, Smoothstep(0, 1, 0.5), 1e-12)
	assert.Equal(t, 1.0, Smoothstep(0.3, 0.3, 0.3))
	assert.Equal(t, 0.0, Smoothstep(0.3, 0.3, 0.2))
}

func TestEaseInOutCubic(t *testing.T) {
	assert.Equal(t, 0.0, EaseInOutCubic(0))
	assert.Equal(t, 1.0, EaseInOutCubic(1))
	assert.InDelta(t, 0.5, EaseInOutCubic(0.5), 1e-12)
	assert.Less(t, EaseInOutCubic(0.25), 0.25)
	assert.Greater(t, EaseInOutCubic(0.75), 0.75)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 3.0, Median([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 2, 3}))

	vals := []float64{3, 1, 2}
	Median(vals)
	assert.Equal(t, []float64{3, 1, 2}, vals, "input must not be reordered")
}

func TestVec2(t *testing.T) {
	a := Vec2{3, 4}
	b := Vec2{1, -2}
	assert.Equal(t, Vec2{4, 2}, a.Add(b))
	assert.Equal(t, Vec2{2, 6}, a.Sub(b))
	assert.Equal(t, Vec2{-1.5, -2}, a.Scale(-0.5))
	assert.Equal(t, 5.0, a.Len())
	assert.Zero(t, Vec2{}.Len())
}
