package stabilize

import (
	"context"
	"image"
	"image/color"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turntable/internal/mathutil"
)

// disc draws an opaque filled circle on a transparent size×size frame.
func disc(size int, cx, cy, r float64) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			if dx*dx+dy*dy <= r*r {
				img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
			}
		}
	}
	return img
}

// jittered is a 12-frame ring whose centroid and radius wobble per frame.
func jittered() []*image.NRGBA {
	offsets := [][3]float64{
		{0, 0, 10}, {2, -1, 10.5}, {-1, 2, 9.5}, {3, 1, 10}, {-2, -2, 11}, {1, 3, 10},
		{0, -3, 9.8}, {-3, 0, 10.2}, {2, 2, 10}, {-1, -1, 10.6}, {1, 0, 9.6}, {0, 1, 10},
	}
	frames := make([]*image.NRGBA, len(offsets))
	for i, o := range offsets {
		frames[i] = disc(48, 24+o[0], 24+o[1], o[2])
	}
	return frames
}

var testOpts = Options{OutputSize: 64, TargetFit: 0.6, FeatherPx: 2}

func TestAnalyze(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 2; y < 6; y++ {
		for x := 2; x < 6; x++ {
			img.SetNRGBA(x, y, color.NRGBA{A: 255})
		}
	}
	img.SetNRGBA(9, 9, color.NRGBA{A: 8}) // below threshold

	a := Analyze(img, 16)
	assert.False(t, a.Degenerate)
	assert.Equal(t, 16, a.Area)
	assert.InDelta(t, 4.0, a.Centroid[0], 1e-9)
	assert.InDelta(t, 4.0, a.Centroid[1], 1e-9)
	assert.Equal(t, image.Rect(2, 2, 6, 6), a.Bounds)
	assert.Equal(t, 4, a.Extent())
}

func TestAnalyzeEmptyFrame(t *testing.T) {
	a := Analyze(image.NewNRGBA(image.Rect(0, 0, 20, 10)), 16)
	assert.True(t, a.Degenerate)
	assert.Zero(t, a.Area)
	assert.Equal(t, 10.0, a.Centroid[0])
	assert.Equal(t, 5.0, a.Centroid[1])
}

func TestRunErrors(t *testing.T) {
	_, err := Run(nil, Options{})
	assert.ErrorIs(t, err, ErrNoFrames)

	_, err = Run([]*image.NRGBA{disc(16, 8, 8, 4), disc(20, 8, 8, 4)}, Options{})
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestRunIdempotent(t *testing.T) {
	frames := jittered()
	a, err := Run(frames, testOpts)
	require.NoError(t, err)
	b, err := Run(frames, testOpts)
	require.NoError(t, err)

	require.Len(t, b.Frames, len(a.Frames))
	for i := range a.Frames {
		assert.Equal(t, a.Frames[i].Image.Pix, b.Frames[i].Image.Pix, "frame %d", i)
		assert.Equal(t, a.Frames[i].Transform, b.Frames[i].Transform)
	}
	assert.Equal(t, a.Metrics.CentroidStddev, b.Metrics.CentroidStddev)
	assert.Equal(t, a.Metrics.AreaDrift, b.Metrics.AreaDrift)
}

func TestRunCentresOnTarget(t *testing.T) {
	res, err := Run(jittered(), testOpts)
	require.NoError(t, err)

	for _, f := range res.Frames {
		assert.Equal(t, image.Rect(0, 0, 64, 64), f.Image.Bounds())
		assert.InDelta(t, 32.0, f.Output.Centroid[0], 0.75, "frame %d x", f.Index)
		assert.InDelta(t, 32.0, f.Output.Centroid[1], 0.75, "frame %d y", f.Index)

		// Anchored transforms put the raw centroid exactly on target.
		p := f.Transform.Apply(f.Input.Centroid)
		assert.InDelta(t, res.Target.Centroid[0], p[0], 1e-9)
		assert.InDelta(t, res.Target.Centroid[1], p[1], 1e-9)
	}
}

func TestReportedStddevMatchesOutputs(t *testing.T) {
	res, err := Run(jittered(), testOpts)
	require.NoError(t, err)

	var mx, my float64
	for _, f := range res.Frames {
		mx += f.Output.Centroid[0]
		my += f.Output.Centroid[1]
	}
	n := float64(len(res.Frames))
	mx, my = mx/n, my/n
	var vx, vy float64
	for _, f := range res.Frames {
		vx += (f.Output.Centroid[0] - mx) * (f.Output.Centroid[0] - mx)
		vy += (f.Output.Centroid[1] - my) * (f.Output.Centroid[1] - my)
	}
	want := math.Sqrt(vx/n + vy/n)
	assert.InDelta(t, want, res.Metrics.CentroidStddev, 1e-9)
	assert.Less(t, res.Metrics.CentroidStddev, 1.0)
}

func TestScaleClampWithOutlier(t *testing.T) {
	frames := jittered()
	frames[5] = disc(48, 24, 24, 2)  // tiny
	frames[8] = disc(48, 24, 24, 22) // huge

	opts := testOpts
	opts.ScaleClamp = 0.15
	res, err := Run(frames, opts)
	require.NoError(t, err)

	for _, f := range res.Frames {
		for _, s := range []float64{f.Raw.Scale, f.Transform.Scale} {
			assert.GreaterOrEqual(t, s, 0.85-1e-12, "frame %d", f.Index)
			assert.LessOrEqual(t, s, 1.15+1e-12, "frame %d", f.Index)
		}
	}
	assert.InDelta(t, 1.15, res.Frames[5].Raw.Scale, 1e-12)
	assert.InDelta(t, 0.85, res.Frames[8].Raw.Scale, 1e-12)
}

func TestDegenerateFrameStillProduced(t *testing.T) {
	frames := jittered()
	frames[3] = image.NewNRGBA(image.Rect(0, 0, 48, 48))

	res, err := Run(frames, testOpts)
	require.NoError(t, err)
	require.Len(t, res.Frames, 12)

	assert.True(t, res.Frames[3].Degenerate)
	assert.NotNil(t, res.Frames[3].Image)
	assert.Equal(t, 1, res.Metrics.Degenerate)
	assert.Len(t, res.Metrics.Centroids, 11)
	assert.Equal(t, 1.0, res.Frames[3].Raw.Scale)

	// The applied scale comes from the neighbours' smoothed values.
	raw := make([]float64, len(res.Frames))
	skip := make([]bool, len(res.Frames))
	for i, f := range res.Frames {
		raw[i], skip[i] = f.Raw.Scale, f.Degenerate
	}
	want := smoothSeries(raw, skip, res.Window, true)
	assert.InDelta(t, want[3], res.Frames[3].Transform.Scale, 1e-12)
}

func TestAllFramesDegenerate(t *testing.T) {
	empty := []*image.NRGBA{
		image.NewNRGBA(image.Rect(0, 0, 8, 8)),
		image.NewNRGBA(image.Rect(0, 0, 8, 8)),
	}
	res, err := Run(empty, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Metrics.Degenerate)
	for _, f := range res.Frames {
		assert.Equal(t, 1.0, f.Transform.Scale)
	}
}

func TestDespeckle(t *testing.T) {
	img := disc(48, 24, 24, 10)
	img.SetNRGBA(2, 2, color.NRGBA{A: 255})
	img.SetNRGBA(3, 2, color.NRGBA{A: 255})
	img.SetNRGBA(45, 45, color.NRGBA{A: 10}) // below threshold, ignored

	out, removed := Despeckle(img, 16, 0.01)
	assert.Equal(t, 2, removed)
	assert.Equal(t, uint8(0), out.NRGBAAt(2, 2).A)
	assert.Equal(t, uint8(10), out.NRGBAAt(45, 45).A)
	assert.Equal(t, uint8(255), out.NRGBAAt(24, 24).A)
	assert.Equal(t, uint8(255), img.NRGBAAt(2, 2).A, "input must not be modified")

	clean := disc(48, 24, 24, 10)
	same, removed := Despeckle(clean, 16, 0.01)
	assert.Zero(t, removed)
	assert.Same(t, clean, same)
}

func TestRunDespeckleRestoresCentroid(t *testing.T) {
	frames := jittered()
	for _, f := range frames {
		for y := 0; y < 3; y++ {
			for x := 0; x < 3; x++ {
				f.SetNRGBA(x, y, color.NRGBA{A: 255})
			}
		}
	}
	opts := testOpts
	opts.DespeckleRatio = 0.05
	res, err := Run(frames, opts)
	require.NoError(t, err)
	for _, f := range res.Frames {
		assert.InDelta(t, 32, f.Output.Centroid[0], 0.75)
		assert.InDelta(t, 32, f.Output.Centroid[1], 0.75)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{TargetFit: 3, ScaleClamp: -1, FeatherPx: -2}.WithDefaults()
	assert.Equal(t, DefaultTargetFit, o.TargetFit)
	assert.Equal(t, DefaultScaleClamp, o.ScaleClamp)
	assert.Equal(t, DefaultFeatherPx, o.FeatherPx)
	assert.Equal(t, DefaultSmoothWindow, o.SmoothWindow)
	assert.Equal(t, uint8(DefaultAlphaThreshold), o.AlphaThreshold)
	assert.Equal(t, DefaultMaxCentroidStddev, o.MaxCentroidStddev)
	assert.Equal(t, DefaultMaxAreaDrift, o.MaxAreaDrift)
	assert.False(t, o.Open)
}

func TestSanitizeWindow(t *testing.T) {
	tests := []struct {
		window, n, want int
	}{
		{5, 12, 5},
		{4, 12, 5},
		{1, 12, 3},
		{-7, 12, 3},
		{9, 4, 3},
		{9, 5, 5},
		{5, 2, 1},
		{5, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeWindow(tt.window, tt.n), "window=%d n=%d", tt.window, tt.n)
	}
}

func TestSmoothSeries(t *testing.T) {
	step := []float64{0, 0, 0, 0, 10}

	t.Run("constant unchanged", func(t *testing.T) {
		got := smoothSeries([]float64{3, 3, 3, 3, 3}, nil, 5, false)
		for _, v := range got {
			assert.InDelta(t, 3.0, v, 1e-12)
		}
	})

	t.Run("boundary reuses nearest window", func(t *testing.T) {
		got := smoothSeries(step, nil, 3, false)
		assert.InDelta(t, 0.0, got[0], 1e-12)
		assert.InDelta(t, 2.5, got[3], 1e-12)
		assert.InDelta(t, 2.5, got[4], 1e-12)
	})

	t.Run("loop wraps", func(t *testing.T) {
		got := smoothSeries(step, nil, 3, true)
		assert.InDelta(t, 2.5, got[0], 1e-12)
		assert.InDelta(t, 5.0, got[4], 1e-12)
	})

	t.Run("skipped entries carry no weight", func(t *testing.T) {
		got := smoothSeries(step, []bool{false, false, false, false, true}, 3, false)
		assert.InDelta(t, 0.0, got[3], 1e-12)
	})

	t.Run("window one is identity", func(t *testing.T) {
		assert.Equal(t, step, smoothSeries(step, nil, 1, false))
	})
}

func TestRunAsync(t *testing.T) {
	r := <-RunAsync(context.Background(), jittered(), testOpts)
	require.NoError(t, r.Err)
	assert.Len(t, r.Result.Frames, 12)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r = <-RunAsync(ctx, jittered(), testOpts)
	assert.ErrorIs(t, r.Err, context.Canceled)
	assert.Nil(t, r.Result)
}

// swelling is a 12-frame ring whose radius peaks opposite frame 0, so the
// frames either side of the ring seam are the smallest.
func swelling() []*image.NRGBA {
	frames := make([]*image.NRGBA, 12)
	for i := range frames {
		r := 10 + 2*math.Sin(math.Pi*float64(i)/12)
		frames[i] = disc(48, 24, 24, r)
	}
	return frames
}

func TestRunWrapsRingSeam(t *testing.T) {
	closed, err := Run(swelling(), testOpts)
	require.NoError(t, err)

	opts := testOpts
	opts.Open = true
	open, err := Run(swelling(), opts)
	require.NoError(t, err)

	raw := make([]float64, 12)
	for i, f := range closed.Frames {
		raw[i] = f.Raw.Scale
	}
	wrapped := smoothSeries(raw, nil, closed.Window, true)
	clipped := smoothSeries(raw, nil, open.Window, false)
	for i := range raw {
		assert.InDelta(t, wrapped[i], closed.Frames[i].Transform.Scale, 1e-12, "frame %d", i)
		assert.InDelta(t, clipped[i], open.Frames[i].Transform.Scale, 1e-12, "frame %d", i)
	}

	// Frames 11, 0 and 1 are neighbours on a closed ring and share the
	// small-radius correction.
	assert.Greater(t, closed.Frames[0].Transform.Scale, open.Frames[0].Transform.Scale)
	assert.InDelta(t, closed.Frames[1].Transform.Scale, closed.Frames[11].Transform.Scale, 1e-9)
	assert.Less(t, closed.Metrics.AreaDrift, open.Metrics.AreaDrift)
}

func TestReportedAreaDriftMatchesOutputs(t *testing.T) {
	frames := jittered()
	frames[7] = image.NewNRGBA(image.Rect(0, 0, 48, 48))
	res, err := Run(frames, testOpts)
	require.NoError(t, err)

	var areas []float64
	for _, f := range res.Frames {
		if !f.Output.Degenerate {
			areas = append(areas, float64(f.Output.Area))
		}
	}
	require.Len(t, areas, 11)
	sorted := append([]float64(nil), areas...)
	sort.Float64s(sorted)
	med := sorted[len(sorted)/2]

	var want float64
	for _, a := range areas {
		want = math.Max(want, math.Abs(a-med)/med*100)
	}
	assert.InDelta(t, want, res.Metrics.AreaDrift, 1e-9)
	assert.Equal(t, res.Metrics.CentroidStddev < DefaultMaxCentroidStddev && want < DefaultMaxAreaDrift, res.Metrics.Pass)
}

func TestMeasure(t *testing.T) {
	at := func(areas ...int) []FrameAnalysis {
		out := make([]FrameAnalysis, len(areas))
		for i, a := range areas {
			out[i] = FrameAnalysis{Centroid: mathutil.Vec2{10, 10}, Area: a, Degenerate: a == 0}
		}
		return out
	}
	tests := []struct {
		name       string
		in         []FrameAnalysis
		drift      float64
		degenerate int
		pass       bool
	}{
		{"uniform", at(200, 200, 200), 0, 0, true},
		{"outlier", at(200, 200, 200, 200, 300), 50, 0, false},
		{"median not mean", at(100, 100, 100, 90, 400), 300, 0, false},
		{"below threshold", at(200, 200, 204), 2, 0, true},
		{"at threshold fails", at(200, 200, 205), 2.5, 0, false},
		{"degenerate excluded", at(200, 0, 200, 204), 2, 1, true},
		{"all degenerate", at(0, 0), 0, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Measure(tt.in, DefaultMaxCentroidStddev, DefaultMaxAreaDrift)
			assert.InDelta(t, tt.drift, m.AreaDrift, 1e-9)
			assert.Equal(t, tt.degenerate, m.Degenerate)
			assert.Zero(t, m.CentroidStddev)
			assert.Equal(t, tt.pass, m.Pass)
		})
	}
}

func TestMeasureCentroidThreshold(t *testing.T) {
	in := []FrameAnalysis{
		{Centroid: mathutil.Vec2{10, 10}, Area: 100},
		{Centroid: mathutil.Vec2{11, 10}, Area: 100},
	}
	m := Measure(in, 0.5, DefaultMaxAreaDrift)
	assert.InDelta(t, 0.5, m.CentroidStddev, 1e-12)
	assert.False(t, m.Pass, "stddev equal to the limit fails")

	m = Measure(in, 0.51, DefaultMaxAreaDrift)
	assert.True(t, m.Pass)
}
