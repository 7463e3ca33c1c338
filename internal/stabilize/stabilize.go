// Package stabilize removes per-frame centroid and scale jitter from a ring of
// independently captured frames.
//
// The pipeline is strictly sequential: analysis, robust (median) target,
// per-frame transform, temporal smoothing, composition into feathered square
// tiles, and QC measurement. It never fails on content: empty frames are
// flagged Degenerate and still produced.
package stabilize

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"
)

var (
	// ErrNoFrames is returned when Run is called with an empty frame set.
	ErrNoFrames = errors.New("stabilize: no frames")

	// ErrSizeMismatch is returned when frames do not share one size.
	ErrSizeMismatch = errors.New("stabilize: frame sizes differ")
)

// Option defaults.
const (
	DefaultTargetFit      = 0.8
	DefaultScaleClamp     = 0.15
	DefaultFeatherPx      = 6.0
	DefaultSmoothWindow   = 5
	DefaultAlphaThreshold = 16
)

// Options tune the pipeline. Zero values take the defaults.
type Options struct {
	TargetFit      float64 `yaml:"target_fit" json:"targetFit"`
	ScaleClamp     float64 `yaml:"scale_clamp" json:"scaleClamp"`
	FeatherPx      float64 `yaml:"feather_px" json:"featherPx"`
	SmoothWindow   int     `yaml:"smooth_window" json:"smoothWindow"`
	AlphaThreshold uint8   `yaml:"alpha_threshold" json:"alphaThreshold"`
	OutputSize     int     `yaml:"output_size" json:"outputSize"` // 0 = raw frame size

	// Open marks a partial arc. Rings are full 360° loops by default and the
	// smoothing window wraps from the last frame to the first; an open arc
	// reuses the nearest full window at its ends instead.
	Open bool `yaml:"open" json:"open"`

	// Free leaves the smoothed translation as-is instead of re-anchoring the
	// centroid onto the target after scale smoothing.
	Free bool `yaml:"free" json:"free"`

	// DespeckleRatio clears foreground islands smaller than this fraction of
	// the frame's foreground before analysis. 0 disables it.
	DespeckleRatio float64 `yaml:"despeckle_ratio" json:"despeckleRatio"`

	MaxCentroidStddev float64 `yaml:"max_centroid_stddev" json:"maxCentroidStddev"`
	MaxAreaDrift      float64 `yaml:"max_area_drift" json:"maxAreaDrift"`
}

// WithDefaults fills unset or invalid fields.
func (o Options) WithDefaults() Options {
	if o.TargetFit <= 0 || o.TargetFit > 1 {
		o.TargetFit = DefaultTargetFit
	}
	if o.ScaleClamp <= 0 || o.ScaleClamp >= 1 {
		o.ScaleClamp = DefaultScaleClamp
	}
	if o.FeatherPx < 0 {
		o.FeatherPx = DefaultFeatherPx
	}
	if o.SmoothWindow == 0 {
		o.SmoothWindow = DefaultSmoothWindow
	}
	if o.AlphaThreshold == 0 {
		o.AlphaThreshold = DefaultAlphaThreshold
	}
	if o.MaxCentroidStddev <= 0 {
		o.MaxCentroidStddev = DefaultMaxCentroidStddev
	}
	if o.MaxAreaDrift <= 0 {
		o.MaxAreaDrift = DefaultMaxAreaDrift
	}
	return o
}

// StabilizedFrame is one output tile. It is immutable once returned.
type StabilizedFrame struct {
	Index      int
	Image      *image.NRGBA
	Raw        Transform     // before temporal smoothing
	Transform  Transform     // applied
	Input      FrameAnalysis // measured on the raw frame
	Output     FrameAnalysis // measured on the tile
	Degenerate bool
}

// Result is the full output of one stabilization run.
type Result struct {
	Frames   []StabilizedFrame
	Target   Target
	Metrics  Metrics
	Options  Options // resolved
	Window   int     // smoothing window actually used
	Duration time.Duration
}

// Images returns the tile images in frame order.
func (r *Result) Images() []*image.NRGBA {
	out := make([]*image.NRGBA, len(r.Frames))
	for i, f := range r.Frames {
		out[i] = f.Image
	}
	return out
}

// Run stabilizes an angularly ordered frame set.
func Run(frames []*image.NRGBA, opts Options) (*Result, error) {
	start := time.Now()
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	cell := frames[0].Bounds()
	for i, f := range frames {
		if f == nil || f.Bounds().Size() != cell.Size() {
			return nil, fmt.Errorf("%w: frame %d", ErrSizeMismatch, i)
		}
	}

	opts = opts.WithDefaults()
	if opts.OutputSize <= 0 {
		opts.OutputSize = max(cell.Dx(), cell.Dy())
	}
	n := len(frames)

	if opts.DespeckleRatio > 0 {
		cleaned := make([]*image.NRGBA, n)
		for i, f := range frames {
			var removed int
			cleaned[i], removed = Despeckle(f, opts.AlphaThreshold, opts.DespeckleRatio)
			if removed > 0 {
				slog.Debug("stabilize: specks removed", "frame", i, "pixels", removed)
			}
		}
		frames = cleaned
	}

	// Analysis
	analyses := make([]FrameAnalysis, n)
	skip := make([]bool, n)
	for i, f := range frames {
		analyses[i] = Analyze(f, opts.AlphaThreshold)
		skip[i] = analyses[i].Degenerate
		if skip[i] {
			slog.Warn("stabilize: degenerate frame", "frame", i)
		}
	}

	// Robust target and per-frame transforms
	target := robustTarget(analyses)
	raw := make([]Transform, n)
	for i, a := range analyses {
		raw[i] = frameTransform(a, target, opts.ScaleClamp)
	}

	// Temporal smoothing
	window := sanitizeWindow(opts.SmoothWindow, n)
	if window != opts.SmoothWindow {
		slog.Debug("stabilize: smoothing window adjusted", "requested", opts.SmoothWindow, "used", window)
	}
	smoothed := smoothTransforms(raw, skip, window, !opts.Open)
	if !opts.Free {
		for i := range smoothed {
			smoothed[i] = anchored(smoothed[i].Scale, analyses[i].Centroid, target.Centroid)
		}
	}

	// Composition
	pl := newPlacement(opts.OutputSize, opts.TargetFit, target, cell)
	out := make([]StabilizedFrame, n)
	outAnalyses := make([]FrameAnalysis, n)
	for i, f := range frames {
		img := compose(f, smoothed[i], pl, opts.FeatherPx)
		outAnalyses[i] = Analyze(img, opts.AlphaThreshold)
		out[i] = StabilizedFrame{
			Index:      i,
			Image:      img,
			Raw:        raw[i],
			Transform:  smoothed[i],
			Input:      analyses[i],
			Output:     outAnalyses[i],
			Degenerate: analyses[i].Degenerate,
		}
	}

	// QC
	metrics := Measure(outAnalyses, opts.MaxCentroidStddev, opts.MaxAreaDrift)
	res := &Result{
		Frames:   out,
		Target:   target,
		Metrics:  metrics,
		Options:  opts,
		Window:   window,
		Duration: time.Since(start),
	}

	slog.Info("stabilize: done",
		"frames", n,
		"window", window,
		"centroid_stddev", metrics.CentroidStddev,
		"area_drift_pct", metrics.AreaDrift,
		"degenerate", metrics.Degenerate,
		"pass", metrics.Pass,
		"elapsed", res.Duration)
	return res, nil
}

// AsyncResult carries the outcome of RunAsync.
type AsyncResult struct {
	Result *Result
	Err    error
}

// RunAsync runs the pipeline on its own goroutine so interaction is not
// blocked. The channel receives exactly one value and is then closed.
// A cancelled context reports ctx.Err() but does not interrupt a run in progress.
func RunAsync(ctx context.Context, frames []*image.NRGBA, opts Options) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	go func() {
		defer close(ch)
		if err := ctx.Err(); err != nil {
			ch <- AsyncResult{Err: err}
			return
		}
		res, err := Run(frames, opts)
		if err == nil {
			err = ctx.Err()
		}
		ch <- AsyncResult{Result: res, Err: err}
	}()
	return ch
}
