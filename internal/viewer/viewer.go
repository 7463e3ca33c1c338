// Package viewer is the interactive orbit controller. A Controller owns the
// camera state (yaw, pitch, zoom, parallax), turns pointer gestures and
// programmatic moves into state changes, and composites one frame per Tick
// from the stabilized tiles of its FrameSource.
//
// All methods are safe to call from different goroutines; they serialize on
// an internal mutex. Listeners run after the mutex is released, so they may
// call back into the Controller.
package viewer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"turntable/internal/composite"
	"turntable/internal/mathutil"
	"turntable/internal/phase"
)

var (
	// ErrNoRings is returned by New when the source has no rings.
	ErrNoRings = errors.New("viewer: no rings")

	// ErrNoFrames is returned by New when a ring has no usable frames.
	ErrNoFrames = errors.New("viewer: no frames")

	// ErrMissingFrame is returned by Tick when a neighbour tile is absent.
	// The tick is skipped; state stays consistent.
	ErrMissingFrame = errors.New("viewer: missing frame")
)

// Options configure a Controller. Zero values take the defaults below.
type Options struct {
	ZoomMax     float64 `yaml:"zoom_max" json:"zoomMax"`         // 1 disables zoom
	ParallaxMax float64 `yaml:"parallax_max" json:"parallaxMax"` // 0 disables parallax
	ParallaxPx  float64 `yaml:"parallax_px" json:"parallaxPx"`   // rim offset at parallax 1
	Parallax    float64 `yaml:"parallax" json:"parallax"`        // initial value

	DegPerSec float64 `yaml:"deg_per_sec" json:"degPerSec"`
	AutoPlay  bool    `yaml:"autoplay" json:"autoplay"`

	// Drag
	Sensitivity      float64       `yaml:"sensitivity" json:"sensitivity"`            // deg per px, horizontal
	PitchSensitivity float64       `yaml:"pitch_sensitivity" json:"pitchSensitivity"` // deg per px, vertical
	CommitFraction   float64       `yaml:"commit_fraction" json:"commitFraction"`     // of ViewportWidth
	VelocityEMA      float64       `yaml:"velocity_ema" json:"velocityEma"`
	ViewportWidth    float64       `yaml:"viewport_width" json:"viewportWidth"`
	ViewportHeight   float64       `yaml:"viewport_height" json:"viewportHeight"`
	RevertDuration   time.Duration `yaml:"revert_duration" json:"revertDuration"`
	StepDuration     time.Duration `yaml:"step_duration" json:"stepDuration"`
	WheelStep        float64       `yaml:"wheel_step" json:"wheelStep"`

	Stitch       composite.StitchParams   `yaml:"-" json:"-"`
	ParallaxPass composite.ParallaxParams `yaml:"-" json:"-"`
	Shadow       composite.ShadowParams   `yaml:"-" json:"-"`

	// Now supplies transition start times. Defaults to time.Now.
	Now func() time.Time `yaml:"-" json:"-"`
}

// Option defaults.
const (
	DefaultZoomMax          = 2.0
	DefaultParallaxMax      = 1.0
	DefaultParallaxPx       = 6.0
	DefaultDegPerSec        = 30.0
	DefaultSensitivity      = 0.5
	DefaultPitchSensitivity = 0.25
	DefaultCommitFraction   = 1.0 / 3
	DefaultVelocityEMA      = 0.3
	DefaultRevertDuration   = 250 * time.Millisecond
	DefaultStepDuration     = 300 * time.Millisecond
	DefaultWheelStep        = 1.1
)

// DefaultOptions returns Options with every field set, passes included.
func DefaultOptions() Options {
	return Options{
		ZoomMax:          DefaultZoomMax,
		ParallaxMax:      DefaultParallaxMax,
		ParallaxPx:       DefaultParallaxPx,
		DegPerSec:        DefaultDegPerSec,
		Sensitivity:      DefaultSensitivity,
		PitchSensitivity: DefaultPitchSensitivity,
		CommitFraction:   DefaultCommitFraction,
		VelocityEMA:      DefaultVelocityEMA,
		RevertDuration:   DefaultRevertDuration,
		StepDuration:     DefaultStepDuration,
		WheelStep:        DefaultWheelStep,
		Stitch:           composite.DefaultStitch(),
		ParallaxPass:     composite.DefaultParallax(),
		Shadow:           composite.DefaultShadow(),
	}
}

func (o Options) withDefaults() Options {
	if o.ZoomMax == 0 {
		o.ZoomMax = DefaultZoomMax
	}
	if o.ParallaxPx == 0 {
		o.ParallaxPx = DefaultParallaxPx
	}
	if o.Sensitivity == 0 {
		o.Sensitivity = DefaultSensitivity
	}
	if o.PitchSensitivity == 0 {
		o.PitchSensitivity = DefaultPitchSensitivity
	}
	if o.CommitFraction <= 0 {
		o.CommitFraction = DefaultCommitFraction
	}
	if o.VelocityEMA <= 0 || o.VelocityEMA > 1 {
		o.VelocityEMA = DefaultVelocityEMA
	}
	if o.RevertDuration <= 0 {
		o.RevertDuration = DefaultRevertDuration
	}
	if o.StepDuration <= 0 {
		o.StepDuration = DefaultStepDuration
	}
	if o.WheelStep <= 1 {
		o.WheelStep = DefaultWheelStep
	}
	if o.Stitch == (composite.StitchParams{}) {
		o.Stitch = composite.DefaultStitch()
	}
	if o.ParallaxPass == (composite.ParallaxParams{}) {
		o.ParallaxPass = composite.DefaultParallax()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// ViewerState is a snapshot of the controller's camera and gesture state.
type ViewerState struct {
	Yaw        float64
	Pitch      float64
	Zoom       float64
	Parallax   float64
	Ring       int
	FrameIndex int
	IsDragging bool
	IsPlaying  bool
	Velocity   float64 // deg/s, smoothed drag velocity
}

// Controller is the viewer state machine. Create it with New.
type Controller struct {
	mu     sync.Mutex
	opts   Options
	source FrameSource
	rings  []phase.RingConfig

	minPitch, maxPitch float64

	state      ViewerState
	transition *Transition
	drag       *dragState

	lastTick  time.Time
	prevYaw   float64
	prevPitch float64
	seamAngle float64
	ready     bool

	events *dispatcher
}

// New validates the source and returns a controller at yaw 0 on the ring
// closest to pitch 0.
func New(src FrameSource, opts Options) (*Controller, error) {
	rings := src.Rings()
	if len(rings) == 0 {
		return nil, ErrNoRings
	}
	for i, r := range rings {
		if r.FrameCount <= 0 {
			return nil, fmt.Errorf("%w: ring %d", ErrNoFrames, i)
		}
		if _, ok := src.Frame(i, 0); !ok {
			return nil, fmt.Errorf("%w: ring %d has no frame 0", ErrNoFrames, i)
		}
	}

	opts = opts.withDefaults()
	c := &Controller{
		opts:   opts,
		source: src,
		rings:  rings,
		events: newDispatcher(),
	}
	c.minPitch, c.maxPitch = phase.PitchRange(rings)
	c.state = ViewerState{
		Pitch:     mathutil.Clamp(0, c.minPitch, c.maxPitch),
		Zoom:      1,
		IsPlaying: opts.AutoPlay,
	}
	c.state.Parallax = c.clampParallax(opts.Parallax)
	c.prevPitch = c.state.Pitch
	c.state.Ring, c.state.FrameIndex = c.resolveFrame(c.state.Yaw, c.state.Pitch)

	slog.Debug("viewer: controller created",
		"rings", len(rings),
		"pitch_min", c.minPitch,
		"pitch_max", c.maxPitch,
		"zoom_max", opts.ZoomMax)
	return c, nil
}

// Subscribe registers fn for kind and returns its unsubscribe func.
func (c *Controller) Subscribe(kind EventKind, fn Listener) func() {
	return c.events.subscribe(kind, fn)
}

// State returns a snapshot of the current state.
func (c *Controller) State() ViewerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Rings returns the ring layout the controller was built with.
func (c *Controller) Rings() []phase.RingConfig {
	out := make([]phase.RingConfig, len(c.rings))
	copy(out, c.rings)
	return out
}

// SetYaw wraps theta into [0, 360), optionally snapping to the nearest frame.
func (c *Controller) SetYaw(theta float64, snap bool) {
	c.mu.Lock()
	if snap {
		theta = phase.SnapAngle(theta, c.rings[c.state.Ring].FrameCount)
	}
	evs := c.setAngles(theta, c.state.Pitch)
	c.mu.Unlock()
	c.events.emit(evs...)
}

// SetPitch clamps phi into the ring range, optionally snapping to the nearest ring.
func (c *Controller) SetPitch(phi float64, snap bool) {
	c.mu.Lock()
	if snap {
		phi = c.rings[c.nearestRing(phi)].Pitch
	}
	evs := c.setAngles(c.state.Yaw, phi)
	c.mu.Unlock()
	c.events.emit(evs...)
}

// SetZoom clamps z into [1, ZoomMax]. No-op when zoom is disabled.
func (c *Controller) SetZoom(z float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Zoom = c.clampZoom(z)
}

// SetParallax clamps p into [0, ParallaxMax]. No-op when parallax is disabled.
func (c *Controller) SetParallax(p float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opts.ParallaxMax <= 0 {
		return
	}
	c.state.Parallax = c.clampParallax(p)
}

// SetViewport resizes the pointer area. The drag commit threshold scales
// with w; zero sizes accept pointers anywhere.
func (c *Controller) SetViewport(w, h float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.ViewportWidth = math.Max(w, 0)
	c.opts.ViewportHeight = math.Max(h, 0)
}

// Wheel zooms by WheelStep per unit of delta; positive zooms in.
func (c *Controller) Wheel(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Zoom = c.clampZoom(c.state.Zoom * math.Pow(c.opts.WheelStep, delta))
}

func (c *Controller) Play()  { c.setPlaying(true) }
func (c *Controller) Pause() { c.setPlaying(false) }

// Toggle flips auto-rotation and reports the new setting.
func (c *Controller) Toggle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.IsPlaying = !c.state.IsPlaying
	return c.state.IsPlaying
}

func (c *Controller) setPlaying(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.IsPlaying = on
}

// PlayTo animates toward (yaw, pitch) over d, replacing any pending move.
// A non-positive d jumps on the next Tick.
func (c *Controller) PlayTo(yaw, pitch float64, d time.Duration, ease Ease) *Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startTransition(mathutil.WrapDeg(yaw), c.clampPitch(pitch), d, ease, c.opts.Now())
}

// Step moves by delta whole frames on the current ring.
func (c *Controller) Step(delta int) *Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.rings[c.state.Ring].FrameCount
	from := c.state.Yaw
	if c.transition != nil {
		// Repeated steps accumulate from the pending target.
		from = c.transition.to.yaw
	}
	idx := phase.NearestIndex(from, n) + delta
	target := phase.AngleForIndex(((idx%n)+n)%n, n)
	return c.startTransition(target, c.state.Pitch, c.opts.StepDuration, EaseInOutCubic, c.opts.Now())
}

// startTransition must be called with c.mu held.
func (c *Controller) startTransition(yaw, pitch float64, d time.Duration, ease Ease, now time.Time) *Transition {
	c.supersede()
	from := view{c.state.Yaw, c.state.Pitch, c.state.Zoom}
	to := view{yaw, pitch, c.state.Zoom}
	c.transition = newTransition(from, to, now, d, ease)
	slog.Debug("viewer: transition started",
		"id", c.transition.ID,
		"yaw", yaw,
		"pitch", pitch,
		"duration", d)
	return c.transition
}

// supersede settles the pending transition, if any, with ErrTransitionSuperseded.
func (c *Controller) supersede() {
	if c.transition == nil {
		return
	}
	slog.Debug("viewer: transition superseded", "id", c.transition.ID)
	c.transition.settle(ErrTransitionSuperseded)
	c.transition = nil
}

// setAngles applies yaw and pitch and returns the events to emit once unlocked.
func (c *Controller) setAngles(yaw, pitch float64) []Event {
	yaw = mathutil.WrapDeg(yaw)
	pitch = c.clampPitch(pitch)
	var evs []Event
	if yaw != c.state.Yaw || pitch != c.state.Pitch {
		c.state.Yaw, c.state.Pitch = yaw, pitch
		evs = append(evs, AngleEvent{Yaw: yaw, Pitch: pitch})
	}
	ring, frame := c.resolveFrame(yaw, pitch)
	if ring != c.state.Ring || frame != c.state.FrameIndex {
		c.state.Ring, c.state.FrameIndex = ring, frame
		evs = append(evs, FrameEvent{Ring: ring, Frame: frame})
	}
	return evs
}

func (c *Controller) clampPitch(phi float64) float64 {
	if math.IsNaN(phi) {
		return c.state.Pitch
	}
	return mathutil.Clamp(phi, c.minPitch, c.maxPitch)
}

func (c *Controller) clampZoom(z float64) float64 {
	if c.opts.ZoomMax <= 1 || math.IsNaN(z) {
		return c.state.Zoom
	}
	return mathutil.Clamp(z, 1, c.opts.ZoomMax)
}

func (c *Controller) clampParallax(p float64) float64 {
	if c.opts.ParallaxMax <= 0 || math.IsNaN(p) {
		return 0
	}
	return mathutil.Clamp(p, 0, c.opts.ParallaxMax)
}

// nearestRing returns the ring whose pitch is closest to phi.
func (c *Controller) nearestRing(phi float64) int {
	best := 0
	for i, r := range c.rings {
		if math.Abs(r.Pitch-phi) < math.Abs(c.rings[best].Pitch-phi) {
			best = i
		}
	}
	return best
}

// resolveFrame returns the ring and frame nearest to (yaw, pitch).
func (c *Controller) resolveFrame(yaw, pitch float64) (ring, frame int) {
	ring = c.nearestRing(pitch)
	return ring, phase.NearestIndex(yaw, c.rings[ring].FrameCount)
}
