package viewer

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"turntable/internal/composite"
	"turntable/internal/mathutil"
	"turntable/internal/phase"
)

// CompositeFrame is the output of one Tick. It is not retained by the
// controller. Image may alias a source tile and must not be modified.
type CompositeFrame struct {
	Image     *image.NRGBA
	State     ViewerState
	Phase     phase.Phase // yaw phase on the lower bracketing ring
	Neighbors []phase.Neighbor
	SeamAngle float64 // radians
}

// minMotion is the per-tick angular change (deg) below which the seam keeps its angle.
const minMotion = 1e-9

// tickPlan is everything compositing needs, captured under the lock.
type tickPlan struct {
	state     ViewerState
	lo, hi    int
	pitchT    float64
	phaseLo   phase.Phase
	phaseHi   phase.Phase
	neighbors []phase.Neighbor
	seam      float64
}

// Tick advances animation to now and composites the current view.
// The first call emits EventReady. A missing tile returns ErrMissingFrame;
// the state has still advanced and the next Tick may succeed.
func (c *Controller) Tick(now time.Time) (*CompositeFrame, error) {
	plan, evs := c.advance(now)
	c.events.emit(evs...)

	img, err := c.render(plan)
	if err != nil {
		slog.Debug("viewer: tick skipped", "error", err)
		return nil, err
	}
	return &CompositeFrame{
		Image:     img,
		State:     plan.state,
		Phase:     plan.phaseLo,
		Neighbors: plan.neighbors,
		SeamAngle: plan.seam,
	}, nil
}

// advance applies elapsed time to the state and resolves the frames to draw.
func (c *Controller) advance(now time.Time) (tickPlan, []Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var evs []Event
	if !c.ready {
		c.ready = true
		total := 0
		for _, r := range c.rings {
			total += r.FrameCount
		}
		evs = append(evs, ReadyEvent{Rings: len(c.rings), Frames: total})
	}

	var dt float64
	if !c.lastTick.IsZero() {
		dt = math.Max(now.Sub(c.lastTick).Seconds(), 0)
	}
	c.lastTick = now

	switch {
	case c.transition != nil:
		v, finished := c.transition.at(now)
		evs = append(evs, c.setAngles(v.yaw, v.pitch)...)
		c.state.Zoom = v.zoom
		if finished {
			c.transition.settle(nil)
			c.transition = nil
		}
	case c.state.IsPlaying && c.drag == nil && c.opts.DegPerSec != 0:
		evs = append(evs, c.setAngles(c.state.Yaw+c.opts.DegPerSec*dt, c.state.Pitch)...)
	}

	dTheta := mathutil.SignedAngleDelta(c.prevYaw, c.state.Yaw)
	dPhi := c.state.Pitch - c.prevPitch
	if m := phase.MotionDirection(dTheta, dPhi); m.Magnitude > minMotion {
		c.seamAngle = m.Angle
	}
	c.prevYaw, c.prevPitch = c.state.Yaw, c.state.Pitch

	lo, hi, pt := phase.BracketRings(c.state.Pitch, c.rings)
	plan := tickPlan{
		state:     c.state,
		lo:        lo,
		hi:        hi,
		pitchT:    pt,
		phaseLo:   phase.Params(c.state.Yaw, c.rings[lo].FrameCount),
		phaseHi:   phase.Params(c.state.Yaw, c.rings[hi].FrameCount),
		neighbors: phase.SphericalNeighbors(c.state.Yaw, c.state.Pitch, c.rings),
		seam:      c.seamAngle,
	}
	return plan, evs
}

// render runs the compositing passes for plan without holding the lock.
func (c *Controller) render(p tickPlan) (*image.NRGBA, error) {
	img, err := c.stitchRing(p.lo, p.phaseLo, p.seam)
	if err != nil {
		return nil, err
	}
	if p.hi != p.lo && p.pitchT > 0 {
		upper, err := c.stitchRing(p.hi, p.phaseHi, p.seam)
		if err != nil {
			return nil, err
		}
		img = composite.Mix(img, upper, p.pitchT)
	}

	if p.state.Parallax > 0 {
		pp := c.opts.ParallaxPass
		// Zero at captured angles, strongest mid-transition.
		mag := p.state.Parallax * c.opts.ParallaxPx * math.Sin(math.Pi*p.phaseLo.T)
		pp.Offset = mathutil.Vec2{math.Cos(p.seam), math.Sin(p.seam)}.Scale(mag)
		img = composite.Parallax(img, pp)
	}
	if c.opts.Shadow.Intensity > 0 {
		img = composite.Shadow(img, c.opts.Shadow)
	}
	if p.state.Zoom > 1 {
		img = composite.Zoom(img, p.state.Zoom)
	}
	return img, nil
}

// stitchRing blends the two yaw neighbours of one ring.
func (c *Controller) stitchRing(ring int, ph phase.Phase, seam float64) (*image.NRGBA, error) {
	a, ok := c.source.Frame(ring, ph.I)
	if !ok {
		return nil, fmt.Errorf("%w: ring %d frame %d", ErrMissingFrame, ring, ph.I)
	}
	// At T=0 the pass still runs on A alone so its shear matches the T=1
	// end of the previous pair.
	b := a
	if ph.T > 0 {
		if b, ok = c.source.Frame(ring, ph.J); !ok {
			return nil, fmt.Errorf("%w: ring %d frame %d", ErrMissingFrame, ring, ph.J)
		}
	}
	sp := c.opts.Stitch
	sp.T, sp.SeamAngle, sp.StepDeg = ph.T, seam, ph.StepDeg
	return composite.Stitch(a, b, sp), nil
}
