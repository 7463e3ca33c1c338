package viewer

import (
	"math"
	"time"

	"turntable/internal/phase"
)

// dragState is the baseline captured at pointer-down.
type dragState struct {
	startX, startY float64
	baseYaw        float64
	basePitch      float64
	lastX          float64
	lastAt         time.Time
	velocity       float64 // deg/s, EMA
}

// inside reports whether (x, y) hits the activation region. A zero viewport
// accepts every position.
func (c *Controller) inside(x, y float64) bool {
	w, h := c.opts.ViewportWidth, c.opts.ViewportHeight
	if w > 0 && (x < 0 || x >= w) {
		return false
	}
	if h > 0 && (y < 0 || y >= h) {
		return false
	}
	return true
}

// PointerDown begins a drag when (x, y) is inside the viewport. It supersedes
// any pending transition and reports whether a drag started.
func (c *Controller) PointerDown(x, y float64, now time.Time) bool {
	c.mu.Lock()
	if c.drag != nil || !c.inside(x, y) {
		c.mu.Unlock()
		return false
	}
	c.supersede()
	c.drag = &dragState{
		startX:    x,
		startY:    y,
		baseYaw:   c.state.Yaw,
		basePitch: c.state.Pitch,
		lastX:     x,
		lastAt:    now,
	}
	c.state.IsDragging = true
	c.state.Velocity = 0
	c.mu.Unlock()

	c.events.emit(DragEvent{Phase: DragStart, X: x, Y: y})
	return true
}

// PointerMove rotates by the cumulative pointer delta since PointerDown.
func (c *Controller) PointerMove(x, y float64, now time.Time) {
	c.mu.Lock()
	d := c.drag
	if d == nil {
		c.mu.Unlock()
		return
	}
	dx, dy := x-d.startX, y-d.startY

	if dt := now.Sub(d.lastAt).Seconds(); dt > 0 {
		inst := (x - d.lastX) * c.opts.Sensitivity / dt
		a := c.opts.VelocityEMA
		d.velocity = a*inst + (1-a)*d.velocity
		d.lastX, d.lastAt = x, now
	}
	c.state.Velocity = d.velocity

	evs := c.setAngles(
		d.baseYaw+dx*c.opts.Sensitivity,
		d.basePitch+dy*c.opts.PitchSensitivity,
	)
	evs = append(evs, DragEvent{Phase: DragMove, X: x, Y: y, DX: dx, DY: dy, Velocity: d.velocity})
	c.mu.Unlock()
	c.events.emit(evs...)
}

// PointerUp ends the drag. A horizontal travel of at least
// CommitFraction·ViewportWidth commits to the neighbouring frame in the drag
// direction (or the nearest frame when the drag went further); shorter drags
// revert to the pre-drag view. The returned transition settles on arrival.
// It returns nil when no drag was active.
func (c *Controller) PointerUp(x, y float64, now time.Time) *Transition {
	c.mu.Lock()
	d := c.drag
	if d == nil {
		c.mu.Unlock()
		return nil
	}
	c.drag = nil
	c.state.IsDragging = false
	dx, dy := x-d.startX, y-d.startY

	threshold := c.opts.CommitFraction * c.opts.ViewportWidth
	committed := c.opts.ViewportWidth > 0 && math.Abs(dx) >= threshold && dx != 0

	var tr *Transition
	if committed {
		n := c.rings[c.state.Ring].FrameCount
		base := phase.NearestIndex(d.baseYaw, n)
		target := phase.NearestIndex(c.state.Yaw, n)
		if target == base {
			dir := 1
			if dx*c.opts.Sensitivity < 0 {
				dir = -1
			}
			target = ((base+dir)%n + n) % n
		}
		tr = c.startTransition(phase.AngleForIndex(target, n), c.state.Pitch, c.opts.RevertDuration, EaseInOutCubic, now)
	} else {
		tr = c.startTransition(d.baseYaw, d.basePitch, c.opts.RevertDuration, EaseInOutCubic, now)
	}
	ev := DragEvent{Phase: DragEnd, X: x, Y: y, DX: dx, DY: dy, Velocity: d.velocity, Committed: committed}
	c.mu.Unlock()

	c.events.emit(ev)
	return tr
}
