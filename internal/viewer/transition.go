package viewer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"turntable/internal/mathutil"
)

// ErrTransitionSuperseded settles a transition replaced by a newer PlayTo or drag.
var ErrTransitionSuperseded = errors.New("viewer: transition superseded")

// Ease maps linear progress in [0, 1] onto eased progress.
type Ease func(t float64) float64

// Built-in easing curves.
var (
	EaseLinear     Ease = mathutil.Clamp01
	EaseInOutCubic Ease = mathutil.EaseInOutCubic
)

// view is the animatable part of the state.
type view struct {
	yaw, pitch, zoom float64
}

// Transition is a handle on an animated camera move. It settles exactly once:
// with nil on arrival, or with ErrTransitionSuperseded when replaced.
type Transition struct {
	ID       uuid.UUID
	from, to view
	start    time.Time
	duration time.Duration
	ease     Ease

	once sync.Once
	done chan struct{}
	err  error
}

func newTransition(from, to view, start time.Time, d time.Duration, ease Ease) *Transition {
	if ease == nil {
		ease = EaseInOutCubic
	}
	return &Transition{
		ID:       uuid.New(),
		from:     from,
		to:       to,
		start:    start,
		duration: d,
		ease:     ease,
		done:     make(chan struct{}),
	}
}

// Target returns the destination yaw and pitch.
func (t *Transition) Target() (yaw, pitch float64) {
	return t.to.yaw, t.to.pitch
}

// Done is closed once the transition settles.
func (t *Transition) Done() <-chan struct{} {
	return t.done
}

// Err returns the settle error; nil while pending or after arrival.
func (t *Transition) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the transition settles or ctx ends.
func (t *Transition) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transition) settle(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

// at returns the interpolated view at now and whether the move is complete.
// Yaw takes the shortest way around.
func (t *Transition) at(now time.Time) (view, bool) {
	if t.duration <= 0 {
		return t.to, true
	}
	p := float64(now.Sub(t.start)) / float64(t.duration)
	if p >= 1 {
		return t.to, true
	}
	e := t.ease(mathutil.Clamp01(p))
	return view{
		yaw:   mathutil.WrapDeg(t.from.yaw + mathutil.SignedAngleDelta(t.from.yaw, t.to.yaw)*e),
		pitch: mathutil.Lerp(t.from.pitch, t.to.pitch, e),
		zoom:  mathutil.Lerp(t.from.zoom, t.to.zoom, e),
	}, false
}
