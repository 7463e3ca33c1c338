package viewer

import (
	"fmt"
	"log/slog"
	"sync"
)

// EventKind selects a subscriber list.
type EventKind int

const (
	EventAngle EventKind = iota // yaw or pitch changed
	EventFrame                  // resolved frame index changed
	EventReady                  // first tick after construction
	EventDrag                   // drag start, move, end
)

func (k EventKind) String() string {
	switch k {
	case EventAngle:
		return "angle"
	case EventFrame:
		return "frame"
	case EventReady:
		return "ready"
	case EventDrag:
		return "drag"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one of AngleEvent, FrameEvent, ReadyEvent or DragEvent.
type Event interface {
	Kind() EventKind
}

type AngleEvent struct {
	Yaw, Pitch float64
}

type FrameEvent struct {
	Ring, Frame int
}

type ReadyEvent struct {
	Rings  int
	Frames int
}

// DragPhase is the stage of a drag gesture.
type DragPhase int

const (
	DragStart DragPhase = iota
	DragMove
	DragEnd
)

func (p DragPhase) String() string {
	switch p {
	case DragStart:
		return "start"
	case DragMove:
		return "move"
	case DragEnd:
		return "end"
	default:
		return fmt.Sprintf("DragPhase(%d)", int(p))
	}
}

type DragEvent struct {
	Phase     DragPhase
	X, Y      float64
	DX, DY    float64 // cumulative since start
	Velocity  float64 // deg/s, smoothed
	Committed bool    // DragEnd only: snapped forward instead of reverting
}

func (AngleEvent) Kind() EventKind { return EventAngle }
func (FrameEvent) Kind() EventKind { return EventFrame }
func (ReadyEvent) Kind() EventKind { return EventReady }
func (DragEvent) Kind() EventKind  { return EventDrag }

// Listener receives events of the kind it subscribed to.
type Listener func(Event)

type subscriber struct {
	id uint64
	fn Listener
}

// dispatcher keeps independent subscriber lists per kind.
type dispatcher struct {
	mu   sync.Mutex
	next uint64
	subs map[EventKind][]subscriber
}

func newDispatcher() *dispatcher {
	return &dispatcher{subs: make(map[EventKind][]subscriber)}
}

func (d *dispatcher) subscribe(kind EventKind, fn Listener) func() {
	d.mu.Lock()
	d.next++
	id := d.next
	d.subs[kind] = append(d.subs[kind], subscriber{id: id, fn: fn})
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			list := d.subs[kind]
			for i, s := range list {
				if s.id == id {
					d.subs[kind] = append(list[:i:i], list[i+1:]...)
					return
				}
			}
		})
	}
}

// emit delivers each event to a snapshot of its subscribers in subscription order.
func (d *dispatcher) emit(events ...Event) {
	for _, ev := range events {
		d.mu.Lock()
		list := append([]subscriber(nil), d.subs[ev.Kind()]...)
		d.mu.Unlock()
		for _, s := range list {
			deliver(s, ev)
		}
	}
}

func deliver(s subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("viewer: listener panicked", "event", ev.Kind().String(), "subscriber", s.id, "panic", r)
		}
	}()
	s.fn(ev)
}
