package viewer

import (
	"image"

	"turntable/internal/phase"
)

// FrameSource supplies stabilized tiles by ring and yaw index.
type FrameSource interface {
	Rings() []phase.RingConfig
	Frame(ring, index int) (*image.NRGBA, bool)
}

// RingFrames is one ring of stabilized tiles in yaw order.
type RingFrames struct {
	Pitch  float64
	Frames []*image.NRGBA
}

// FrameSet is an in-memory FrameSource. It is read-only after construction.
type FrameSet struct {
	rings  []phase.RingConfig
	frames [][]*image.NRGBA
}

// NewFrameSet builds a FrameSource whose frame counts follow the slices given.
func NewFrameSet(rings ...RingFrames) *FrameSet {
	s := &FrameSet{
		rings:  make([]phase.RingConfig, len(rings)),
		frames: make([][]*image.NRGBA, len(rings)),
	}
	for i, r := range rings {
		s.rings[i] = phase.RingConfig{Pitch: r.Pitch, FrameCount: len(r.Frames)}
		s.frames[i] = r.Frames
	}
	return s
}

func (s *FrameSet) Rings() []phase.RingConfig {
	out := make([]phase.RingConfig, len(s.rings))
	copy(out, s.rings)
	return out
}

func (s *FrameSet) Frame(ring, index int) (*image.NRGBA, bool) {
	if ring < 0 || ring >= len(s.frames) {
		return nil, false
	}
	fs := s.frames[ring]
	if index < 0 || index >= len(fs) || fs[index] == nil {
		return nil, false
	}
	return fs[index], true
}
