// Package phase maps a continuous viewing angle onto the discrete frames of
// one or more capture rings.
//
// Every function here is pure. Yaw is measured in degrees in [0, 360) and
// wraps; pitch selects between rings and clamps at the outermost rings.
package phase

import (
	"math"
	"sort"

	"turntable/internal/mathutil"
)

// RingConfig is one set of yaw frames captured at a fixed pitch.
type RingConfig struct {
	Pitch      float64 `yaml:"pitch" json:"pitch"`
	FrameCount int     `yaml:"frame_count" json:"frameCount"`
}

// Phase locates an angle between two adjacent frames.
type Phase struct {
	I       int     // lower frame
	J       int     // upper frame, (I+1) mod n
	T       float64 // blend toward J in [0, 1)
	StepDeg float64 // angular distance between frames
}

// Neighbor is one weighted frame contributing to a spherical sample.
type Neighbor struct {
	Ring   int // index into the ring slice passed to SphericalNeighbors
	Frame  int
	Weight float64
}

// Motion is the instantaneous camera motion direction.
type Motion struct {
	Angle     float64 // radians, atan2(dPhi, dTheta)
	Magnitude float64 // degrees
}

// AngleForIndex returns the yaw of frame i in a ring of total frames.
func AngleForIndex(i, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(i) * (mathutil.FullTurn / float64(total))
}

// Params resolves thetaDeg into the two bracketing frames and the blend between them.
func Params(thetaDeg float64, frameCount int) Phase {
	if frameCount <= 0 {
		return Phase{}
	}
	theta := mathutil.WrapDeg(thetaDeg)
	step := mathutil.FullTurn / float64(frameCount)
	u := theta / step
	fl := math.Floor(u)
	i := int(fl) % frameCount
	t := u - fl
	// u can round up to exactly frameCount for theta just below 360
	if t >= 1 {
		t = 0
	}
	return Phase{
		I:       i,
		J:       (i + 1) % frameCount,
		T:       t,
		StepDeg: step,
	}
}

// NearestIndex returns the frame closest to thetaDeg.
func NearestIndex(thetaDeg float64, frameCount int) int {
	p := Params(thetaDeg, frameCount)
	if p.T >= 0.5 {
		return p.J
	}
	return p.I
}

// SnapAngle rounds thetaDeg to the nearest discrete frame angle.
func SnapAngle(thetaDeg float64, frameCount int) float64 {
	return AngleForIndex(NearestIndex(thetaDeg, frameCount), frameCount)
}

// MotionDirection orients compositing seams with the camera's motion.
func MotionDirection(dTheta, dPhi float64) Motion {
	return Motion{
		Angle:     math.Atan2(dPhi, dTheta),
		Magnitude: math.Hypot(dTheta, dPhi),
	}
}

// PitchRange returns the lowest and highest ring pitch.
func PitchRange(rings []RingConfig) (lo, hi float64) {
	if len(rings) == 0 {
		return 0, 0
	}
	lo, hi = rings[0].Pitch, rings[0].Pitch
	for _, r := range rings[1:] {
		lo = math.Min(lo, r.Pitch)
		hi = math.Max(hi, r.Pitch)
	}
	return lo, hi
}

// BracketRings returns the two rings enclosing phi and the blend toward the upper one.
// Outside the covered range both indices name the extreme ring and the blend is 0.
func BracketRings(phi float64, rings []RingConfig) (lo, hi int, t float64) {
	if len(rings) == 0 {
		return -1, -1, 0
	}
	order := make([]int, len(rings))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rings[order[a]].Pitch < rings[order[b]].Pitch
	})

	first, last := order[0], order[len(order)-1]
	if phi <= rings[first].Pitch {
		return first, first, 0
	}
	if phi >= rings[last].Pitch {
		return last, last, 0
	}
	for k := 0; k+1 < len(order); k++ {
		a, b := order[k], order[k+1]
		pa, pb := rings[a].Pitch, rings[b].Pitch
		if phi >= pa && phi <= pb {
			if pb == pa {
				return a, a, 0
			}
			return a, b, (phi - pa) / (pb - pa)
		}
	}
	return last, last, 0
}

// SphericalNeighbors resolves (theta, phi) into up to four weighted frames,
// bilinear in yaw and pitch. Weights sum to 1; zero weights are dropped.
func SphericalNeighbors(theta, phi float64, rings []RingConfig) []Neighbor {
	lo, hi, tp := BracketRings(phi, rings)
	if lo < 0 {
		return nil
	}

	out := make([]Neighbor, 0, 4)
	add := func(ring, frame int, w float64) {
		if w <= 0 {
			return
		}
		for k := range out {
			if out[k].Ring == ring && out[k].Frame == frame {
				out[k].Weight += w
				return
			}
		}
		out = append(out, Neighbor{Ring: ring, Frame: frame, Weight: w})
	}

	ringWeights := [2]struct {
		ring int
		w    float64
	}{{lo, 1 - tp}, {hi, tp}}
	for _, rw := range ringWeights {
		if rings[rw.ring].FrameCount <= 0 {
			continue
		}
		p := Params(theta, rings[rw.ring].FrameCount)
		add(rw.ring, p.I, rw.w*(1-p.T))
		add(rw.ring, p.J, rw.w*p.T)
	}
	return out
}
