package stabilize

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"turntable/internal/mathutil"
)

// Acceptance thresholds used when Options leaves them unset.
const (
	DefaultMaxCentroidStddev = 0.5 // px
	DefaultMaxAreaDrift      = 2.5 // percent
)

// Metrics are the stabilization KPIs measured on the output tiles.
// They are reported, never enforced.
type Metrics struct {
	CentroidStddev float64         `json:"centroidStddev"`
	AreaDrift      float64         `json:"areaDriftPct"`
	Degenerate     int             `json:"degenerate"`
	Pass           bool            `json:"pass"`
	Centroids      []mathutil.Vec2 `json:"-"`
	Areas          []float64       `json:"-"`
}

// Measure computes the KPIs over output analyses; degenerate frames are
// counted but left out of the statistics.
func Measure(out []FrameAnalysis, maxStddev, maxDrift float64) Metrics {
	var m Metrics
	var xs, ys []float64
	for _, a := range out {
		if a.Degenerate {
			m.Degenerate++
			continue
		}
		xs = append(xs, a.Centroid[0])
		ys = append(ys, a.Centroid[1])
		m.Centroids = append(m.Centroids, a.Centroid)
		m.Areas = append(m.Areas, float64(a.Area))
	}

	if len(xs) > 0 {
		_, varX := stat.PopMeanVariance(xs, nil)
		_, varY := stat.PopMeanVariance(ys, nil)
		m.CentroidStddev = math.Sqrt(varX + varY)

		med := mathutil.Median(m.Areas)
		if med > 0 {
			for _, a := range m.Areas {
				m.AreaDrift = math.Max(m.AreaDrift, math.Abs(a-med)/med*100)
			}
		}
	}

	m.Pass = m.CentroidStddev < maxStddev && m.AreaDrift < maxDrift
	return m
}
