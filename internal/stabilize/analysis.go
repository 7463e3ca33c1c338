package stabilize

import (
	"image"

	"turntable/internal/mathutil"
)

// FrameAnalysis is the alpha-mask footprint of one frame.
type FrameAnalysis struct {
	Centroid   mathutil.Vec2   // mean foreground pixel centre
	Area       int             // foreground pixel count
	Bounds     image.Rectangle // foreground bounding box, empty when Degenerate
	Degenerate bool            // no foreground: centroid falls back to the frame centre
}

// Extent returns the larger side of the foreground bounding box.
func (a FrameAnalysis) Extent() int {
	return max(a.Bounds.Dx(), a.Bounds.Dy())
}

// Analyze thresholds alpha at threshold and measures the foreground.
func Analyze(img *image.NRGBA, threshold uint8) FrameAnalysis {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if threshold == 0 {
		threshold = 1
	}

	var sumX, sumY float64
	area := 0
	minX, minY := w, h
	maxX, maxY := -1, -1
	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			if img.Pix[row+x*4+3] < threshold {
				continue
			}
			area++
			sumX += float64(x) + 0.5
			sumY += float64(y) + 0.5
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if area == 0 {
		return FrameAnalysis{
			Centroid:   mathutil.Vec2{float64(w) / 2, float64(h) / 2},
			Degenerate: true,
		}
	}
	n := float64(area)
	return FrameAnalysis{
		Centroid: mathutil.Vec2{sumX / n, sumY / n},
		Area:     area,
		Bounds:   image.Rect(minX, minY, maxX+1, maxY+1),
	}
}
