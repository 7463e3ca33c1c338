package raster

import "image"

// NewCanvas allocates a zeroed (fully transparent) w×h buffer anchored at the origin.
func NewCanvas(w, h int) *image.NRGBA {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return image.NewNRGBA(image.Rect(0, 0, w, h))
}

// Clone copies img into a new buffer anchored at the origin.
func Clone(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := NewCanvas(w, h)
	for y := 0; y < h; y++ {
		srcOff := y * img.Stride
		copy(out.Pix[y*out.Stride:y*out.Stride+w*4], img.Pix[srcOff:srcOff+w*4])
	}
	return out
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
