package stabilize

import "image"

// Despeckle clears 8-connected foreground islands smaller than minRatio of
// the total foreground, so stray specks do not pull the centroid or widen the
// bounding box. Foreground is alpha >= threshold. It returns img itself when
// nothing is removed, otherwise a copy, plus the number of pixels cleared.
func Despeckle(img *image.NRGBA, threshold uint8, minRatio float64) (*image.NRGBA, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if threshold == 0 {
		threshold = 1
	}

	fg := make([]bool, w*h)
	total := 0
	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			if img.Pix[row+x*4+3] >= threshold {
				fg[y*w+x] = true
				total++
			}
		}
	}
	if total == 0 || minRatio <= 0 {
		return img, 0
	}

	labels := make([]int32, w*h)
	for i := range labels {
		labels[i] = -1
	}
	var sizes []int
	queue := make([]int, 0, 1024)
	dx := [8]int{-1, 0, 1, -1, 1, -1, 0, 1}
	dy := [8]int{-1, -1, -1, 0, 0, 1, 1, 1}

	for start := range fg {
		if !fg[start] || labels[start] >= 0 {
			continue
		}
		id := int32(len(sizes))
		queue = append(queue[:0], start)
		labels[start] = id
		size := 0
		for len(queue) > 0 {
			cur := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			size++
			cx, cy := cur%w, cur/w
			for d := 0; d < 8; d++ {
				nx, ny := cx+dx[d], cy+dy[d]
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				ni := ny*w + nx
				if fg[ni] && labels[ni] < 0 {
					labels[ni] = id
					queue = append(queue, ni)
				}
			}
		}
		sizes = append(sizes, size)
	}
	if len(sizes) <= 1 {
		return img, 0
	}

	minSize := int(float64(total) * minRatio)
	var out *image.NRGBA
	removed := 0
	for i, l := range labels {
		if l < 0 || sizes[l] >= minSize {
			continue
		}
		if out == nil {
			out = image.NewNRGBA(image.Rect(0, 0, w, h))
			for y := 0; y < h; y++ {
				copy(out.Pix[y*out.Stride:y*out.Stride+w*4], img.Pix[y*img.Stride:y*img.Stride+w*4])
			}
		}
		p := (i/w)*out.Stride + (i%w)*4
		out.Pix[p], out.Pix[p+1], out.Pix[p+2], out.Pix[p+3] = 0, 0, 0, 0
		removed++
	}
	if out == nil {
		return img, 0
	}
	return out, removed
}
