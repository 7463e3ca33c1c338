package sheet

import (
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/image/draw"
)

// Cell sizes and frame counts the upstream generator produces.
var (
	KnownCellSizes   = []int{176, 312, 584}
	KnownFrameCounts = []int{12, 24, 36}
)

// Grid describes how frames are packed into a sheet, row-major.
type Grid struct {
	Cols     int `yaml:"cols" json:"cols"`
	Rows     int `yaml:"rows" json:"rows"`
	CellSize int `yaml:"cell_size" json:"cellSize"`
	Overscan int `yaml:"overscan" json:"overscan"` // px trimmed from each cell edge
}

// Cells returns the number of cells in the grid.
func (g Grid) Cells() int {
	return g.Cols * g.Rows
}

// GridFor picks the most square grid holding frameCount cells.
func GridFor(frameCount, cellSize int) Grid {
	cols := 1
	for cols*cols < frameCount {
		cols++
	}
	rows := (frameCount + cols - 1) / cols
	return Grid{Cols: cols, Rows: rows, CellSize: cellSize}
}

// FrameSize returns the side of one frame after the overscan trim.
func (g Grid) FrameSize() int {
	if g.Overscan <= 0 || 2*g.Overscan >= g.CellSize {
		return g.CellSize
	}
	return g.CellSize - 2*g.Overscan
}

// Split cuts the first count cells out of img. count <= 0 takes every cell.
// Each frame is an independent copy anchored at the origin, trimmed by the
// grid overscan.
func Split(img *image.NRGBA, g Grid, count int) ([]*image.NRGBA, error) {
	if g.Cols <= 0 || g.Rows <= 0 || g.CellSize <= 0 {
		return nil, ErrBadGrid
	}
	b := img.Bounds()
	if b.Dx() < g.Cols*g.CellSize || b.Dy() < g.Rows*g.CellSize {
		return nil, fmt.Errorf("%w: %dx%d < %dx%d cells of %d",
			ErrGridMismatch, b.Dx(), b.Dy(), g.Cols, g.Rows, g.CellSize)
	}
	if count <= 0 || count > g.Cells() {
		count = g.Cells()
	}
	warnUnusual(g.CellSize, count)

	frames := make([]*image.NRGBA, count)
	for i := 0; i < count; i++ {
		col, row := i%g.Cols, i/g.Cols
		src := image.Rect(col*g.CellSize, row*g.CellSize, (col+1)*g.CellSize, (row+1)*g.CellSize).Add(b.Min)
		if size := g.FrameSize(); size != g.CellSize {
			src = src.Inset(g.Overscan)
		}
		dst := image.NewNRGBA(image.Rect(0, 0, src.Dx(), src.Dy()))
		draw.Copy(dst, image.Point{}, img, src, draw.Src, nil)
		frames[i] = dst
	}
	return frames, nil
}

func warnUnusual(cellSize, count int) {
	if !contains(KnownCellSizes, cellSize) {
		slog.Warn("sheet: unusual cell size", "cell_size", cellSize)
	}
	if !contains(KnownFrameCounts, count) {
		slog.Warn("sheet: unusual frame count", "frames", count)
	}
}

func contains(vals []int, v int) bool {
	for _, x := range vals {
		if x == v {
			return true
		}
	}
	return false
}
