package export

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HugoSmits86/nativewebp"
)

// Tile is one stabilized frame queued for encoding.
type Tile struct {
	Ring  int
	Index int
	Image *image.NRGBA
}

// RelPath is the tile location inside the export directory.
func (t Tile) RelPath() string {
	return filepath.ToSlash(filepath.Join(fmt.Sprintf("ring_%d", t.Ring), fmt.Sprintf("%02d.webp", t.Index)))
}

// Result holds the outcome of writing one tile.
type Result struct {
	Ring    int
	Index   int
	Path    string
	Success bool
	Error   string
}

// WriteTiles encodes tiles as WebP under dir using a worker pool.
// Results are returned in input order.
func WriteTiles(dir string, tiles []Tile, workers int) []Result {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	total := len(tiles)
	results := make([]Result, total)
	var processed atomic.Int64

	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := processed.Load()
				if p > 0 {
					elapsed := time.Since(start).Seconds()
					slog.Info("export: progress", "done", p, "total", total, "tiles_per_sec", float64(p)/elapsed)
				}
			}
		}
	}()

	// Worker pool
	tileChan := make(chan int, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range tileChan {
				results[idx] = writeTile(dir, tiles[idx])
				processed.Add(1)
			}
		}()
	}

	// Send work
	for i := range tiles {
		tileChan <- i
	}
	close(tileChan)

	wg.Wait()
	close(done)

	slog.Debug("export: tiles written", "total", total, "elapsed", time.Since(start))
	return results
}

func writeTile(dir string, t Tile) Result {
	res := Result{Ring: t.Ring, Index: t.Index, Path: t.RelPath()}
	if t.Image == nil {
		res.Error = "no image"
		return res
	}

	outPath := filepath.Join(dir, filepath.FromSlash(res.Path))
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		res.Error = err.Error()
		return res
	}

	f, err := os.Create(outPath)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer f.Close()

	if err := nativewebp.Encode(f, t.Image, nil); err != nil {
		res.Error = fmt.Sprintf("WebP encode: %v", err)
		return res
	}

	res.Success = true
	return res
}
