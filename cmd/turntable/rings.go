package main

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"turntable/internal/config"
	"turntable/internal/export"
	"turntable/internal/sheet"
	"turntable/internal/stabilize"
	"turntable/internal/viewer"
)

// rawRing is one ring sheet cut into frames.
type rawRing struct {
	Pitch  float64
	Path   string
	Frames []*image.NRGBA
}

// loadSheets indexes cfg.Sheet.Dir plus any explicit pitch=path sheets and
// splits every ring sheet found.
func loadSheets(cfg *config.Config) ([]rawRing, error) {
	idx, err := sheet.BuildIndex(cfg.Sheet.Dir)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", cfg.Sheet.Dir, err)
	}
	for _, spec := range cfg.Sheet.Extra {
		if err := idx.AddSpec(spec); err != nil {
			return nil, err
		}
	}
	if idx.Len() == 0 {
		return nil, fmt.Errorf("no ring_<pitch> sheets in %s", cfg.Sheet.Dir)
	}
	grid := cfg.Grid()
	var rings []rawRing
	for _, rs := range idx.Rings() {
		img, err := sheet.Load(rs.Path)
		if err != nil {
			return nil, err
		}
		frames, err := sheet.Split(img, grid, cfg.Sheet.FrameCount)
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", rs.Path, err)
		}
		slog.Debug("sheet: loaded", "path", rs.Path, "pitch", rs.Pitch, "frames", len(frames))
		rings = append(rings, rawRing{Pitch: rs.Pitch, Path: rs.Path, Frames: frames})
	}
	return rings, nil
}

// stabilizeAll runs every ring concurrently and returns results in ring order.
func stabilizeAll(ctx context.Context, rings []rawRing, opts stabilize.Options) ([]export.Ring, error) {
	chans := make([]<-chan stabilize.AsyncResult, len(rings))
	for i, r := range rings {
		chans[i] = stabilize.RunAsync(ctx, r.Frames, opts)
	}
	out := make([]export.Ring, len(rings))
	for i, ch := range chans {
		res := <-ch
		if res.Err != nil {
			return nil, fmt.Errorf("ring %g: %w", rings[i].Pitch, res.Err)
		}
		out[i] = export.Ring{Pitch: rings[i].Pitch, Result: res.Result}
	}
	return out, nil
}

// frameSource builds the viewer input from dir: an export directory when it
// holds a manifest, ring sheets otherwise.
func frameSource(ctx context.Context, cfg *config.Config, dir string) (viewer.FrameSource, error) {
	if _, err := os.Stat(filepath.Join(dir, export.ManifestName)); err == nil {
		m, err := export.ReadManifest(dir)
		if err != nil {
			return nil, err
		}
		slog.Info("view: opened export", "dir", dir, "id", m.ID, "rings", len(m.Rings))
		return export.NewTileCache(dir, m), nil
	}

	cfg.Sheet.Dir = dir
	raw, err := loadSheets(cfg)
	if err != nil {
		return nil, err
	}
	results, err := stabilizeAll(ctx, raw, cfg.Stabilize)
	if err != nil {
		return nil, err
	}
	rings := make([]viewer.RingFrames, len(results))
	for i, r := range results {
		rings[i] = viewer.RingFrames{Pitch: r.Pitch, Frames: r.Result.Images()}
	}
	return viewer.NewFrameSet(rings...), nil
}
