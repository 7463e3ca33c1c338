// Package export writes a stabilized frame set to disk as WebP tiles plus a
// manifest.json describing the grid, rings, viewer parameters and QC.
// The manifest is the contract for downstream ZIP/glTF packagers.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"turntable/internal/composite"
	"turntable/internal/sheet"
	"turntable/internal/stabilize"
)

// ManifestName is the manifest file name inside an export directory.
const ManifestName = "manifest.json"

// Manifest describes one exported frame set.
type Manifest struct {
	ID        string                 `json:"id"`
	CreatedAt time.Time              `json:"createdAt"`
	Grid      sheet.Grid             `json:"grid"`
	CellSize  int                    `json:"cellSize"`
	Overscan  int                    `json:"overscan"`
	TileSize  int                    `json:"tileSize"`
	Rings     []RingEntry            `json:"rings"`
	Stitch    composite.StitchParams `json:"stitch"`
	Zoom      ZoomEntry              `json:"zoom"`
	Parallax  ParallaxEntry          `json:"parallax"`
	Stabilize stabilize.Options      `json:"stabilize"`
}

// RingEntry lists the tiles of one ring in yaw order. A tile that failed to
// encode keeps its slot with an empty path.
type RingEntry struct {
	Pitch      float64           `json:"pitch"`
	FrameCount int               `json:"frameCount"`
	Frames     []string          `json:"frames"`
	QC         stabilize.Metrics `json:"qc"`
}

type ZoomEntry struct {
	Max float64 `json:"max"`
}

type ParallaxEntry struct {
	Max      float64                  `json:"max"`
	OffsetPx float64                  `json:"offsetPx"`
	Bands    composite.ParallaxParams `json:"bands"`
}

// WriteManifest writes m as indented JSON to path.
func WriteManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("export: encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}

// ReadManifest loads the manifest of an export directory.
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("export: read %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("export: parse %s: %w", path, err)
	}
	return &m, nil
}

// Ring is one stabilized ring to export.
type Ring struct {
	Pitch  float64
	Result *stabilize.Result
}

// Job is a complete export request.
type Job struct {
	OutputDir   string
	Grid        sheet.Grid
	Rings       []Ring
	Stitch      composite.StitchParams
	Parallax    composite.ParallaxParams
	ZoomMax     float64
	ParallaxMax float64
	ParallaxPx  float64
	Workers     int
}

// Run writes every tile and the manifest. Tiles that fail to encode are
// reported in the results and left blank in the manifest; only directory or
// manifest failures return an error.
func Run(job Job) (*Manifest, []Result, error) {
	if err := os.MkdirAll(job.OutputDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("export: create %s: %w", job.OutputDir, err)
	}

	var tiles []Tile
	for ri, r := range job.Rings {
		for _, f := range r.Result.Frames {
			tiles = append(tiles, Tile{Ring: ri, Index: f.Index, Image: f.Image})
		}
	}
	results := WriteTiles(job.OutputDir, tiles, job.Workers)

	m := &Manifest{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Grid:      job.Grid,
		CellSize:  job.Grid.CellSize,
		Overscan:  job.Grid.Overscan,
		Stitch:    job.Stitch,
		Zoom:      ZoomEntry{Max: job.ZoomMax},
		Parallax: ParallaxEntry{
			Max:      job.ParallaxMax,
			OffsetPx: job.ParallaxPx,
			Bands:    job.Parallax,
		},
	}
	for ri, r := range job.Rings {
		m.Stabilize = r.Result.Options
		m.TileSize = r.Result.Options.OutputSize
		entry := RingEntry{
			Pitch:      r.Pitch,
			FrameCount: len(r.Result.Frames),
			Frames:     make([]string, len(r.Result.Frames)),
			QC:         r.Result.Metrics,
		}
		for _, res := range results {
			if res.Ring == ri && res.Success && res.Index < len(entry.Frames) {
				entry.Frames[res.Index] = res.Path
			}
		}
		m.Rings = append(m.Rings, entry)
	}

	if err := WriteManifest(filepath.Join(job.OutputDir, ManifestName), m); err != nil {
		return nil, results, err
	}
	return m, results, nil
}
