package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turntable/internal/composite"
	"turntable/internal/sheet"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultFrameCount, cfg.Sheet.FrameCount)
	assert.Equal(t, DefaultCellSize, cfg.Sheet.CellSize)
	assert.Equal(t, 5, cfg.Stabilize.SmoothWindow)
	assert.False(t, cfg.Stabilize.Open, "rings wrap by default")
	assert.Equal(t, composite.DefaultStitch(), cfg.Stitch)
	assert.True(t, cfg.Shadow.Enabled)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turntable.yaml")
	cfg := DefaultConfig()
	cfg.Sheet.FrameCount = 24
	cfg.Viewer.RevertDuration = 400 * time.Millisecond
	cfg.Stitch.MaxWarpDeg = 2.5
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 24, got.Sheet.FrameCount)
	assert.Equal(t, 400*time.Millisecond, got.Viewer.RevertDuration)
	assert.Equal(t, 2.5, got.Stitch.MaxWarpDeg)
	assert.Equal(t, cfg.Parallax, got.Parallax)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := []byte("sheet:\n  cell_size: 584\nstabilize:\n  smooth_window: 7\n  open: true\nshadow:\n  color: \"#203040\"\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 584, cfg.Sheet.CellSize)
	assert.Equal(t, DefaultFrameCount, cfg.Sheet.FrameCount)
	assert.Equal(t, 7, cfg.Stabilize.SmoothWindow)
	assert.True(t, cfg.Stabilize.Open)
	assert.Equal(t, 0.8, cfg.Stabilize.TargetFit)

	sh, err := cfg.ShadowParams()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x20), sh.Color.R)
	assert.Equal(t, uint8(0x40), sh.Color.B)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sheet: [1, 2"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestResolveFlagsOverride(t *testing.T) {
	cfg := &Config{}
	cfg.Sheet.Extra = []string{"30=top.png"}
	cfg.Resolve(Flags{SheetDir: "in", OutputDir: "out", FrameCount: 36, Workers: 3, Open: true, Sheets: []string{"-15=low.png"}})

	assert.Equal(t, "in", cfg.Sheet.Dir)
	assert.Equal(t, "out", cfg.Export.OutputDir)
	assert.Equal(t, 36, cfg.Sheet.FrameCount)
	assert.Equal(t, DefaultCellSize, cfg.Sheet.CellSize)
	assert.Equal(t, 3, cfg.Export.Workers)
	assert.True(t, cfg.Stabilize.Open)
	assert.Equal(t, []string{"30=top.png", "-15=low.png"}, cfg.Sheet.Extra)
	assert.Equal(t, 0.15, cfg.Stabilize.ScaleClamp)
}

func TestResolveDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Resolve(Flags{})
	assert.Equal(t, ".", cfg.Sheet.Dir)
	assert.Equal(t, DefaultOutputDir, cfg.Export.OutputDir)
	assert.Positive(t, cfg.Export.Workers)
}

func TestGrid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sheet.Overscan = 4
	assert.Equal(t, sheet.Grid{Cols: 4, Rows: 3, CellSize: 312, Overscan: 4}, cfg.Grid())

	cfg.Sheet.Cols, cfg.Sheet.Rows = 6, 2
	assert.Equal(t, sheet.Grid{Cols: 6, Rows: 2, CellSize: 312, Overscan: 4}, cfg.Grid())
}

func TestViewerOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stitch.FeatherPx = 10
	opts, err := cfg.ViewerOptions()
	require.NoError(t, err)
	assert.Equal(t, 10.0, opts.Stitch.FeatherPx)
	assert.Equal(t, cfg.Shadow.Intensity, opts.Shadow.Intensity)

	cfg.Shadow.Enabled = false
	opts, err = cfg.ViewerOptions()
	require.NoError(t, err)
	assert.Zero(t, opts.Shadow.Intensity)

	cfg.Shadow.Enabled = true
	cfg.Shadow.Color = "not-a-colour"
	_, err = cfg.ViewerOptions()
	assert.Error(t, err)
}
