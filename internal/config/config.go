package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"turntable/internal/composite"
	"turntable/internal/mathutil"
	"turntable/internal/raster"
	"turntable/internal/sheet"
	"turntable/internal/stabilize"
	"turntable/internal/viewer"
)

const (
	DefaultFrameCount = 12
	DefaultCellSize   = 312
	DefaultOutputDir  = "turntable-out"
)

// Config holds every tunable of the pipeline and the viewer.
type Config struct {
	Sheet     SheetConfig              `yaml:"sheet"`
	Stabilize stabilize.Options        `yaml:"stabilize"`
	Viewer    viewer.Options           `yaml:"viewer"`
	Stitch    composite.StitchParams   `yaml:"stitch"`
	Parallax  composite.ParallaxParams `yaml:"parallax"`
	Shadow    ShadowConfig             `yaml:"shadow"`
	Export    ExportConfig             `yaml:"export"`
}

// SheetConfig locates ring sheets and describes their grid.
// Cols and Rows of 0 pick the most square grid for FrameCount.
type SheetConfig struct {
	Dir        string `yaml:"dir"`
	FrameCount int    `yaml:"frame_count"`
	CellSize   int    `yaml:"cell_size"`
	Cols       int    `yaml:"cols"`
	Rows       int    `yaml:"rows"`
	Overscan   int    `yaml:"overscan"`

	// Extra lists "pitch=path" sheets added on top of the Dir scan.
	Extra []string `yaml:"extra,omitempty"`
}

type ShadowConfig struct {
	Enabled    bool    `yaml:"enabled"`
	LightX     float64 `yaml:"light_x"`
	LightY     float64 `yaml:"light_y"`
	GroundY    float64 `yaml:"ground_y"`
	Skew       float64 `yaml:"skew"`
	BlurRadius float64 `yaml:"blur_radius"`
	Intensity  float64 `yaml:"intensity"`
	Color      string  `yaml:"color"` // #rrggbb
}

type ExportConfig struct {
	OutputDir string `yaml:"output_dir"`
	Workers   int    `yaml:"workers"`
}

// DefaultConfig returns a fully populated configuration.
func DefaultConfig() *Config {
	sh := composite.DefaultShadow()
	vo := viewer.DefaultOptions()
	vo.ViewportWidth, vo.ViewportHeight = 0, 0
	return &Config{
		Sheet: SheetConfig{
			Dir:        ".",
			FrameCount: DefaultFrameCount,
			CellSize:   DefaultCellSize,
		},
		Stabilize: stabilize.Options{}.WithDefaults(),
		Viewer:    vo,
		Stitch:    composite.DefaultStitch(),
		Parallax:  composite.DefaultParallax(),
		Shadow: ShadowConfig{
			Enabled:    true,
			LightX:     sh.Light[0],
			LightY:     sh.Light[1],
			GroundY:    sh.GroundY,
			Skew:       sh.Skew,
			BlurRadius: sh.BlurRadius,
			Intensity:  sh.Intensity,
			Color:      "#000000",
		},
		Export: ExportConfig{
			OutputDir: DefaultOutputDir,
		},
	}
}

// Load reads a YAML config file over DefaultConfig.
// Fields not set in the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	SheetDir   string
	OutputDir  string
	FrameCount int
	CellSize   int
	Workers    int
	Open       bool
	Sheets     []string // pitch=path
}

// Resolve applies CLI overrides, then fills anything still unset.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.SheetDir != "" {
		c.Sheet.Dir = flags.SheetDir
	}
	if flags.OutputDir != "" {
		c.Export.OutputDir = flags.OutputDir
	}
	if flags.FrameCount > 0 {
		c.Sheet.FrameCount = flags.FrameCount
	}
	if flags.CellSize > 0 {
		c.Sheet.CellSize = flags.CellSize
	}
	if flags.Workers > 0 {
		c.Export.Workers = flags.Workers
	}
	c.Sheet.Extra = append(c.Sheet.Extra, flags.Sheets...)
	if flags.Open {
		c.Stabilize.Open = true
	}

	// Defaults
	if c.Sheet.Dir == "" {
		c.Sheet.Dir = "."
	}
	if c.Sheet.FrameCount <= 0 {
		c.Sheet.FrameCount = DefaultFrameCount
	}
	if c.Sheet.CellSize <= 0 {
		c.Sheet.CellSize = DefaultCellSize
	}
	if c.Export.OutputDir == "" {
		c.Export.OutputDir = DefaultOutputDir
	}
	if c.Export.Workers <= 0 {
		c.Export.Workers = runtime.NumCPU()
	}
	c.Stabilize = c.Stabilize.WithDefaults()
}

// Grid returns the sheet grid, deriving columns and rows when unset.
func (c *Config) Grid() sheet.Grid {
	g := sheet.Grid{Cols: c.Sheet.Cols, Rows: c.Sheet.Rows, CellSize: c.Sheet.CellSize, Overscan: c.Sheet.Overscan}
	if g.Cols <= 0 || g.Rows <= 0 {
		g = sheet.GridFor(c.Sheet.FrameCount, c.Sheet.CellSize)
		g.Overscan = c.Sheet.Overscan
	}
	return g
}

// ShadowParams converts the shadow section; a disabled shadow has zero intensity.
func (c *Config) ShadowParams() (composite.ShadowParams, error) {
	if !c.Shadow.Enabled {
		return composite.ShadowParams{}, nil
	}
	col, err := raster.ParseHexColor(c.Shadow.Color)
	if err != nil {
		return composite.ShadowParams{}, fmt.Errorf("config: shadow: %w", err)
	}
	return composite.ShadowParams{
		Light:      mathutil.Vec2{c.Shadow.LightX, c.Shadow.LightY},
		GroundY:    c.Shadow.GroundY,
		Skew:       c.Shadow.Skew,
		BlurRadius: c.Shadow.BlurRadius,
		Intensity:  c.Shadow.Intensity,
		Color:      col,
	}, nil
}

// ViewerOptions merges the viewer, stitch, parallax and shadow sections.
func (c *Config) ViewerOptions() (viewer.Options, error) {
	sh, err := c.ShadowParams()
	if err != nil {
		return viewer.Options{}, err
	}
	opts := c.Viewer
	opts.Stitch = c.Stitch
	opts.ParallaxPass = c.Parallax
	opts.Shadow = sh
	return opts, nil
}
