package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"turntable/internal/config"
	"turntable/internal/export"
	"turntable/internal/mathutil"
	"turntable/internal/phase"
	"turntable/internal/stabilize"
	"turntable/internal/tui"
	"turntable/internal/viewer"
)

var (
	configFile string
	logLevel   string

	frameCount int
	cellSize   int
	workers    int
	outputDir  string
	open       bool
	sheets     []string

	pitches []float64

	cfg *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "turntable",
		Short:         "stabilize orbit sheets and view them as a 360° turntable",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(logLevel); err != nil {
				return err
			}
			return loadConfig()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().IntVar(&frameCount, "frames", 0, "frames per ring (default: config or 12)")
	rootCmd.PersistentFlags().IntVar(&cellSize, "cell", 0, "sheet cell size in px (default: config or 312)")
	rootCmd.PersistentFlags().StringArrayVar(&sheets, "sheet", nil, "extra ring sheet as pitch=path (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&open, "open", false, "rings are partial arcs; do not wrap smoothing around the ends")

	stabilizeCmd := &cobra.Command{
		Use:   "stabilize [sheet_dir]",
		Short: "stabilize ring sheets and report QC",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStabilize,
	}

	exportCmd := &cobra.Command{
		Use:   "export [sheet_dir]",
		Short: "stabilize ring sheets and write WebP tiles plus manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExport,
	}
	exportCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	exportCmd.Flags().IntVar(&workers, "workers", 0, "encoder goroutines (default: NumCPU)")

	viewCmd := &cobra.Command{
		Use:   "view [sheet_or_export_dir]",
		Short: "interactive terminal viewer",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runView,
	}

	phaseCmd := &cobra.Command{
		Use:   "phase [yaw] [pitch]",
		Short: "print frame phase and neighbour weights for a view angle",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runPhase,
	}
	phaseCmd.Flags().Float64SliceVar(&pitches, "rings", []float64{0}, "ring pitches in degrees")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "manage config files",
	}
	configInitCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write the default config",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "turntable.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.Save(path, config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(stabilizeCmd, exportCmd, viewCmd, phaseCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}

func loadConfig() error {
	cfg = config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.Resolve(config.Flags{
		OutputDir:  outputDir,
		FrameCount: frameCount,
		CellSize:   cellSize,
		Workers:    workers,
		Open:       open,
		Sheets:     sheets,
	})
	return nil
}

func sheetDir(args []string) {
	if len(args) == 1 {
		cfg.Sheet.Dir = args[0]
	}
}

func runStabilize(cmd *cobra.Command, args []string) error {
	sheetDir(args)
	raw, err := loadSheets(cfg)
	if err != nil {
		return err
	}
	rings, err := stabilizeAll(cmd.Context(), raw, cfg.Stabilize)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PITCH\tFRAMES\tWINDOW\tSTDDEV(px)\tAREA DRIFT(%)\tDEGENERATE\tQC\tTIME")
	for _, r := range rings {
		m := r.Result.Metrics
		qc := "pass"
		if !m.Pass {
			qc = "FAIL"
		}
		fmt.Fprintf(w, "%g\t%d\t%d\t%.3f\t%.2f\t%d\t%s\t%s\n",
			r.Pitch, len(r.Result.Frames), r.Result.Window,
			m.CentroidStddev, m.AreaDrift, m.Degenerate, qc,
			r.Result.Duration.Round(time.Millisecond))
	}
	w.Flush()
	fmt.Println()

	for _, r := range rings {
		if dev := centroidDeviation(r.Result.Metrics); len(dev) > 1 {
			fmt.Println(asciigraph.Plot(dev,
				asciigraph.Height(8),
				asciigraph.Width(60),
				asciigraph.Caption(fmt.Sprintf("centroid deviation px, ring %g", r.Pitch)),
			))
			fmt.Println()
		}
	}
	return nil
}

// centroidDeviation returns each output centroid's distance from their mean.
func centroidDeviation(m stabilize.Metrics) []float64 {
	if len(m.Centroids) == 0 {
		return nil
	}
	var sx, sy float64
	for _, c := range m.Centroids {
		sx += c[0]
		sy += c[1]
	}
	n := float64(len(m.Centroids))
	mean := mathutil.Vec2{sx / n, sy / n}
	out := make([]float64, len(m.Centroids))
	for i, c := range m.Centroids {
		out[i] = c.Sub(mean).Len()
	}
	return out
}

func runExport(cmd *cobra.Command, args []string) error {
	sheetDir(args)
	start := time.Now()
	raw, err := loadSheets(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Turntable export → WebP\n")
	fmt.Printf("Rings: %d, Frames: %d, Workers: %d\n", len(raw), cfg.Sheet.FrameCount, cfg.Export.Workers)
	fmt.Printf("Output: %s\n", cfg.Export.OutputDir)
	fmt.Println("------------------------------------------------------------")

	rings, err := stabilizeAll(cmd.Context(), raw, cfg.Stabilize)
	if err != nil {
		return err
	}
	m, results, err := export.Run(export.Job{
		OutputDir:   cfg.Export.OutputDir,
		Grid:        cfg.Grid(),
		Rings:       rings,
		Stitch:      cfg.Stitch,
		Parallax:    cfg.Parallax,
		ZoomMax:     cfg.Viewer.ZoomMax,
		ParallaxMax: cfg.Viewer.ParallaxMax,
		ParallaxPx:  cfg.Viewer.ParallaxPx,
		Workers:     cfg.Export.Workers,
	})
	if err != nil {
		return err
	}

	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", time.Since(start).Seconds())

	var failed []export.Result
	for _, r := range results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	fmt.Printf("Written: %d/%d\n", len(results)-len(failed), len(results))
	for _, r := range m.Rings {
		if !r.QC.Pass {
			fmt.Printf("QC failed for ring %g: stddev %.3fpx, area drift %.2f%%\n", r.Pitch, r.QC.CentroidStddev, r.QC.AreaDrift)
		}
	}
	if len(failed) > 0 {
		fmt.Printf("\nFailed (%d):\n", len(failed))
		for _, r := range failed {
			fmt.Printf("  ring %d frame %d: %s\n", r.Ring, r.Index, r.Error)
		}
	}
	fmt.Printf("Manifest: %s (%s)\n", export.ManifestName, m.ID)
	if len(failed) > 0 {
		return fmt.Errorf("%d tiles failed", len(failed))
	}
	return nil
}

func runView(cmd *cobra.Command, args []string) error {
	dir := cfg.Sheet.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	src, err := frameSource(cmd.Context(), cfg, dir)
	if err != nil {
		return err
	}
	opts, err := cfg.ViewerOptions()
	if err != nil {
		return err
	}
	ctrl, err := viewer.New(src, opts)
	if err != nil {
		return err
	}
	ctrl.Subscribe(viewer.EventReady, func(e viewer.Event) {
		r := e.(viewer.ReadyEvent)
		slog.Debug("view: ready", "rings", r.Rings, "frames", r.Frames)
	})
	return tui.Run(ctrl, dir)
}

func runPhase(cmd *cobra.Command, args []string) error {
	var yaw, pitch float64
	if _, err := fmt.Sscanf(args[0], "%g", &yaw); err != nil {
		return fmt.Errorf("invalid yaw %q", args[0])
	}
	if len(args) == 2 {
		if _, err := fmt.Sscanf(args[1], "%g", &pitch); err != nil {
			return fmt.Errorf("invalid pitch %q", args[1])
		}
	}

	rings := make([]phase.RingConfig, len(pitches))
	for i, p := range pitches {
		rings[i] = phase.RingConfig{Pitch: p, FrameCount: cfg.Sheet.FrameCount}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RING\tPITCH\tI\tJ\tT\tSTEP")
	for i, r := range rings {
		p := phase.Params(yaw, r.FrameCount)
		fmt.Fprintf(w, "%d\t%g\t%d\t%d\t%.4f\t%g\n", i, r.Pitch, p.I, p.J, p.T, p.StepDeg)
	}
	w.Flush()

	fmt.Println()
	var parts []string
	for _, n := range phase.SphericalNeighbors(yaw, pitch, rings) {
		parts = append(parts, fmt.Sprintf("r%d/f%d=%.4f", n.Ring, n.Frame, n.Weight))
	}
	fmt.Printf("neighbours: %s\n", strings.Join(parts, "  "))
	return nil
}
