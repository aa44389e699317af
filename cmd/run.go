package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/AnyUserName/refblend/internal/encoder"
	"github.com/AnyUserName/refblend/internal/hasher"
	"github.com/AnyUserName/refblend/internal/match"
	"github.com/AnyUserName/refblend/internal/pipeline"
	"github.com/AnyUserName/refblend/internal/profile"
	"github.com/AnyUserName/refblend/internal/report"
	"github.com/AnyUserName/refblend/internal/source"
	"github.com/AnyUserName/refblend/internal/viz"
	"github.com/spf13/cobra"
)

var (
	runOutDir     string
	runReference  string
	runMode       string
	runProfile    string
	runBlockSize  int
	runBlend      float64
	runThreshold  float64
	runEMAAlpha   float64
	runWorkers    int
	runScale      float64
	runCandidates int
	runMaxVisits  int
	runSkew       float64
	runOscPeriod  time.Duration
	runFPS        float64
	runFormat     string
	runQuality    int
	runViz        bool
	runTopK       int
)

var runCmd = &cobra.Command{
	Use:   "run <frames_dir>",
	Short: "Reconstruct a frame sequence against a reference and write the results",
	Long: `Scans frames_dir for images (png, jpg, jpeg, webp, gif, bmp, tiff), plays
them back in name order and reconstructs each against the reference.

Reference modes:
  static    --reference image, fixed for the whole run
  previous  each output frame becomes the next frame's reference
  keyframe  the first frame is the reference
  tracer    synthetic striped pattern, sheared over time

Outputs <name>.<ext> per frame, optional diagnostics under viz/, and
refblend.report.json.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	def := profile.Get(profile.Default)
	f := runCmd.Flags()
	f.StringVarP(&runOutDir, "out", "o", "./refblend_out", "output directory")
	f.StringVarP(&runReference, "reference", "r", "", "reference image (static mode)")
	f.StringVarP(&runMode, "mode", "m", string(source.ModeStatic), "reference mode: static, previous, keyframe, tracer")
	f.StringVarP(&runProfile, "profile", "p", profile.Default, "parameter preset: realtime, balanced, quality")
	f.IntVar(&runBlockSize, "block-size", def.BlockSize, "block edge in pixels (overrides profile)")
	f.Float64Var(&runBlend, "blend", def.Blend, "weight of the matched reference block, 0-1 (overrides profile)")
	f.Float64Var(&runThreshold, "threshold", def.Threshold, "z-score a match must exceed (overrides profile)")
	f.Float64Var(&runEMAAlpha, "ema-alpha", def.EMAAlpha, "score range smoothing, (0,1] (overrides profile)")
	f.IntVarP(&runWorkers, "workers", "w", 0, "band workers (0 = NumCPU)")
	f.Float64Var(&runScale, "scale", def.Scale, "processing resolution relative to input, (0,1] (overrides profile)")
	f.IntVar(&runCandidates, "candidates", def.Candidates, "nearest neighbors rescored per block (overrides profile)")
	f.IntVar(&runMaxVisits, "max-visits", def.MaxVisits, "k-d tree node budget, 0 = exact (overrides profile)")
	f.Float64Var(&runSkew, "skew", 0, "reference shear strength in radians")
	f.DurationVar(&runOscPeriod, "osc-period", pipeline.DefaultOscPeriod, "reference shear oscillation period")
	f.Float64Var(&runFPS, "fps", 0, "pace playback and drop frames while busy (0 = process every frame)")
	f.StringVarP(&runFormat, "format", "f", "", "output format: png, jpeg, rgbz, webp, avif (default from profile)")
	f.IntVarP(&runQuality, "quality", "q", 0, "encoder quality 1-100 (0 = format default)")
	f.BoolVar(&runViz, "viz", false, "write decision map, score heatmap and top tiles")
	f.IntVar(&runTopK, "top-k", 8, "reference tiles in the top tiles mosaic")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	start := time.Now()

	absInput, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve input path: %w", err)
	}
	absOutput, err := filepath.Abs(runOutDir)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	// Profile first, then explicit flags.
	prof := profile.Get(runProfile)
	cfg := pipeline.FromProfile(prof)
	flags := cmd.Flags()
	if flags.Changed("block-size") {
		cfg.BlockSize = runBlockSize
	}
	if flags.Changed("blend") {
		cfg.Blend = runBlend
	}
	if flags.Changed("threshold") {
		cfg.Threshold = runThreshold
	}
	if flags.Changed("ema-alpha") {
		cfg.EMAAlpha = runEMAAlpha
	}
	if flags.Changed("scale") {
		cfg.Scale = runScale
	}
	if flags.Changed("candidates") {
		cfg.Candidates = runCandidates
	}
	if flags.Changed("max-visits") {
		cfg.MaxVisits = runMaxVisits
	}
	mode, err := source.ParseMode(runMode)
	if err != nil {
		return err
	}
	cfg.Mode = mode
	cfg.Workers = runWorkers
	cfg.SkewStrength = runSkew
	cfg.OscPeriod = runOscPeriod
	cfg.Verbose = verbose
	cfg.Log = os.Stderr

	format := prof.Format
	if runFormat != "" {
		format = runFormat
	}
	registry := encoder.NewRegistry()
	enc, err := registry.Resolve(format)
	if err != nil {
		return err
	}

	var ref image.Image
	switch {
	case runReference != "":
		if ref, err = source.Load(runReference); err != nil {
			return fmt.Errorf("reference: %w", err)
		}
	case mode == source.ModeStatic:
		return fmt.Errorf("static mode needs --reference")
	}

	logVerbose("input:   %s", absInput)
	logVerbose("output:  %s", absOutput)
	logVerbose("profile: %s (block=%d, blend=%g, threshold=%g, scale=%g)",
		prof.Name, cfg.BlockSize, cfg.Blend, cfg.Threshold, cfg.Scale)
	logVerbose("%s", registry)

	files, err := source.ScanFrames(absInput)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no frames found in %s", absInput)
	}
	logVerbose("found %d frames", len(files))

	if err := os.MkdirAll(absOutput, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if runViz {
		if err := os.MkdirAll(filepath.Join(absOutput, "viz"), 0o755); err != nil {
			return fmt.Errorf("create viz dir: %w", err)
		}
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}
	defer p.Close()
	if ref != nil {
		p.SetReference(ref)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rpt := report.New(prof.Name, report.Params{
		BlockSize:   cfg.BlockSize,
		Blend:       cfg.Blend,
		Threshold:   cfg.Threshold,
		EMAAlpha:    cfg.EMAAlpha,
		Workers:     p.Workers(),
		Scale:       cfg.Scale,
		Candidates:  cfg.Candidates,
		MaxVisits:   cfg.MaxVisits,
		Mode:        string(cfg.Mode),
		Skew:        cfg.SkewStrength,
		OscPeriodMS: cfg.OscPeriod.Milliseconds(),
		Format:      enc.Format(),
	})
	sink := &frameSink{
		dir:     absOutput,
		enc:     enc,
		png:     registry.Get("png"),
		quality: runQuality,
		block:   cfg.BlockSize,
		viz:     runViz,
		norm:    p.Normalize,
		report:  rpt,
	}

	streamer := source.NewStreamer(files, runFPS)
	sum, runErr := p.Run(ctx, streamer.Start(ctx), sink)
	rpt.Stats.Dropped = sum.Dropped + int(streamer.Dropped())
	if streamer.Errors() > 0 {
		fmt.Fprintf(os.Stderr, "[refblend] warning: %d of %d frames could not be decoded\n",
			streamer.Errors(), len(files))
	}

	if runViz && runTopK > 0 && sink.lastRef != nil {
		tiles := viz.TopTiles(sink.used, runTopK)
		if m := viz.Mosaic(sink.lastRef, tiles, cfg.BlockSize, 64); m != nil {
			if err := sink.writeViz("top_tiles.png", m); err != nil {
				return err
			}
			logVerbose("top tiles: %d from reference v%d", len(tiles), sink.lastVersion)
		}
	}

	reportPath := filepath.Join(absOutput, report.FileName)
	if err := report.WriteJSON(rpt, reportPath); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	printRunReport(rpt, sum, time.Since(start))

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("pipeline: %w", runErr)
	}
	return nil
}

// frameSink writes each output frame and records it in the report.
type frameSink struct {
	dir     string
	enc     encoder.Encoder
	png     encoder.Encoder
	quality int
	block   int
	viz     bool
	norm    func(float64) float64
	report  *report.Report

	// Interpolated decisions against the latest reference version.
	used        []match.Decision
	lastRef     *image.NRGBA
	lastVersion uint64
}

func (s *frameSink) Write(_ context.Context, out *pipeline.Output) error {
	data, err := s.enc.Encode(out.Composite, s.quality)
	if err != nil {
		return fmt.Errorf("encode %s: %w", out.Name, err)
	}
	rel := out.Name + "." + s.enc.Extension()
	if err := os.WriteFile(filepath.Join(s.dir, rel), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}

	b := out.Composite.Bounds()
	t := out.Timing
	s.report.Frames = append(s.report.Frames, report.FrameStats{
		Seq:          out.Seq,
		Name:         out.Name,
		Width:        b.Dx(),
		Height:       b.Dy(),
		Version:      out.Version,
		Reindexed:    out.Reindexed,
		Blocks:       len(out.Decisions),
		Interpolated: out.Interpolated(),
		Faults:       len(out.Faults),
		Path:         rel,
		Size:         int64(len(data)),
		Hash:         hasher.ContentHash(data, 16),
		Timing: report.Timing{
			Inputs:       report.Millis(t.Inputs),
			Reindex:      report.Millis(t.Reindex),
			Search:       report.Millis(t.Search),
			Track:        report.Millis(t.Track),
			Total:        report.Millis(t.Total),
			Overhead:     report.Millis(t.Overhead),
			CrossGap:     report.Millis(t.CrossGap),
			OverheadWarn: t.OverheadWarn,
			CrossGapWarn: t.CrossGapWarn,
		},
		EMA: report.Range{Min: out.EMAMin, Max: out.EMAMax},
	})
	logVerbose("frame %s: %d/%d interpolated, v%d, %s",
		out.Name, out.Interpolated(), len(out.Decisions), out.Version, t.Total.Round(time.Microsecond))
	if t.OverheadWarn || t.CrossGapWarn {
		logVerbose("frame %s: gap overhead=%s cross=%s", out.Name, t.Overhead, t.CrossGap)
	}

	if !s.viz {
		return nil
	}
	if out.Reference != nil {
		if out.Version != s.lastVersion {
			s.used = s.used[:0]
			s.lastVersion = out.Version
		}
		s.lastRef = out.Reference
		for _, d := range out.Decisions {
			if d.Kind == match.Interpolate {
				s.used = append(s.used, d)
			}
		}
	}
	if err := s.writeViz(out.Name+".decisions.png", viz.DecisionMap(out.Input, out.Decisions, s.block)); err != nil {
		return err
	}
	return s.writeViz(out.Name+".heatmap.png", viz.Heatmap(b.Dx(), b.Dy(), out.Decisions, s.block, s.norm))
}

func (s *frameSink) writeViz(name string, img image.Image) error {
	data, err := s.png.Encode(img, 0)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, "viz", name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func printRunReport(r *report.Report, sum pipeline.Summary, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════╗")
	fmt.Println("║              refblend run complete               ║")
	fmt.Println("╚══════════════════════════════════════════════════╝")
	fmt.Println()

	s := r.Stats
	share := float64(0)
	if s.TotalBlocks > 0 {
		share = float64(s.Interpolated) / float64(s.TotalBlocks) * 100
	}
	fmt.Printf("  Frames:       %d  (%d dropped)\n", s.TotalFrames, s.Dropped)
	fmt.Printf("  Blocks:       %d  (%.1f%% interpolated)\n", s.TotalBlocks, share)
	fmt.Printf("  Reindexes:    %d\n", sum.Reindexes)
	if s.Faults > 0 {
		fmt.Printf("  Band faults:  %d\n", s.Faults)
	}
	fmt.Printf("  Output size:  %s\n", formatBytes(s.TotalOutputBytes))
	fmt.Printf("  Mean frame:   %.2f ms\n", s.MeanFrameMS)
	if s.TimingWarnings > 0 {
		fmt.Printf("  Gap warnings: %d frames\n", s.TimingWarnings)
	}
	fmt.Printf("  Score range:  [%.3f, %.3f]\n", r.EMA.Min, r.EMA.Max)
	fmt.Printf("  Time:         %s\n", elapsed.Round(time.Millisecond))
	fmt.Println()
	fmt.Printf("  Report:       %s (run %s)\n", report.FileName, r.RunID)
	fmt.Println()
}
