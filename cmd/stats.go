package cmd

import (
	"fmt"
	"sort"

	"github.com/AnyUserName/refblend/internal/report"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <out_dir_or_report>",
	Short: "Display statistics for a refblend run",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, args []string) error {
	r, _, err := report.Read(args[0])
	if err != nil {
		return err
	}
	printStats(r)
	return nil
}

func printStats(r *report.Report) {
	fmt.Println()
	fmt.Printf("  Report version:   %d\n", r.Version)
	fmt.Printf("  Generated:        %s\n", r.GeneratedAt)
	fmt.Printf("  Run:              %s\n", r.RunID)
	fmt.Printf("  Profile:          %s\n", r.Profile)
	p := r.Params
	fmt.Printf("  Mode:             %s\n", p.Mode)
	fmt.Printf("  Block / blend:    %d px / %.2f\n", p.BlockSize, p.Blend)
	fmt.Printf("  Threshold:        z > %.2f\n", p.Threshold)
	fmt.Printf("  Scale:            %.2f\n", p.Scale)
	fmt.Println()

	s := r.Stats
	fmt.Printf("  Frames:           %d  (%d dropped)\n", s.TotalFrames, s.Dropped)
	fmt.Printf("  Reindexes:        %d\n", s.Reindexes)
	fmt.Printf("  Blocks:           %d\n", s.TotalBlocks)
	if s.TotalBlocks > 0 {
		fmt.Printf("  Interpolated:     %d  (%.1f%%)\n", s.Interpolated,
			float64(s.Interpolated)/float64(s.TotalBlocks)*100)
	}
	fmt.Printf("  Band faults:      %d\n", s.Faults)
	fmt.Printf("  Output size:      %s (%s)\n", formatBytes(s.TotalOutputBytes), p.Format)
	fmt.Printf("  Score range:      [%.3f, %.3f]\n", r.EMA.Min, r.EMA.Max)
	fmt.Println()

	if len(r.Frames) == 0 {
		return
	}

	// Stage breakdown.
	var stages [5]float64
	for _, f := range r.Frames {
		stages[0] += f.Timing.Inputs
		stages[1] += f.Timing.Reindex
		stages[2] += f.Timing.Search
		stages[3] += f.Timing.Track
		stages[4] += f.Timing.Overhead
	}
	n := float64(len(r.Frames))
	fmt.Println("  Mean stage time:")
	for i, name := range []string{"inputs", "reindex", "search", "track", "overhead"} {
		fmt.Printf("    %-9s %8.3f ms\n", name, stages[i]/n)
	}
	fmt.Printf("    %-9s %8.3f ms\n", "total", s.MeanFrameMS)
	fmt.Println()

	// Slowest frames.
	frames := append([]report.FrameStats(nil), r.Frames...)
	sort.Slice(frames, func(i, j int) bool {
		return frames[i].Timing.Total > frames[j].Timing.Total
	})
	k := min(5, len(frames))
	fmt.Printf("  Slowest %d frames:\n", k)
	for _, f := range frames[:k] {
		mark := ""
		if f.Reindexed {
			mark = "  (reindex)"
		}
		fmt.Printf("    %-30s %8.3f ms%s\n", f.Name, f.Timing.Total, mark)
	}

	// Warnings.
	var warnings []string
	for _, f := range r.Frames {
		if f.Faults > 0 {
			warnings = append(warnings, fmt.Sprintf("frame %q had %d band faults", f.Name, f.Faults))
		}
		if f.Timing.OverheadWarn {
			warnings = append(warnings, fmt.Sprintf("frame %q: loop overhead %.3f ms above 1%%", f.Name, f.Timing.Overhead))
		}
		if f.Timing.CrossGapWarn {
			warnings = append(warnings, fmt.Sprintf("frame %q: cross-frame gap %.3f ms above 1%%", f.Name, f.Timing.CrossGap))
		}
	}
	if len(warnings) > 0 {
		fmt.Println()
		fmt.Printf("  Warnings (%d):\n", len(warnings))
		for _, w := range warnings {
			fmt.Printf("    ⚠ %s\n", w)
		}
	}
	fmt.Println()
}
