package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/AnyUserName/refblend/internal/hasher"
	"github.com/google/uuid"
)

// Validate checks the report's internal consistency and that every frame
// it lists exists under baseDir with the recorded size and hash.
func Validate(r *Report, baseDir string) []string {
	var errs []string

	if r.Version != SupportedReportVersion {
		errs = append(errs, fmt.Sprintf("unsupported report version: %d", r.Version))
	}
	if _, err := uuid.Parse(r.RunID); err != nil {
		errs = append(errs, fmt.Sprintf("invalid run id %q: %v", r.RunID, err))
	}
	bs := r.Params.BlockSize
	if bs < 2 {
		errs = append(errs, fmt.Sprintf("params.block_size %d < 2", bs))
		bs = 0
	}
	if r.EMA.Min > r.EMA.Max {
		errs = append(errs, fmt.Sprintf("ema bounds inverted: %g > %g", r.EMA.Min, r.EMA.Max))
	}

	seenPaths := map[string]bool{}
	lastSeq := -1
	var blocks, interpolated int
	for i, f := range r.Frames {
		blocks += f.Blocks
		interpolated += f.Interpolated

		if f.Seq <= lastSeq {
			errs = append(errs, fmt.Sprintf("frame[%d]: seq %d not after %d", i, f.Seq, lastSeq))
		}
		lastSeq = f.Seq
		if f.Width <= 0 || f.Height <= 0 {
			errs = append(errs, fmt.Sprintf("frame[%d]: invalid dimensions %dx%d", i, f.Width, f.Height))
		} else if bs > 0 {
			if f.Width%bs != 0 || f.Height%bs != 0 {
				errs = append(errs, fmt.Sprintf("frame[%d]: %dx%d not a multiple of block size %d", i, f.Width, f.Height, bs))
			}
			if grid := (f.Width / bs) * (f.Height / bs); f.Blocks > grid {
				errs = append(errs, fmt.Sprintf("frame[%d]: %d blocks exceed grid of %d", i, f.Blocks, grid))
			}
		}
		if f.Interpolated > f.Blocks {
			errs = append(errs, fmt.Sprintf("frame[%d]: %d interpolated of %d blocks", i, f.Interpolated, f.Blocks))
		}
		if f.Path == "" {
			errs = append(errs, fmt.Sprintf("frame[%d]: missing path", i))
			continue
		}
		if seenPaths[f.Path] {
			errs = append(errs, fmt.Sprintf("frame[%d]: duplicate path %q", i, f.Path))
		}
		seenPaths[f.Path] = true
		errs = append(errs, checkFile(i, f, filepath.Join(baseDir, f.Path))...)
	}

	if r.Stats.TotalFrames != len(r.Frames) {
		errs = append(errs, fmt.Sprintf("stats.total_frames mismatch: %d != %d", r.Stats.TotalFrames, len(r.Frames)))
	}
	if r.Stats.TotalBlocks != blocks {
		errs = append(errs, fmt.Sprintf("stats.total_blocks mismatch: %d != %d", r.Stats.TotalBlocks, blocks))
	}
	if r.Stats.Interpolated != interpolated {
		errs = append(errs, fmt.Sprintf("stats.interpolated mismatch: %d != %d", r.Stats.Interpolated, interpolated))
	}
	return errs
}

func checkFile(i int, f FrameStats, path string) []string {
	file, err := os.Open(path)
	if err != nil {
		return []string{fmt.Sprintf("frame[%d]: file not found: %s", i, f.Path)}
	}
	defer file.Close()

	var errs []string
	if info, err := file.Stat(); err == nil && f.Size > 0 && info.Size() != f.Size {
		errs = append(errs, fmt.Sprintf("frame[%d]: size mismatch: report=%d, disk=%d", i, f.Size, info.Size()))
	}
	if f.Hash != "" {
		sum, err := hasher.ContentHashReader(file, len(f.Hash))
		if err != nil {
			errs = append(errs, fmt.Sprintf("frame[%d]: hash %s: %v", i, f.Path, err))
		} else if sum != f.Hash {
			errs = append(errs, fmt.Sprintf("frame[%d]: hash mismatch: report=%s, disk=%s", i, f.Hash, sum))
		}
	}
	return errs
}
