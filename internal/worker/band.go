package worker

import (
	"fmt"

	"github.com/AnyUserName/refblend/internal/dct"
	"github.com/AnyUserName/refblend/internal/match"
)

// Band is the half-open row range [Start, End) assigned to one worker.
type Band struct {
	Worker int
	Start  int
	End    int
}

// Height returns the number of rows in the band.
func (b Band) Height() int { return b.End - b.Start }

// Bands partitions [0, height) into contiguous row-bands, one per worker.
// The per-worker height is ceil(height/workers) rounded up to a multiple
// of align so that no block straddles two bands. Workers whose start row
// falls at or past height get no band.
func Bands(height, workers, align int) []Band {
	if height <= 0 || workers <= 0 {
		return nil
	}
	if align < 1 {
		align = 1
	}
	rows := (height + workers - 1) / workers
	rows = (rows + align - 1) / align * align

	bands := make([]Band, 0, workers)
	for i := 0; i < workers; i++ {
		start := i * rows
		if start >= height {
			break
		}
		bands = append(bands, Band{Worker: i, Start: start, End: min(start+rows, height)})
	}
	return bands
}

// processBand reconstructs one band. Every whole block is matched against
// the installed index; rows and columns that do not fill a block are
// copied through.
func processBand(w *worker, task ProcessBand) Result {
	res := Result{Worker: w.id, Version: task.Version}

	p := task.Params
	stride := task.FrameWidth * 4
	if want := task.BandHeight * stride; len(task.Pixels) != want {
		res.Err = fmt.Errorf("worker %d: band has %d bytes, want %d", w.id, len(task.Pixels), want)
		return res
	}

	out := make([]byte, len(task.Pixels))
	copy(out, task.Pixels)
	for i := 3; i < len(out); i += 4 {
		out[i] = 255
	}
	res.Output = out
	res.Decisions = []match.Decision{}
	res.Scores = []float64{}

	idx := w.index
	if idx == nil {
		// Nothing indexed yet: every block passes through untouched.
		return res
	}
	if task.Version != idx.Version || idx.Grid.BlockSize != p.BlockSize {
		return Result{Worker: w.id, Version: task.Version, Err: ErrStaleIndex}
	}

	bs := p.BlockSize
	if w.tr == nil || w.tr.Size() != bs {
		w.tr = dct.NewTransformer(bs)
		w.pixels = dct.NewBlock(bs)
		w.coeffs = dct.NewBlock(bs)
		w.recon = dct.NewBlock(bs)
	}
	k := p.Candidates
	if k <= 0 {
		k = DefaultCandidates
	}

	cands := make([]*dct.Block, 0, k)
	for y := 0; y+bs <= task.BandHeight; y += bs {
		for x := 0; x+bs <= task.FrameWidth; x += bs {
			dct.Extract(w.pixels, task.Pixels, stride, x, y)
			w.tr.ForwardBlock(w.coeffs, w.pixels)

			points := idx.Candidates(w.coeffs.Data, k, p.MaxVisits)
			cands = cands[:0]
			for _, pt := range points {
				cands = append(cands, pt.Coeffs)
			}
			r := match.Rescore(w.coeffs, cands)

			d := match.Decision{GX: x / bs, GY: (task.RowStart + y) / bs}
			var best *dct.Block
			if r.Best >= 0 {
				pos := points[r.Best].Pos
				d.Match = &pos
				d.Score = r.Z
				best = cands[r.Best]
				res.Scores = append(res.Scores, r.Z)
			}
			d.Kind = match.Decide(r.Z, p.Threshold, best != nil)
			res.Decisions = append(res.Decisions, d)

			match.Reconstruct(w.recon, w.coeffs, best, d.Kind, p.Blend)
			w.tr.InverseBlock(w.pixels, w.recon)
			dct.Embed(w.pixels, out, stride, x, y)
		}
	}
	return res
}
