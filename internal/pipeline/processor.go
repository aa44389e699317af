package pipeline

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/AnyUserName/refblend/internal/hasher"
	"github.com/AnyUserName/refblend/internal/refgrid"
	"github.com/AnyUserName/refblend/internal/source"
	"github.com/AnyUserName/refblend/internal/worker"
)

// Process runs one frame through the loop: resolve inputs, reindex if the
// reference went stale, search across the pool, then track scores.
// Process must not be called concurrently; use Submit from racing
// goroutines.
func (p *Pipeline) Process(ctx context.Context, f source.Frame) (*Output, error) {
	start := time.Now()
	out := &Output{Seq: f.Seq, Name: f.Name}
	if !p.lastEnd.IsZero() {
		out.Timing.CrossGap = start.Sub(p.lastEnd)
	}

	// Inputs.
	p.applyPending()
	if f.Image == nil || f.Image.Bounds().Empty() {
		return nil, fmt.Errorf("frame %d: empty image", f.Seq)
	}
	nb := f.Image.Bounds()
	w, h := ProcessingSize(nb.Dx(), nb.Dy(), p.scale, p.cfg.BlockSize)
	out.Input = source.Fit(f.Image, w, h)
	out.Reference = p.resolveReference(f, w, h)
	mark := time.Now()
	out.Timing.Inputs = mark.Sub(start)

	// Reindex.
	if out.Reference != nil {
		reindexed, err := p.reindex(out.Reference, w, h)
		if err != nil {
			return nil, fmt.Errorf("reindex: %w", err)
		}
		out.Reindexed = reindexed
	}
	now := time.Now()
	out.Timing.Reindex = now.Sub(mark)
	mark = now

	// Search.
	comp, err := p.sched.Run(ctx, worker.Frame{
		Version: p.state.ReferenceVersion,
		Width:   w,
		Height:  h,
		Pixels:  out.Input.Pix[:h*w*4],
		Params: worker.Params{
			BlockSize:  p.cfg.BlockSize,
			Blend:      p.cfg.Blend,
			Threshold:  p.cfg.Threshold,
			Candidates: p.cfg.Candidates,
			MaxVisits:  p.cfg.MaxVisits,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	now = time.Now()
	out.Timing.Search = now.Sub(mark)
	mark = now

	out.Version = comp.Version
	out.Composite = &image.NRGBA{Pix: comp.Pixels, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
	out.Decisions = comp.Decisions
	out.Scores = comp.Scores
	out.Faults = comp.Faults
	for _, fault := range comp.Faults {
		p.logf("fault: worker %d rows %d-%d: %v", fault.Band.Worker, fault.Band.Start, fault.Band.End, fault.Err)
	}
	p.previous = out.Composite

	// Track.
	p.tracker.Update(comp.Scores)
	p.state.EMAMin, p.state.EMAMax = p.tracker.Min, p.tracker.Max
	out.EMAMin, out.EMAMax = p.tracker.Min, p.tracker.Max
	now = time.Now()
	out.Timing.Track = now.Sub(mark)

	// Report.
	p.lastEnd = now
	out.Timing.Total = now.Sub(start)
	out.Timing.finish()
	return out, nil
}

// Normalize maps a score into [0,1] with the tracked range.
func (p *Pipeline) Normalize(v float64) float64 { return p.tracker.Normalize(v) }

func (p *Pipeline) applyPending() {
	if s := p.pendingScale.Swap(nil); s != nil && *s != p.scale {
		p.logf("scale: %g -> %g", p.scale, *s)
		p.scale = *s
		p.state.NeedsReindex = true
	}
	if r := p.pendingRef.Swap(nil); r != nil {
		p.reference = r.img
		p.state.NeedsReindex = true
	}
}

// resolveReference returns the reference for this frame at w×h, or nil
// when the current mode has none yet.
func (p *Pipeline) resolveReference(f source.Frame, w, h int) *image.NRGBA {
	var ref *image.NRGBA
	switch p.cfg.Mode {
	case source.ModeStatic:
		if p.reference != nil {
			ref = source.Fit(p.reference, w, h)
		}
	case source.ModeKeyframe:
		if p.reference == nil {
			p.reference = f.Image
			p.logf("keyframe: frame %d", f.Seq)
		}
		ref = source.Fit(p.reference, w, h)
	case source.ModePrevious:
		if p.previous != nil {
			ref = source.Fit(p.previous, w, h)
		}
	case source.ModeTracer:
		ref = source.Tracer(w, h)
	}
	if ref == nil {
		return nil
	}

	strength := p.cfg.SkewStrength
	if strength == 0 && p.cfg.Mode == source.ModeTracer {
		strength = TracerSkew
	}
	if angle := source.SkewAmount(f.At, p.cfg.OscPeriod, strength); angle != 0 {
		ref = source.Shear(ref, angle)
	}
	return ref
}

// reindex rebuilds and publishes the index when ref differs from the
// installed one. It runs at most once per frame.
func (p *Pipeline) reindex(ref *image.NRGBA, w, h int) (bool, error) {
	bs := p.cfg.BlockSize
	fp := hasher.Fingerprint(w, h, bs, ref.Pix[:h*w*4])
	if p.state.ReferenceVersion != 0 && fp == p.state.ReferenceHash {
		p.state.NeedsReindex = false
		return false, nil
	}

	grid, err := refgrid.Build(ref.Pix[:h*w*4], w, h, bs)
	if err != nil {
		return false, err
	}
	version := p.state.ReferenceVersion + 1
	if err := p.pool.Publish(refgrid.NewIndex(version, grid)); err != nil {
		return false, err
	}

	p.state.ReferenceVersion = version
	p.state.ReferenceHash = fp
	p.state.Width, p.state.Height = w, h
	p.state.NeedsReindex = false
	p.state.Reindexes++
	p.logf("reindex: v%d %dx%d, %d blocks", version, w, h, len(grid.Points))
	return true, nil
}
