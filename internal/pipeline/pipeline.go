// Package pipeline runs the per-frame reconstruction loop: it resolves
// the reference, keeps the worker pool's index current, schedules each
// frame across the pool and tracks the score range between frames.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync/atomic"
	"time"

	"github.com/AnyUserName/refblend/internal/match"
	"github.com/AnyUserName/refblend/internal/source"
	"github.com/AnyUserName/refblend/internal/worker"
)

// State is the loop's versioned view of the installed reference. Only
// the goroutine running Process mutates it.
type State struct {
	ReferenceVersion uint64
	Width            int
	Height           int
	EMAMin           float64
	EMAMax           float64
	NeedsReindex     bool
	ReferenceHash    uint64
	Reindexes        int
}

// Timing is the wall time spent in each stage of one frame.
type Timing struct {
	Inputs   time.Duration
	Reindex  time.Duration
	Search   time.Duration
	Track    time.Duration
	Total    time.Duration
	Overhead time.Duration // Total minus the stages
	CrossGap time.Duration // end of the previous frame to start of this one

	OverheadWarn bool
	CrossGapWarn bool
}

// warnFraction of Total above which a gap is flagged.
const warnFraction = 0.01

func (t *Timing) finish() {
	t.Overhead = t.Total - (t.Inputs + t.Reindex + t.Search + t.Track)
	limit := time.Duration(float64(t.Total) * warnFraction)
	t.OverheadWarn = t.Overhead > limit
	t.CrossGapWarn = t.CrossGap > limit
}

// Output is everything one processed frame produced.
type Output struct {
	Seq  int
	Name string

	Version   uint64
	Reindexed bool

	Input     *image.NRGBA // frame at processing resolution
	Reference *image.NRGBA // nil when no reference was available
	Composite *image.NRGBA

	Decisions []match.Decision
	Scores    []float64
	Faults    []worker.BandFault

	EMAMin float64
	EMAMax float64
	Timing Timing
}

// Interpolated counts the blocks that took the reference blend.
func (o *Output) Interpolated() int {
	n := 0
	for _, d := range o.Decisions {
		if d.Kind == match.Interpolate {
			n++
		}
	}
	return n
}

// Sink receives each processed frame in order.
type Sink interface {
	Write(ctx context.Context, out *Output) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, out *Output) error

func (f SinkFunc) Write(ctx context.Context, out *Output) error { return f(ctx, out) }

// Summary totals a Run.
type Summary struct {
	Frames    int
	Dropped   int
	Faults    int
	Reindexes int
	Elapsed   time.Duration
}

type pendingRef struct{ img image.Image }

// Pipeline orchestrates frame reconstruction.
type Pipeline struct {
	cfg   Config
	pool  *worker.Pool
	sched *worker.Scheduler

	// Latest-wins handoff from other goroutines.
	pendingRef   atomic.Pointer[pendingRef]
	pendingScale atomic.Pointer[float64]
	busy         atomic.Bool

	// Owned by the goroutine running Process.
	state     State
	tracker   RangeTracker
	scale     float64
	reference image.Image
	previous  *image.NRGBA
	lastEnd   time.Time
}

// New validates cfg and starts the worker pool.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Mode == "" {
		cfg.Mode = source.ModeStatic
	}
	if cfg.OscPeriod == 0 {
		cfg.OscPeriod = DefaultOscPeriod
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Log == nil {
		cfg.Log = os.Stderr
	}
	pool := worker.NewPool(cfg.Workers)
	p := &Pipeline{
		cfg:     cfg,
		pool:    pool,
		sched:   worker.NewScheduler(pool),
		tracker: RangeTracker{Alpha: cfg.EMAAlpha},
		scale:   cfg.Scale,
	}
	p.logf("pool: %d workers, block %d, mode %s", pool.Size(), cfg.BlockSize, cfg.Mode)
	return p, nil
}

// Workers is the size of the worker pool.
func (p *Pipeline) Workers() int { return p.pool.Size() }

// Close stops the worker pool.
func (p *Pipeline) Close() { p.pool.Close() }

// SetReference replaces the reference image from any goroutine. It is
// picked up at the start of the next frame; when called several times
// between frames only the last image is used.
func (p *Pipeline) SetReference(img image.Image) {
	p.pendingRef.Store(&pendingRef{img: img})
}

// SetScale changes the processing resolution from any goroutine, with the
// same latest-wins semantics as SetReference.
func (p *Pipeline) SetScale(scale float64) error {
	if !validScale(scale) {
		return fmt.Errorf("%w: scale %g outside (0,1]", ErrInvalidConfig, scale)
	}
	p.pendingScale.Store(&scale)
	return nil
}

// State returns a copy of the loop state. Call it between frames.
func (p *Pipeline) State() State { return p.state }

// Submit processes f unless another frame is in flight, in which case it
// returns worker.ErrFrameInFlight and f is dropped.
func (p *Pipeline) Submit(ctx context.Context, f source.Frame) (*Output, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return nil, worker.ErrFrameInFlight
	}
	defer p.busy.Store(false)
	return p.Process(ctx, f)
}

// Run processes frames until the channel is closed or ctx is done and
// hands every output to sink. Frames rejected as in flight are counted as
// dropped. A frame that fails to process is logged and skipped; a sink
// error ends the run.
func (p *Pipeline) Run(ctx context.Context, frames <-chan source.Frame, sink Sink) (sum Summary, err error) {
	start := time.Now()
	defer func() {
		sum.Reindexes = p.state.Reindexes
		sum.Elapsed = time.Since(start)
	}()

	for {
		var (
			f  source.Frame
			ok bool
		)
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		case f, ok = <-frames:
		}
		if !ok {
			return sum, nil
		}

		out, err := p.Submit(ctx, f)
		if errors.Is(err, worker.ErrFrameInFlight) {
			sum.Dropped++
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			fmt.Fprintf(p.cfg.Log, "[refblend] error: frame %s: %v\n", f.Name, err)
			continue
		}

		sum.Frames++
		sum.Faults += len(out.Faults)
		if err := sink.Write(ctx, out); err != nil {
			return sum, fmt.Errorf("sink: %w", err)
		}
	}
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.cfg.Verbose {
		fmt.Fprintf(p.cfg.Log, "[refblend] "+format+"\n", args...)
	}
}
