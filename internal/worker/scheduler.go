package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/AnyUserName/refblend/internal/match"
)

// State is the scheduler's per-frame phase.
type State int32

const (
	Idle State = iota
	Dispatching
	AwaitingAll
	Compositing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dispatching:
		return "dispatching"
	case AwaitingAll:
		return "awaiting"
	case Compositing:
		return "compositing"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Frame is one frame submitted for reconstruction.
type Frame struct {
	Version uint64 // reference version the workers must have installed
	Width   int
	Height  int
	Pixels  []byte // interleaved RGBA, read-only while the frame is in flight
	Params  Params
}

// BandFault records a band whose worker failed.
type BandFault struct {
	Band Band
	Err  error
}

// Composite is the merged output of every band of one frame.
type Composite struct {
	Version   uint64
	Width     int
	Height    int
	Pixels    []byte
	Decisions []match.Decision
	Scores    []float64
	Bands     int
	Faults    []BandFault
}

// Scheduler fans one frame out across a pool and joins the results.
// Only one frame is resident at a time.
type Scheduler struct {
	pool  *Pool
	state atomic.Int32

	// prev is read and written only by the goroutine that moved state
	// out of Idle.
	prev *Composite
}

// NewScheduler returns a scheduler dispatching to pool.
func NewScheduler(pool *Pool) *Scheduler {
	return &Scheduler{pool: pool}
}

// State reports the current phase.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Run reconstructs f and returns the composite. If another frame is in
// flight Run returns ErrFrameInFlight immediately without touching f.
//
// Run waits for every band before compositing. A band whose worker
// failed is filled from the previous composite when the frame size is
// unchanged, otherwise with opaque black, and recorded in Faults.
func (s *Scheduler) Run(ctx context.Context, f Frame) (*Composite, error) {
	if !s.state.CompareAndSwap(int32(Idle), int32(Dispatching)) {
		return nil, ErrFrameInFlight
	}
	defer s.state.Store(int32(Idle))

	stride := f.Width * 4
	if f.Width <= 0 || f.Height <= 0 || len(f.Pixels) != f.Height*stride {
		return nil, fmt.Errorf("worker: frame %dx%d with %d bytes", f.Width, f.Height, len(f.Pixels))
	}

	bands := Bands(f.Height, s.pool.Size(), f.Params.BlockSize)
	handles := make([]*Handle, len(bands))
	for i, b := range bands {
		h, err := s.pool.Dispatch(b.Worker, ProcessBand{
			Version:    f.Version,
			RowStart:   b.Start,
			BandHeight: b.Height(),
			FrameWidth: f.Width,
			Params:     f.Params,
			Pixels:     f.Pixels[b.Start*stride : b.End*stride],
		})
		if err != nil {
			return nil, fmt.Errorf("dispatch band %d: %w", i, err)
		}
		handles[i] = h
	}

	s.state.Store(int32(AwaitingAll))
	results := make([]Result, len(handles))
	for i, h := range handles {
		r, err := h.Wait(ctx)
		if err != nil {
			return nil, fmt.Errorf("await band %d: %w", i, err)
		}
		results[i] = r
	}

	s.state.Store(int32(Compositing))
	comp := &Composite{
		Version: f.Version,
		Width:   f.Width,
		Height:  f.Height,
		Pixels:  make([]byte, len(f.Pixels)),
		Bands:   len(bands),
	}
	for i, b := range bands {
		r := results[i]
		dst := comp.Pixels[b.Start*stride : b.End*stride]
		if r.Err == nil && len(r.Output) != len(dst) {
			r.Err = fmt.Errorf("worker %d: output has %d bytes, want %d", r.Worker, len(r.Output), len(dst))
		}
		if r.Err != nil {
			comp.Faults = append(comp.Faults, BandFault{Band: b, Err: r.Err})
			s.fillFailed(dst, b, f)
			continue
		}
		copy(dst, r.Output)
		comp.Decisions = append(comp.Decisions, r.Decisions...)
		comp.Scores = append(comp.Scores, r.Scores...)
	}
	s.prev = comp
	return comp, nil
}

func (s *Scheduler) fillFailed(dst []byte, b Band, f Frame) {
	if p := s.prev; p != nil && p.Width == f.Width && p.Height == f.Height {
		stride := f.Width * 4
		copy(dst, p.Pixels[b.Start*stride:b.End*stride])
		return
	}
	for i := range dst {
		dst[i] = 0
	}
	for i := 3; i < len(dst); i += 4 {
		dst[i] = 255
	}
}
