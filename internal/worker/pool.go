// Package worker runs per-band block reconstruction on a fixed pool of
// goroutines and schedules one frame at a time across them.
//
// The orchestrator talks to each worker over its own FIFO channel and
// workers never talk to each other. An index published with Publish is
// therefore always installed before any later ProcessBand on the same
// worker is handled.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/AnyUserName/refblend/internal/dct"
	"github.com/AnyUserName/refblend/internal/refgrid"
)

// DefaultCandidates is the number of nearest neighbors rescored per block
// when Params.Candidates is unset.
const DefaultCandidates = 5

type envelope struct {
	req   Request
	reply chan Result
}

type worker struct {
	id      int
	reqs    chan envelope
	process func(*worker, ProcessBand) Result

	// Owned by the worker goroutine.
	index  *refgrid.Index
	tr     *dct.Transformer
	pixels *dct.Block
	coeffs *dct.Block
	recon  *dct.Block
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for env := range w.reqs {
		switch req := env.req.(type) {
		case InitIndex:
			w.index = req.Index
		case ProcessBand:
			env.reply <- w.handle(req)
		case Stop:
			return
		default:
			panic(fmt.Sprintf("worker: unknown request %T", req))
		}
	}
}

// handle runs one task, converting a panic into a band error.
func (w *worker) handle(task ProcessBand) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Worker: w.id, Version: task.Version, Err: fmt.Errorf("worker %d: panic: %v", w.id, r)}
		}
	}()
	return w.process(w, task)
}

// Pool is a fixed set of worker goroutines created once.
type Pool struct {
	mu      sync.Mutex
	closed  bool
	workers []*worker
	wg      sync.WaitGroup
}

// NewPool starts n workers (n <= 0 means runtime.NumCPU()).
func NewPool(n int) *Pool {
	return newPool(n, processBand)
}

func newPool(n int, process func(*worker, ProcessBand) Result) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p := &Pool{workers: make([]*worker, n)}
	for i := range p.workers {
		w := &worker{id: i, reqs: make(chan envelope, 2), process: process}
		p.workers[i] = w
		p.wg.Add(1)
		go w.run(&p.wg)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Publish broadcasts idx to every worker.
func (p *Pool) Publish(idx *refgrid.Index) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	for _, w := range p.workers {
		w.reqs <- envelope{req: InitIndex{Index: idx}}
	}
	return nil
}

// Dispatch sends task to worker i and returns a handle for its result.
func (p *Pool) Dispatch(i int, task ProcessBand) (*Handle, error) {
	if i < 0 || i >= len(p.workers) {
		return nil, fmt.Errorf("worker: no worker %d in pool of %d", i, len(p.workers))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	h := &Handle{Worker: i, ch: make(chan Result, 1)}
	p.workers[i].reqs <- envelope{req: task, reply: h.ch}
	return h, nil
}

// Close stops every worker after it drains the requests already queued
// and waits for them to exit. Close is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, w := range p.workers {
		w.reqs <- envelope{req: Stop{}}
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Handle is the future for one dispatched band. Its channel is buffered,
// so a worker never blocks on a result nobody waits for.
type Handle struct {
	Worker int
	ch     chan Result
}

// Wait blocks until the worker replies or ctx is done.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case r := <-h.ch:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
