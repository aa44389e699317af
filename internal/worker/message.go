package worker

import (
	"errors"

	"github.com/AnyUserName/refblend/internal/match"
	"github.com/AnyUserName/refblend/internal/refgrid"
)

var (
	// ErrFrameInFlight is returned when a frame is submitted while another
	// is still being processed. The new frame is dropped, not queued.
	ErrFrameInFlight = errors.New("worker: frame already in flight")
	// ErrStaleIndex is returned by a worker asked to process a band for a
	// reference version other than the one it has installed.
	ErrStaleIndex = errors.New("worker: task references a stale index version")
	// ErrPoolClosed is returned when dispatching to a closed pool.
	ErrPoolClosed = errors.New("worker: pool closed")
)

// Request is a message from the orchestrator to a worker. The set of
// variants is closed: InitIndex, ProcessBand and Stop.
type Request interface {
	isRequest()
}

// InitIndex installs a fully built reference index. Workers replace their
// previous index with a single pointer swap.
type InitIndex struct {
	Index *refgrid.Index
}

// Params are the per-frame matching parameters.
type Params struct {
	BlockSize  int
	Blend      float64
	Threshold  float64
	Candidates int // k for the nearest-neighbor query
	MaxVisits  int // node budget for the tree walk; 0 = exhaustive
}

// ProcessBand asks a worker to reconstruct one row-band of a frame.
type ProcessBand struct {
	Version    uint64
	RowStart   int
	BandHeight int
	FrameWidth int
	Params     Params
	Pixels     []byte // interleaved RGBA, BandHeight*FrameWidth*4 bytes, read-only
}

// Stop terminates the worker goroutine.
type Stop struct{}

func (InitIndex) isRequest()   {}
func (ProcessBand) isRequest() {}
func (Stop) isRequest()        {}

// Result is a worker's reply to ProcessBand.
type Result struct {
	Worker    int
	Version   uint64
	Output    []byte
	Decisions []match.Decision
	Scores    []float64
	Err       error
}
