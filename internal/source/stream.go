package source

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync/atomic"
	"time"
)

// Frame is one input frame handed to the pipeline.
type Frame struct {
	Seq   int
	Name  string
	Image image.Image
	// At is the frame's presentation time relative to the first frame.
	At time.Duration
}

// Streamer delivers decoded frames on a channel.
type Streamer struct {
	files   []File
	fps     float64
	dropped atomic.Int64
	errs    atomic.Int64
	logf    func(format string, args ...any)
}

// NewStreamer streams files in order. With fps > 0 frames are paced in
// real time and a frame that cannot be handed over immediately is
// dropped; with fps <= 0 every frame is delivered as soon as the
// consumer is ready.
func NewStreamer(files []File, fps float64) *Streamer {
	return &Streamer{
		files: files,
		fps:   fps,
		logf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "[refblend] "+format+"\n", args...)
		},
	}
}

// Dropped returns the number of frames discarded because the consumer
// was busy.
func (s *Streamer) Dropped() int64 { return s.dropped.Load() }

// Errors returns the number of frames that failed to decode.
func (s *Streamer) Errors() int64 { return s.errs.Load() }

// Start begins streaming in a new goroutine. The returned channel is
// closed after the last frame or when ctx is done.
func (s *Streamer) Start(ctx context.Context) <-chan Frame {
	out := make(chan Frame)
	go func() {
		defer close(out)

		var tick *time.Ticker
		if s.fps > 0 {
			tick = time.NewTicker(time.Duration(float64(time.Second) / s.fps))
			defer tick.Stop()
		}
		start := time.Now()

		for i, f := range s.files {
			if tick != nil {
				select {
				case <-tick.C:
				case <-ctx.Done():
					return
				}
			}

			img, err := Load(f.AbsPath)
			if err != nil {
				// A bad frame is skipped, not fatal.
				s.errs.Add(1)
				s.logf("skip %s: %v", f.RelPath, err)
				continue
			}

			frame := Frame{Seq: i, Name: f.Name, Image: img, At: time.Since(start)}
			if tick != nil {
				frame.At = time.Duration(float64(i) / s.fps * float64(time.Second))
				select {
				case out <- frame:
				case <-ctx.Done():
					return
				default:
					s.dropped.Add(1)
				}
				continue
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
