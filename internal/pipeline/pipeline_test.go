package pipeline

import (
	"context"
	"errors"
	"image"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/AnyUserName/refblend/internal/match"
	"github.com/AnyUserName/refblend/internal/source"
	"github.com/AnyUserName/refblend/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noiseImage(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func solidImage(w, h int, v uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func testConfig() Config {
	return Config{
		BlockSize:  8,
		Blend:      0.5,
		Threshold:  -0.5,
		EMAAlpha:   0.5,
		Workers:    2,
		Scale:      1,
		Candidates: 5,
		Mode:       source.ModeStatic,
		Log:        io.Discard,
	}
}

func newPipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func process(t *testing.T, p *Pipeline, seq int, img image.Image) *Output {
	t.Helper()
	out, err := p.Process(context.Background(), source.Frame{Seq: seq, Name: "f", Image: img})
	require.NoError(t, err)
	return out
}

func assertNear(t *testing.T, want, got []byte, tol int) {
	t.Helper()
	require.Equal(t, len(want), len(got))
	for i := range want {
		d := int(want[i]) - int(got[i])
		if d < -tol || d > tol {
			t.Fatalf("byte %d: got %d, want %d±%d", i, got[i], want[i], tol)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"block size 1", func(c *Config) { c.BlockSize = 1 }, false},
		{"blend above 1", func(c *Config) { c.Blend = 1.5 }, false},
		{"negative blend", func(c *Config) { c.Blend = -0.1 }, false},
		{"alpha zero", func(c *Config) { c.EMAAlpha = 0 }, false},
		{"alpha one", func(c *Config) { c.EMAAlpha = 1 }, true},
		{"scale zero", func(c *Config) { c.Scale = 0 }, false},
		{"scale above 1", func(c *Config) { c.Scale = 1.01 }, false},
		{"unknown mode", func(c *Config) { c.Mode = "webcam" }, false},
		{"negative candidates", func(c *Config) { c.Candidates = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BlockSize = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestProcessingSize(t *testing.T) {
	tests := []struct {
		w, h   int
		scale  float64
		bs     int
		wantW  int
		wantH  int
	}{
		{64, 64, 1, 8, 64, 64},
		{100, 60, 0.5, 8, 48, 24},
		{10, 10, 0.1, 8, 8, 8},
		{1920, 1080, 0.25, 16, 480, 256},
	}
	for _, tt := range tests {
		w, h := ProcessingSize(tt.w, tt.h, tt.scale, tt.bs)
		assert.Equal(t, tt.wantW, w, "%+v", tt)
		assert.Equal(t, tt.wantH, h, "%+v", tt)
	}
}

func TestRangeTracker(t *testing.T) {
	r := RangeTracker{Alpha: 0.5}
	r.Update(nil)
	assert.Zero(t, r.Min)
	assert.Zero(t, r.Max)
	assert.Zero(t, r.Normalize(3))

	r.Update([]float64{3, 1, 2})
	assert.InDelta(t, 0.5, r.Min, 1e-12)
	assert.InDelta(t, 1.5, r.Max, 1e-12)

	r.Update([]float64{-1, 5})
	assert.InDelta(t, -0.25, r.Min, 1e-12)
	assert.InDelta(t, 3.25, r.Max, 1e-12)

	assert.InDelta(t, 0.5, r.Normalize(1.5), 1e-12)
	assert.Equal(t, 0.0, r.Normalize(-10))
	assert.Equal(t, 1.0, r.Normalize(10))
}

func TestTiming_Finish(t *testing.T) {
	tm := Timing{
		Inputs:   10 * time.Millisecond,
		Reindex:  20 * time.Millisecond,
		Search:   60 * time.Millisecond,
		Track:    5 * time.Millisecond,
		Total:    100 * time.Millisecond,
		CrossGap: 500 * time.Microsecond,
	}
	tm.finish()
	assert.Equal(t, 5*time.Millisecond, tm.Overhead)
	assert.True(t, tm.OverheadWarn)
	assert.False(t, tm.CrossGapWarn)
}

func TestProcess_NoReferencePassesThrough(t *testing.T) {
	p := newPipeline(t, testConfig())
	in := noiseImage(32, 24, 1)

	out := process(t, p, 0, in)
	assert.Nil(t, out.Reference)
	assert.False(t, out.Reindexed)
	assert.Zero(t, out.Version)
	assert.Empty(t, out.Decisions)
	assert.Equal(t, in.Pix, out.Composite.Pix)
}

func TestProcess_IdenticalReference(t *testing.T) {
	p := newPipeline(t, testConfig())
	in := noiseImage(64, 48, 2)
	p.SetReference(in)

	out := process(t, p, 0, in)
	assert.True(t, out.Reindexed)
	assert.Equal(t, uint64(1), out.Version)
	assert.Empty(t, out.Faults)
	require.Len(t, out.Decisions, 8*6)
	assert.Equal(t, 8*6, out.Interpolated())
	for _, d := range out.Decisions {
		require.NotNil(t, d.Match)
		assert.Equal(t, match.Interpolate, d.Kind)
	}
	assertNear(t, in.Pix, out.Composite.Pix, 2)

	again := process(t, p, 1, in)
	assert.False(t, again.Reindexed, "unchanged reference must not reindex")
	assert.Equal(t, 1, p.State().Reindexes)
	assert.GreaterOrEqual(t, again.Timing.Total, again.Timing.Search)
	assert.GreaterOrEqual(t, again.Timing.CrossGap, time.Duration(0))
}

func TestProcess_ResizeReindexesOnce(t *testing.T) {
	p := newPipeline(t, testConfig())
	ref := noiseImage(64, 64, 3)
	p.SetReference(ref)
	process(t, p, 0, noiseImage(64, 64, 4))
	require.Equal(t, 1, p.State().Reindexes)

	require.NoError(t, p.SetScale(0.75))
	require.NoError(t, p.SetScale(0.5))

	out := process(t, p, 1, noiseImage(64, 64, 5))
	assert.True(t, out.Reindexed)
	assert.Equal(t, image.Rect(0, 0, 32, 32), out.Composite.Bounds())
	assert.Empty(t, out.Faults, "no band may see a stale index")
	assert.Len(t, out.Decisions, 16)

	st := p.State()
	assert.Equal(t, 2, st.Reindexes)
	assert.Equal(t, uint64(2), st.ReferenceVersion)
	assert.Equal(t, 32, st.Width)
	assert.False(t, st.NeedsReindex)

	process(t, p, 2, noiseImage(64, 64, 6))
	assert.Equal(t, 2, p.State().Reindexes)
}

func TestSetScale_Rejects(t *testing.T) {
	p := newPipeline(t, testConfig())
	assert.ErrorIs(t, p.SetScale(0), ErrInvalidConfig)
	assert.ErrorIs(t, p.SetScale(2), ErrInvalidConfig)
}

func TestSetReference_LatestWins(t *testing.T) {
	cfg := testConfig()
	cfg.Blend = 1
	p := newPipeline(t, cfg)
	p.SetReference(solidImage(32, 32, 0))
	p.SetReference(solidImage(32, 32, 255))

	out := process(t, p, 0, solidImage(32, 32, 255))
	assert.Equal(t, 1, p.State().Reindexes)
	assertNear(t, solidImage(32, 32, 255).Pix, out.Composite.Pix, 1)
}

func TestProcess_KeyframeMode(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = source.ModeKeyframe
	p := newPipeline(t, cfg)

	first := noiseImage(32, 32, 7)
	out := process(t, p, 0, first)
	assert.True(t, out.Reindexed)
	assert.Equal(t, first.Pix, out.Reference.Pix)

	out = process(t, p, 1, noiseImage(32, 32, 8))
	assert.False(t, out.Reindexed)
	assert.Equal(t, first.Pix, out.Reference.Pix)
}

func TestProcess_PreviousMode(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = source.ModePrevious
	p := newPipeline(t, cfg)

	out := process(t, p, 0, noiseImage(32, 32, 9))
	assert.Nil(t, out.Reference)
	prev := out.Composite

	out = process(t, p, 1, noiseImage(32, 32, 10))
	assert.True(t, out.Reindexed)
	assert.Equal(t, uint64(1), out.Version)
	assert.Equal(t, prev.Pix, out.Reference.Pix)

	out = process(t, p, 2, noiseImage(32, 32, 11))
	assert.True(t, out.Reindexed)
	assert.Equal(t, uint64(2), out.Version)
}

func TestProcess_TracerMode(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = source.ModeTracer
	p := newPipeline(t, cfg)

	out, err := p.Process(context.Background(), source.Frame{Image: noiseImage(64, 64, 12)})
	require.NoError(t, err)
	require.NotNil(t, out.Reference)
	assert.Equal(t, source.Tracer(64, 64).Pix, out.Reference.Pix, "no skew at t=0")

	out, err = p.Process(context.Background(), source.Frame{Seq: 1, Image: noiseImage(64, 64, 12), At: time.Second})
	require.NoError(t, err)
	assert.True(t, out.Reindexed, "skewed reference is a new reference")
	assert.Equal(t, 2, p.State().Reindexes)
}

func TestProcess_EmptyFrame(t *testing.T) {
	p := newPipeline(t, testConfig())
	_, err := p.Process(context.Background(), source.Frame{})
	assert.Error(t, err)
}

func TestSubmit_InFlight(t *testing.T) {
	p := newPipeline(t, testConfig())
	p.busy.Store(true)
	_, err := p.Submit(context.Background(), source.Frame{Image: noiseImage(8, 8, 1)})
	assert.ErrorIs(t, err, worker.ErrFrameInFlight)

	p.busy.Store(false)
	_, err = p.Submit(context.Background(), source.Frame{Image: noiseImage(8, 8, 1)})
	assert.NoError(t, err)
}

func TestRun(t *testing.T) {
	p := newPipeline(t, testConfig())
	p.SetReference(noiseImage(32, 32, 13))

	frames := make(chan source.Frame, 4)
	for i := 0; i < 3; i++ {
		frames <- source.Frame{Seq: i, Image: noiseImage(32, 32, int64(20+i))}
	}
	frames <- source.Frame{Seq: 3} // fails and is skipped
	close(frames)

	var seqs []int
	sum, err := p.Run(context.Background(), frames, SinkFunc(func(_ context.Context, out *Output) error {
		seqs = append(seqs, out.Seq)
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, seqs)
	assert.Equal(t, 3, sum.Frames)
	assert.Equal(t, 1, sum.Reindexes)
	assert.Zero(t, sum.Dropped)
}

func TestRun_SinkErrorStops(t *testing.T) {
	p := newPipeline(t, testConfig())
	frames := make(chan source.Frame, 2)
	frames <- source.Frame{Seq: 0, Image: noiseImage(16, 16, 1)}
	frames <- source.Frame{Seq: 1, Image: noiseImage(16, 16, 2)}
	close(frames)

	boom := errors.New("disk full")
	sum, err := p.Run(context.Background(), frames, SinkFunc(func(context.Context, *Output) error {
		return boom
	}))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, sum.Frames)
}

func TestRun_ContextCancelled(t *testing.T) {
	p := newPipeline(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, make(chan source.Frame), SinkFunc(func(context.Context, *Output) error { return nil }))
	assert.ErrorIs(t, err, context.Canceled)
}
