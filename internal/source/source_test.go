package source

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestScanFrames_Ordered(t *testing.T) {
	dir := t.TempDir()
	img := imaging.New(4, 4, color.NRGBA{R: 10, A: 255})
	writePNG(t, filepath.Join(dir, "frame_002.png"), img)
	writePNG(t, filepath.Join(dir, "frame_001.png"), img)
	writePNG(t, filepath.Join(dir, "sub", "frame_003.png"), img)
	writePNG(t, filepath.Join(dir, ".hidden", "frame_000.png"), img)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	files, err := ScanFrames(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "frame_001.png", files[0].RelPath)
	assert.Equal(t, "frame_002.png", files[1].RelPath)
	assert.Equal(t, "sub/frame_003.png", files[2].RelPath)
	assert.Equal(t, "frame_001", files[0].Name)
	assert.Equal(t, "png", files[0].Format)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	writePNG(t, path, imaging.New(6, 3, color.NRGBA{G: 200, A: 255}))

	img, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 6, 3), img.Bounds())

	_, err = Load(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestFit(t *testing.T) {
	src := imaging.New(40, 20, color.NRGBA{R: 100, G: 50, B: 25, A: 255})
	same := Fit(src, 40, 20)
	assert.Same(t, src, same)

	out := Fit(src, 16, 8)
	assert.Equal(t, image.Rect(0, 0, 16, 8), out.Bounds())
	assert.Equal(t, 16*4, out.Stride)
	assert.Equal(t, color.NRGBA{R: 100, G: 50, B: 25, A: 255}, out.NRGBAAt(3, 3))

	sub := src.SubImage(image.Rect(10, 5, 30, 15))
	fitted := Fit(sub, 20, 10)
	assert.Equal(t, image.Point{}, fitted.Rect.Min)
	assert.Equal(t, 20*4, fitted.Stride)
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes {
		got, err := ParseMode(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	got, err := ParseMode("Tracer")
	require.NoError(t, err)
	assert.Equal(t, ModeTracer, got)
	_, err = ParseMode("webcam")
	assert.Error(t, err)
}

func TestTracer(t *testing.T) {
	img := Tracer(64, 64)
	assert.Equal(t, image.Rect(0, 0, 64, 64), img.Bounds())
	// Top-left of stripe 0 is orange, top-left of stripe 1 is teal.
	assert.Equal(t, tracerOrange, img.NRGBAAt(1, 1))
	assert.Equal(t, tracerTeal, img.NRGBAAt(1, 9))
	// Right edge of stripe 0 ends half-way down the stripe.
	assert.Equal(t, color.NRGBA{A: 255}, img.NRGBAAt(62, 6))
}

func TestSkewAmount(t *testing.T) {
	assert.Zero(t, SkewAmount(time.Second, 0, 1))
	assert.Zero(t, SkewAmount(time.Second, time.Second, 0))
	assert.InDelta(t, 0.5, SkewAmount(time.Second, 4*time.Second, 0.5), 1e-12)
	assert.InDelta(t, 0, SkewAmount(2*time.Second, 4*time.Second, 0.5), 1e-12)
}

func TestShear(t *testing.T) {
	src := Tracer(32, 32)
	assert.Equal(t, src.Pix, Shear(src, 0).Pix)

	sheared := Shear(src, 0.3)
	assert.Equal(t, src.Bounds(), sheared.Bounds())
	assert.NotEqual(t, src.Pix, sheared.Pix)
	// The center row is a fixed line of the shear.
	row := 16 * sheared.Stride
	for i := row + 8*4; i < row+24*4; i++ {
		assert.InDelta(t, src.Pix[i], sheared.Pix[i], 1, "byte %d", i-row)
	}
}

func TestStreamer_DeliversAll(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		writePNG(t, filepath.Join(dir, "f"+string(rune('a'+i))+".png"), imaging.New(4, 4, color.NRGBA{A: 255}))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fz.png"), []byte("not a png"), 0o644))
	files, err := ScanFrames(dir)
	require.NoError(t, err)

	s := NewStreamer(files, 0)
	s.logf = func(string, ...any) {}
	var got []string
	for f := range s.Start(context.Background()) {
		got = append(got, f.Name)
	}
	assert.Equal(t, []string{"fa", "fb", "fc"}, got)
	assert.Equal(t, int64(1), s.Errors())
	assert.Zero(t, s.Dropped())
}

func TestStreamer_PacedDropsWhenBusy(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 6; i++ {
		writePNG(t, filepath.Join(dir, "f"+string(rune('a'+i))+".png"), imaging.New(2, 2, color.NRGBA{A: 255}))
	}
	files, err := ScanFrames(dir)
	require.NoError(t, err)

	s := NewStreamer(files, 200)
	ch := s.Start(context.Background())
	received := 0
	for f := range ch {
		received++
		if f.Seq == 0 {
			time.Sleep(40 * time.Millisecond) // consumer busy
		}
	}
	assert.Equal(t, int64(6), int64(received)+s.Dropped())
	assert.Positive(t, s.Dropped())
}
