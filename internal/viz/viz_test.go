package viz

import (
	"image"
	"image/color"
	"testing"

	"github.com/AnyUserName/refblend/internal/match"
	"github.com/AnyUserName/refblend/internal/refgrid"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertColorNear(t *testing.T, want, got color.NRGBA, tol int) {
	t.Helper()
	near := func(a, b uint8) bool {
		d := int(a) - int(b)
		return d >= -tol && d <= tol
	}
	if !near(want.R, got.R) || !near(want.G, got.G) || !near(want.B, got.B) || want.A != got.A {
		t.Fatalf("got %v, want %v±%d", got, want, tol)
	}
}

func pos(x, y int) *refgrid.Pos { return &refgrid.Pos{X: x, Y: y} }

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func TestDecisionMap(t *testing.T) {
	frame := imaging.New(24, 8, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	decisions := []match.Decision{
		{GX: 0, GY: 0, Kind: match.Interpolate, Match: pos(0, 0)},
		{GX: 1, GY: 0, Kind: match.Passthrough},
	}
	m := DecisionMap(frame, decisions, 8)
	require.Equal(t, image.Rect(0, 0, 24, 8), m.Bounds())

	assertColorNear(t, color.NRGBA{R: 100, G: 50, B: 25, A: 255}, m.NRGBAAt(3, 3), 1)
	assert.Equal(t, color.NRGBA{R: 55, G: 155, B: 205, A: 255}, m.NRGBAAt(12, 5))
	assert.Equal(t, color.NRGBA{A: 255}, m.NRGBAAt(20, 4), "blocks without a decision stay black")
}

func TestHeatmap(t *testing.T) {
	decisions := []match.Decision{
		{GX: 0, GY: 0, Kind: match.Interpolate, Match: pos(1, 1), Score: 0},
		{GX: 1, GY: 0, Kind: match.Passthrough, Match: pos(0, 0), Score: 1},
		{GX: 0, GY: 1, Kind: match.Passthrough},
	}
	m := Heatmap(8, 8, decisions, 4, clamp01)

	r, g, b := heatCold.RGB255()
	assertColorNear(t, color.NRGBA{R: r, G: g, B: b, A: 255}, m.NRGBAAt(1, 1), 1)
	r, g, b = heatHot.RGB255()
	assertColorNear(t, color.NRGBA{R: r, G: g, B: b, A: 255}, m.NRGBAAt(6, 2), 1)
	assert.Equal(t, color.NRGBA{A: 255}, m.NRGBAAt(1, 6), "unmatched block stays black")
}

func TestTopTiles(t *testing.T) {
	decisions := []match.Decision{
		{Kind: match.Interpolate, Match: pos(2, 0)},
		{Kind: match.Interpolate, Match: pos(1, 1)},
		{Kind: match.Interpolate, Match: pos(2, 0)},
		{Kind: match.Interpolate, Match: pos(0, 1)},
		{Kind: match.Passthrough, Match: pos(3, 3)},
		{Kind: match.Passthrough},
	}
	got := TopTiles(decisions, 10)
	assert.Equal(t, []TileCount{
		{Pos: refgrid.Pos{X: 2, Y: 0}, Count: 2},
		{Pos: refgrid.Pos{X: 0, Y: 1}, Count: 1},
		{Pos: refgrid.Pos{X: 1, Y: 1}, Count: 1},
	}, got)

	assert.Len(t, TopTiles(decisions, 1), 1)
	assert.Empty(t, TopTiles(decisions, 0))
	assert.Empty(t, TopTiles(nil, 3))
}

func TestMosaic(t *testing.T) {
	ref := imaging.New(8, 4, color.NRGBA{A: 255})
	// Block (1,0) is red, block (3,1) is green.
	for y := 0; y < 2; y++ {
		for x := 2; x < 4; x++ {
			ref.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	for y := 2; y < 4; y++ {
		for x := 6; x < 8; x++ {
			ref.SetNRGBA(x, y, color.NRGBA{G: 255, A: 255})
		}
	}

	tiles := []TileCount{
		{Pos: refgrid.Pos{X: 1, Y: 0}}, {Pos: refgrid.Pos{X: 3, Y: 1}},
		{}, {}, {Pos: refgrid.Pos{X: 1, Y: 0}},
	}
	m := Mosaic(ref, tiles, 2, 4)
	require.NotNil(t, m)
	assert.Equal(t, image.Rect(0, 0, 16, 8), m.Bounds())
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, m.NRGBAAt(1, 1))
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, m.NRGBAAt(6, 3))
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, m.NRGBAAt(2, 6), "fifth tile wraps to the second row")
	assert.Equal(t, color.NRGBA{A: 255}, m.NRGBAAt(10, 6))

	assert.Nil(t, Mosaic(ref, nil, 2, 4))

	small := Mosaic(ref, tiles[:2], 2, 4)
	assert.Equal(t, image.Rect(0, 0, 8, 4), small.Bounds())
}
