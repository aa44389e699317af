// Package viz renders diagnostic images from a frame's block decisions.
package viz

import (
	"image"
	"image/color"
	"image/draw"
	"sort"

	"github.com/AnyUserName/refblend/internal/match"
	"github.com/AnyUserName/refblend/internal/refgrid"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// MosaicColumns is the width of the top-tile mosaic in tiles.
const MosaicColumns = 4

var opaqueBlack = color.NRGBA{A: 255}

// Heatmap ramp endpoints, cold to hot.
var (
	heatCold = colorful.Color{R: 0.17, G: 0.48, B: 0.71}
	heatHot  = colorful.Color{R: 0.84, G: 0.10, B: 0.11}
)

func blockRect(d match.Decision, bs int) image.Rectangle {
	return image.Rect(d.GX*bs, d.GY*bs, (d.GX+1)*bs, (d.GY+1)*bs)
}

// DecisionMap draws interpolated blocks of frame at half opacity and
// passthrough blocks color-inverted, on black.
func DecisionMap(frame image.Image, decisions []match.Decision, bs int) *image.NRGBA {
	b := frame.Bounds()
	dst := imaging.New(b.Dx(), b.Dy(), opaqueBlack)
	black := imaging.New(bs, bs, opaqueBlack)
	for _, d := range decisions {
		r := blockRect(d, bs)
		tile := imaging.Crop(frame, r.Add(b.Min))
		if d.Kind == match.Interpolate {
			tile = imaging.Overlay(black, tile, image.Point{}, 0.5)
		} else {
			tile = imaging.Invert(tile)
		}
		draw.Draw(dst, r, tile, image.Point{}, draw.Src)
	}
	return dst
}

// Heatmap fills every matched block with a cold-to-hot color for
// normalize(score). Unmatched blocks stay black.
func Heatmap(w, h int, decisions []match.Decision, bs int, normalize func(float64) float64) *image.NRGBA {
	dst := imaging.New(w, h, opaqueBlack)
	for _, d := range decisions {
		if d.Match == nil {
			continue
		}
		c := heatCold.BlendLab(heatHot, normalize(d.Score)).Clamped()
		r, g, bl := c.RGB255()
		fill := color.NRGBA{R: r, G: g, B: bl, A: 255}

		draw.Draw(dst, blockRect(d, bs), &image.Uniform{C: fill}, image.Point{}, draw.Src)
	}
	return dst
}

// TileCount is how often a reference block was blended into a frame.
type TileCount struct {
	Pos   refgrid.Pos `json:"pos"`
	Count int         `json:"count"`
}

// TopTiles returns the k reference positions most used by interpolated
// blocks, most used first and ties in grid order.
func TopTiles(decisions []match.Decision, k int) []TileCount {
	counts := map[refgrid.Pos]int{}
	for _, d := range decisions {
		if d.Kind == match.Interpolate && d.Match != nil {
			counts[*d.Match]++
		}
	}
	tiles := make([]TileCount, 0, len(counts))
	for pos, n := range counts {
		tiles = append(tiles, TileCount{Pos: pos, Count: n})
	}
	sort.Slice(tiles, func(i, j int) bool {
		a, b := tiles[i], tiles[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Pos.Y != b.Pos.Y {
			return a.Pos.Y < b.Pos.Y
		}
		return a.Pos.X < b.Pos.X
	})
	if k >= 0 && len(tiles) > k {
		tiles = tiles[:k]
	}
	return tiles
}

// Mosaic renders reference blocks for tiles into a grid MosaicColumns
// wide, each scaled to tileSize. It returns nil for no tiles.
func Mosaic(reference image.Image, tiles []TileCount, bs, tileSize int) *image.NRGBA {
	if len(tiles) == 0 {
		return nil
	}
	cols := min(MosaicColumns, len(tiles))
	rows := (len(tiles) + MosaicColumns - 1) / MosaicColumns
	dst := imaging.New(cols*tileSize, rows*tileSize, opaqueBlack)

	origin := reference.Bounds().Min
	for i, t := range tiles {
		r := image.Rect(t.Pos.X*bs, t.Pos.Y*bs, (t.Pos.X+1)*bs, (t.Pos.Y+1)*bs).Add(origin)
		tile := imaging.Resize(imaging.Crop(reference, r), tileSize, tileSize, imaging.NearestNeighbor)
		at := image.Pt((i%MosaicColumns)*tileSize, (i/MosaicColumns)*tileSize)
		draw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(image.Pt(tileSize, tileSize))}, tile, image.Point{}, draw.Src)
	}
	return dst
}
