// Package refgrid partitions a reference image into a grid of blocks,
// transforms each one and indexes the coefficients for nearest-neighbor
// search.
package refgrid

import (
	"fmt"

	"github.com/AnyUserName/refblend/internal/dct"
	"github.com/AnyUserName/refblend/internal/kdtree"
)

// Pos is a block position in grid units.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Point is one transformed reference block.
type Point struct {
	Pos    Pos
	Coeffs *dct.Block
}

// Features returns the flattened coefficient vector (channel-major,
// row-major within a channel) of length 3·BlockSize².
func (p *Point) Features() []float64 { return p.Coeffs.Data }

// Grid is the full set of transformed reference blocks. It is read-only
// once built.
type Grid struct {
	BlockSize int
	Cols      int
	Rows      int
	Points    []Point // row-major: index = gy*Cols + gx
}

// At returns the point at grid position (gx, gy).
func (g *Grid) At(gx, gy int) *Point {
	return &g.Points[gy*g.Cols+gx]
}

// Build transforms every whole block of an interleaved RGBA image.
// Partial blocks at the right and bottom edges are ignored, so an image
// smaller than one block produces an empty grid.
func Build(pix []byte, width, height, blockSize int) (*Grid, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("refgrid: invalid block size %d", blockSize)
	}
	if width < 0 || height < 0 || len(pix) < width*height*4 {
		return nil, fmt.Errorf("refgrid: buffer of %d bytes too small for %dx%d", len(pix), width, height)
	}

	g := &Grid{
		BlockSize: blockSize,
		Cols:      width / blockSize,
		Rows:      height / blockSize,
	}
	g.Points = make([]Point, 0, g.Cols*g.Rows)

	tr := dct.NewTransformer(blockSize)
	scratch := dct.NewBlock(blockSize)
	stride := width * 4
	for gy := 0; gy < g.Rows; gy++ {
		for gx := 0; gx < g.Cols; gx++ {
			dct.Extract(scratch, pix, stride, gx*blockSize, gy*blockSize)
			coeffs := dct.NewBlock(blockSize)
			tr.ForwardBlock(coeffs, scratch)
			g.Points = append(g.Points, Point{Pos: Pos{X: gx, Y: gy}, Coeffs: coeffs})
		}
	}
	return g, nil
}

// Index is one published reference version: the grid and the tree built
// over its features. Workers share it read-only.
type Index struct {
	Version uint64
	Grid    *Grid
	Tree    *kdtree.Tree
}

// NewIndex builds the search tree for g and tags it with version.
func NewIndex(version uint64, g *Grid) *Index {
	features := make([][]float64, len(g.Points))
	for i := range g.Points {
		features[i] = g.Points[i].Features()
	}
	return &Index{
		Version: version,
		Grid:    g,
		Tree:    kdtree.Build(features),
	}
}

// Candidates returns the reference points nearest to features, closest
// first. maxVisits bounds the tree walk; <= 0 searches exhaustively.
func (idx *Index) Candidates(features []float64, k, maxVisits int) []*Point {
	nn := idx.Tree.NearestBudget(features, k, maxVisits)
	out := make([]*Point, len(nn))
	for i, n := range nn {
		out[i] = &idx.Grid.Points[n.Index]
	}
	return out
}
