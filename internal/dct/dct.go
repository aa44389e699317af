// Package dct implements the orthonormal 2D type-II DCT and its inverse
// (type-III) over square blocks, plus the RGBA block codec that moves
// blocks in and out of interleaved pixel buffers.
//
// The 1D forward transform is
//
//	X[k] = scale(k) * sum_{m=0}^{N-1} x[m] * cos((2m+1)kπ / 2N)
//	scale(0) = sqrt(1/N), scale(k>0) = sqrt(2/N)
//
// Written as a matrix C with C[k][m] = scale(k)·cos((2m+1)kπ/2N), the 2D
// transform is separable: X·Cᵀ transforms every row, C·(X·Cᵀ) then
// transforms every column. C is orthonormal, so the inverse is Cᵀ·Y·C.
package dct

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// bases caches one read-only basis matrix per block size.
var bases sync.Map // int → *mat.Dense

// basis returns the n×n DCT-II basis matrix, building it on first use.
func basis(n int) *mat.Dense {
	if c, ok := bases.Load(n); ok {
		return c.(*mat.Dense)
	}
	c := mat.NewDense(n, n, nil)
	scale0 := math.Sqrt(1 / float64(n))
	scaleK := math.Sqrt(2 / float64(n))
	for k := 0; k < n; k++ {
		s := scaleK
		if k == 0 {
			s = scale0
		}
		for m := 0; m < n; m++ {
			c.Set(k, m, s*math.Cos(float64(2*m+1)*float64(k)*math.Pi/float64(2*n)))
		}
	}
	actual, _ := bases.LoadOrStore(n, c)
	return actual.(*mat.Dense)
}

// Transformer runs forward and inverse transforms for one block size.
// It owns scratch space and is not safe for concurrent use; give each
// goroutine its own.
type Transformer struct {
	n   int
	c   *mat.Dense
	tmp *mat.Dense
}

// NewTransformer returns a transformer for n×n blocks.
func NewTransformer(n int) *Transformer {
	if n <= 0 {
		panic(fmt.Sprintf("dct: invalid block size %d", n))
	}
	return &Transformer{
		n:   n,
		c:   basis(n),
		tmp: mat.NewDense(n, n, nil),
	}
}

// Size returns the block edge length.
func (t *Transformer) Size() int { return t.n }

// Forward writes the 2D DCT-II of the row-major n×n matrix src into dst.
// dst and src may be the same slice.
func (t *Transformer) Forward(dst, src []float64) {
	x := mat.NewDense(t.n, t.n, src)
	t.tmp.Mul(x, t.c.T())
	mat.NewDense(t.n, t.n, dst).Mul(t.c, t.tmp)
}

// Inverse writes the 2D DCT-III of src into dst, undoing Forward.
// dst and src may be the same slice.
func (t *Transformer) Inverse(dst, src []float64) {
	y := mat.NewDense(t.n, t.n, src)
	t.tmp.Mul(t.c.T(), y)
	mat.NewDense(t.n, t.n, dst).Mul(t.tmp, t.c)
}

// ForwardBlock transforms each channel of src into dst.
func (t *Transformer) ForwardBlock(dst, src *Block) {
	t.check(dst, src)
	for ch := 0; ch < Channels; ch++ {
		t.Forward(dst.Channel(ch), src.Channel(ch))
	}
}

// InverseBlock inverts each channel of src into dst.
func (t *Transformer) InverseBlock(dst, src *Block) {
	t.check(dst, src)
	for ch := 0; ch < Channels; ch++ {
		t.Inverse(dst.Channel(ch), src.Channel(ch))
	}
}

func (t *Transformer) check(dst, src *Block) {
	if dst.Size != t.n || src.Size != t.n {
		panic(fmt.Sprintf("dct: block size mismatch: transformer=%d dst=%d src=%d", t.n, dst.Size, src.Size))
	}
}
