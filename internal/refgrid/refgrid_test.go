package refgrid

import (
	"testing"

	"github.com/AnyUserName/refblend/internal/dct"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checker(w, h, cell int) []byte {
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := (y*w + x) * 4
			v := uint8(0)
			if ((x/cell)+(y/cell))%2 == 0 {
				v = 255
			}
			pix[off], pix[off+1], pix[off+2], pix[off+3] = v, v/2, 255-v, 255
		}
	}
	return pix
}

func TestBuild_GridShape(t *testing.T) {
	for _, tc := range []struct {
		w, h, bs   int
		cols, rows int
	}{
		{64, 32, 8, 8, 4},
		{70, 37, 8, 8, 4}, // partial edge blocks dropped
		{7, 7, 8, 0, 0},   // smaller than one block
		{32, 32, 16, 2, 2},
	} {
		g, err := Build(checker(tc.w, tc.h, 4), tc.w, tc.h, tc.bs)
		require.NoError(t, err)
		assert.Equal(t, tc.cols, g.Cols)
		assert.Equal(t, tc.rows, g.Rows)
		assert.Len(t, g.Points, tc.cols*tc.rows)
		for i, p := range g.Points {
			assert.Equal(t, Pos{X: i % max(tc.cols, 1), Y: i / max(tc.cols, 1)}, p.Pos)
			assert.Len(t, p.Features(), 3*tc.bs*tc.bs)
		}
	}
}

func TestBuild_CoefficientsMatchTransform(t *testing.T) {
	const w, h, bs = 32, 16, 8
	pix := checker(w, h, 3)
	g, err := Build(pix, w, h, bs)
	require.NoError(t, err)

	tr := dct.NewTransformer(bs)
	blk := dct.NewBlock(bs)
	want := dct.NewBlock(bs)
	dct.Extract(blk, pix, w*4, 2*bs, 1*bs)
	tr.ForwardBlock(want, blk)

	assert.Equal(t, want.Data, g.At(2, 1).Coeffs.Data)
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(make([]byte, 16), 4, 4, 0)
	assert.Error(t, err)
	_, err = Build(make([]byte, 10), 4, 4, 2)
	assert.Error(t, err)
}

func TestIndex_CandidatesFindExactBlock(t *testing.T) {
	const w, h, bs = 64, 64, 8
	pix := checker(w, h, 5)
	g, err := Build(pix, w, h, bs)
	require.NoError(t, err)
	idx := NewIndex(3, g)
	assert.Equal(t, uint64(3), idx.Version)

	target := g.At(5, 6)
	got := idx.Candidates(target.Features(), 5, 0)
	require.NotEmpty(t, got)
	assert.Len(t, got, 5)
	// The block itself is at distance zero; an identical earlier block may
	// win the tie but must carry the same coefficients.
	assert.Equal(t, target.Coeffs.Data, got[0].Coeffs.Data)
}

func TestIndex_EmptyGrid(t *testing.T) {
	g, err := Build(checker(4, 4, 1), 4, 4, 8)
	require.NoError(t, err)
	idx := NewIndex(1, g)
	assert.Empty(t, idx.Candidates(make([]float64, 3*64), 5, 0))
}
