package dct

import "math"

// Channels is the number of color channels carried per block (R, G, B).
const Channels = 3

// Block is a Size×Size matrix per channel stored as one flat slice,
// channel-major and row-major within each channel. The same layout is
// used for pixel blocks (sample-128) and coefficient blocks, and it is
// also the feature vector the reference index searches over.
type Block struct {
	Size int
	Data []float64
}

// NewBlock allocates a zeroed block of the given edge length.
func NewBlock(size int) *Block {
	return &Block{Size: size, Data: make([]float64, Channels*size*size)}
}

// Channel returns the n² values of channel c.
func (b *Block) Channel(c int) []float64 {
	n2 := b.Size * b.Size
	return b.Data[c*n2 : (c+1)*n2]
}

// CopyFrom overwrites b with the contents of o. Sizes must match.
func (b *Block) CopyFrom(o *Block) {
	copy(b.Data, o.Data)
}

// Clone returns a deep copy of b.
func (b *Block) Clone() *Block {
	c := NewBlock(b.Size)
	copy(c.Data, b.Data)
	return c
}

// Extract reads the block whose top-left pixel is (x, y) from an
// interleaved RGBA buffer with the given stride in bytes. Each of R, G, B
// is stored minus 128; alpha is ignored.
func Extract(dst *Block, pix []byte, stride, x, y int) {
	n := dst.Size
	n2 := n * n
	for j := 0; j < n; j++ {
		off := (y+j)*stride + x*4
		row := j * n
		for i := 0; i < n; i++ {
			dst.Data[row+i] = float64(pix[off]) - 128
			dst.Data[n2+row+i] = float64(pix[off+1]) - 128
			dst.Data[2*n2+row+i] = float64(pix[off+2]) - 128
			off += 4
		}
	}
}

// Embed writes src back at (x, y): adds 128, rounds, clamps to [0,255]
// and sets alpha to opaque. Only the block's own pixels are touched.
func Embed(src *Block, pix []byte, stride, x, y int) {
	n := src.Size
	n2 := n * n
	for j := 0; j < n; j++ {
		off := (y+j)*stride + x*4
		row := j * n
		for i := 0; i < n; i++ {
			pix[off] = clamp8(src.Data[row+i])
			pix[off+1] = clamp8(src.Data[n2+row+i])
			pix[off+2] = clamp8(src.Data[2*n2+row+i])
			pix[off+3] = 255
			off += 4
		}
	}
}

func clamp8(v float64) uint8 {
	v = math.Round(v + 128)
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
