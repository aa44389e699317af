package encoder

import (
	"bytes"
	"image"
	"image/png"
	"sync"
)

// PNGEncoder encodes frames to lossless PNG. Frames are written at
// default compression; the deflate state is pooled across calls.
type PNGEncoder struct {
	once sync.Once
	enc  *png.Encoder
}

func (e *PNGEncoder) Format() string    { return "png" }
func (e *PNGEncoder) Extension() string { return "png" }
func (e *PNGEncoder) Available() bool   { return true }

func (e *PNGEncoder) Encode(img image.Image, _ int) ([]byte, error) {
	e.once.Do(func() {
		e.enc = &png.Encoder{
			CompressionLevel: png.DefaultCompression,
			BufferPool:       &pngBufferPool{},
		}
	})

	var buf bytes.Buffer
	b := img.Bounds()
	buf.Grow(b.Dx() * b.Dy() * 2)

	if err := e.enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type pngBufferPool struct {
	pool sync.Pool
}

func (p *pngBufferPool) Get() *png.EncoderBuffer {
	b, _ := p.pool.Get().(*png.EncoderBuffer)
	return b
}

func (p *pngBufferPool) Put(b *png.EncoderBuffer) { p.pool.Put(b) }
