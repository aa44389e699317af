package encoder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/klauspost/compress/zstd"
)

// rgbz is a raw frame container: a 12-byte header followed by the
// zstd-compressed tight NRGBA pixels.
//
//	0..3   magic "RGBZ"
//	4..7   width, little endian
//	8..11  height, little endian
var rgbzMagic = [4]byte{'R', 'G', 'B', 'Z'}

const rgbzHeader = 12

// ErrNotRGBZ is returned by DecodeRGBZ for data without the rgbz header.
var ErrNotRGBZ = errors.New("encoder: not an rgbz frame")

// RGBZEncoder writes frames as zstd-compressed raw RGBA. It is the
// fastest lossless sink and round-trips exactly.
type RGBZEncoder struct{}

func (e *RGBZEncoder) Format() string    { return "rgbz" }
func (e *RGBZEncoder) Extension() string { return "rgbz" }
func (e *RGBZEncoder) Available() bool   { return true }

// Encode maps quality onto zstd levels: 0 is the default level, higher
// quality spends more time compressing.
func (e *RGBZEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()

	out := make([]byte, rgbzHeader, rgbzHeader+w*h)
	copy(out, rgbzMagic[:])
	binary.LittleEndian.PutUint32(out[4:], uint32(w))
	binary.LittleEndian.PutUint32(out[8:], uint32(h))

	pool := zstdEncPools[levelFor(quality)]
	enc := pool.Get().(*zstd.Encoder)
	out = enc.EncodeAll(src.Pix, out)
	pool.Put(enc)
	return out, nil
}

// DecodeRGBZ restores a frame written by RGBZEncoder.
func DecodeRGBZ(data []byte) (*image.NRGBA, error) {
	if len(data) < rgbzHeader || [4]byte(data[:4]) != rgbzMagic {
		return nil, ErrNotRGBZ
	}
	w := int(binary.LittleEndian.Uint32(data[4:]))
	h := int(binary.LittleEndian.Uint32(data[8:]))

	dec := zstdDecPool.Get().(*zstd.Decoder)
	pix, err := dec.DecodeAll(data[rgbzHeader:], make([]byte, 0, w*h*4))
	zstdDecPool.Put(dec)
	if err != nil {
		return nil, fmt.Errorf("rgbz: %w", err)
	}
	if len(pix) != w*h*4 {
		return nil, fmt.Errorf("rgbz: %d pixel bytes for %dx%d", len(pix), w, h)
	}
	return &image.NRGBA{Pix: pix, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}, nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Stride == n.Rect.Dx()*4 && len(n.Pix) == n.Stride*n.Rect.Dy() {
		return n
	}
	return imaging.Clone(img)
}

func levelFor(quality int) zstd.EncoderLevel {
	switch {
	case quality <= 0:
		return zstd.SpeedDefault
	case quality < 34:
		return zstd.SpeedFastest
	case quality < 67:
		return zstd.SpeedDefault
	case quality < 90:
		return zstd.SpeedBetterCompression
	}
	return zstd.SpeedBestCompression
}

var zstdEncPools = func() map[zstd.EncoderLevel]*sync.Pool {
	pools := map[zstd.EncoderLevel]*sync.Pool{}
	for _, lvl := range []zstd.EncoderLevel{
		zstd.SpeedFastest, zstd.SpeedDefault, zstd.SpeedBetterCompression, zstd.SpeedBestCompression,
	} {
		lvl := lvl
		pools[lvl] = &sync.Pool{New: func() any {
			enc, err := zstd.NewWriter(nil,
				zstd.WithEncoderConcurrency(1),
				zstd.WithEncoderLevel(lvl),
			)
			if err != nil {
				panic(err)
			}
			return enc
		}}
	}
	return pools
}()

var zstdDecPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderLowmem(true),
		)
		if err != nil {
			panic(err)
		}
		return dec
	},
}
