package encoder

import (
	"bytes"
	"image"
	"image/jpeg"
)

// DefaultJPEGQuality is used when Encode is given quality 0.
const DefaultJPEGQuality = 90

// JPEGEncoder encodes frames to JPEG using Go's standard library.
type JPEGEncoder struct{}

func (e *JPEGEncoder) Format() string    { return "jpeg" }
func (e *JPEGEncoder) Extension() string { return "jpg" }
func (e *JPEGEncoder) Available() bool   { return true }

func (e *JPEGEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	b := img.Bounds()
	buf.Grow(b.Dx() * b.Dy() / 2)

	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
