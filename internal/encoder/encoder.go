// Package encoder turns reconstructed frames into bytes on disk.
package encoder

import (
	"image"
)

// Encoder encodes an image to a specific format.
type Encoder interface {
	// Format returns the output format name (e.g. "png", "jpeg", "rgbz").
	Format() string

	// Encode converts the image to bytes. quality is 1-100; formats
	// without a quality knob ignore it and 0 selects the default.
	Encode(img image.Image, quality int) ([]byte, error)

	// Available returns true if the encoder is ready to use.
	// External encoders may not be installed.
	Available() bool

	// Extension returns the file extension without dot.
	Extension() string
}
