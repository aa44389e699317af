// Package source supplies frames and reference images to the pipeline:
// directory scanning, decoding, resizing to the processing resolution,
// synthetic reference patterns and paced frame streams.
package source

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Load opens and decodes an image file.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Fit returns img as a w×h NRGBA image with a tight stride (w*4) and its
// origin at (0,0), resizing when the dimensions differ.
func Fit(img image.Image, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) && n.Stride == w*4 {
			return n
		}
		return imaging.Clone(img)
	}
	return imaging.Resize(img, w, h, imaging.Linear)
}
