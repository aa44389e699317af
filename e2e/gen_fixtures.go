//go:build ignore

// gen_fixtures creates a short frame sequence and a reference image for
// the E2E smoke test.
// Usage: go run gen_fixtures.go <output_dir>
//
// Layout:
//
//	<output_dir>/reference.png      gradient with a bordered card
//	<output_dir>/frames/frame_NNN   the card sliding right, every third frame as JPEG
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
)

const (
	width  = 320
	height = 180
	frames = 12
	card   = 64
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]
	if err := os.MkdirAll(filepath.Join(dir, "frames"), 0o755); err != nil {
		panic(err)
	}

	writeImage(filepath.Join(dir, "reference.png"), scene(0))
	for i := 0; i < frames; i++ {
		img := scene(i * 8)
		name := fmt.Sprintf("frame_%03d", i)
		if i%3 == 2 {
			writeJPEG(filepath.Join(dir, "frames", name+".jpg"), img)
			continue
		}
		writeImage(filepath.Join(dir, "frames", name+".png"), img)
	}

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created reference and %d frames in %s\n", frames, dir)
}

// scene draws the background gradient with the card offset by dx pixels.
func scene(dx int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	cx, cy := 32+dx, (height-card)/2
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBA{
				R: uint8(x * 255 / width),
				G: uint8(y * 255 / height),
				B: 128,
				A: 255,
			}
			if x >= cx && x < cx+card && y >= cy && y < cy+card {
				c = color.NRGBA{R: 60, G: 100, B: 140, A: 255}
				if x < cx+4 || x >= cx+card-4 || y < cy+4 || y >= cy+card-4 {
					c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
				}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func writeImage(path string, img *image.NRGBA) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		panic(err)
	}
}

func writeJPEG(path string, img *image.NRGBA) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		panic(err)
	}
}
