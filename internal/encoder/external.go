package encoder

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
)

// Atomic counter for unique temp file names across goroutines.
var tempCounter atomic.Int64

// ExternalEncoder encodes by writing a PNG to a temp file and running a
// command-line encoder on it.
type ExternalEncoder struct {
	format string
	tool   string
	// args builds the command line for quality q reading src, writing dst.
	args func(q int, src, dst string) []string

	once sync.Once
	path string
}

// NewWebPEncoder shells out to cwebp (apt install webp).
func NewWebPEncoder() *ExternalEncoder {
	return &ExternalEncoder{
		format: "webp",
		tool:   "cwebp",
		args: func(q int, src, dst string) []string {
			return []string{"-q", strconv.Itoa(q), "-m", "4", "-quiet", src, "-o", dst}
		},
	}
}

// NewAVIFEncoder shells out to avifenc (apt install libavif-bin).
func NewAVIFEncoder() *ExternalEncoder {
	return &ExternalEncoder{
		format: "avif",
		tool:   "avifenc",
		args: func(q int, src, dst string) []string {
			// avifenc quantizer: lower is better, 0-63.
			aq := strconv.Itoa(63 - q*63/100)
			return []string{"--min", aq, "--max", aq, "--speed", "8", src, dst}
		},
	}
}

func (e *ExternalEncoder) Format() string    { return e.format }
func (e *ExternalEncoder) Extension() string { return e.format }

func (e *ExternalEncoder) Available() bool {
	e.once.Do(func() {
		if path, err := exec.LookPath(e.tool); err == nil {
			e.path = path
		}
	})
	return e.path != ""
}

func (e *ExternalEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if !e.Available() {
		return nil, fmt.Errorf("%s not found in PATH", e.tool)
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	id := tempCounter.Add(1)
	src, err := os.CreateTemp("", fmt.Sprintf("refblend_src_%d_*.png", id))
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(src.Name())
	dstPath := src.Name() + "." + e.format
	defer os.Remove(dstPath)

	if err := png.Encode(src, img); err != nil {
		src.Close()
		return nil, fmt.Errorf("encode temp png: %w", err)
	}
	if err := src.Close(); err != nil {
		return nil, fmt.Errorf("write temp png: %w", err)
	}

	cmd := exec.Command(e.path, e.args(quality, src.Name(), dstPath)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", e.tool, err, string(out))
	}
	return os.ReadFile(dstPath)
}
