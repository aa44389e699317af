package source

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/vector"
)

// Mode selects where the reference image comes from.
type Mode string

const (
	// ModeStatic uses one fixed reference image.
	ModeStatic Mode = "static"
	// ModePrevious feeds each composite back as the next reference.
	ModePrevious Mode = "previous"
	// ModeKeyframe takes the first frame as reference until replaced.
	ModeKeyframe Mode = "keyframe"
	// ModeTracer uses a synthetic striped pattern.
	ModeTracer Mode = "tracer"
)

// Modes lists the recognized modes in display order.
var Modes = []Mode{ModeStatic, ModePrevious, ModeKeyframe, ModeTracer}

// ParseMode resolves a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown reference mode %q", s)
}

var (
	tracerOrange = color.NRGBA{R: 255, G: 165, A: 255}
	tracerTeal   = color.NRGBA{G: 128, B: 128, A: 255}
)

// tracerBands is the number of stripes in the tracer pattern.
const tracerBands = 8

// Tracer renders the synthetic reference: black with alternating orange
// and teal stripes whose edges slope across half a stripe height.
func Tracer(w, h int) *image.NRGBA {
	dst := imaging.New(w, h, color.NRGBA{A: 255})
	seg := float32(h) / tracerBands
	fw := float32(w)
	for i := 0; i < tracerBands; i++ {
		top := float32(i) * seg
		z := vector.NewRasterizer(w, h)
		fill := tracerTeal
		if i%2 == 0 {
			fill = tracerOrange
			z.MoveTo(0, top)
			z.LineTo(fw, top)
			z.LineTo(fw, top+seg/2)
			z.LineTo(0, top+seg)
		} else {
			z.MoveTo(0, top)
			z.LineTo(fw, top+seg/2)
			z.LineTo(fw, top+seg)
			z.LineTo(0, top+seg)
		}
		z.ClosePath()
		z.Draw(dst, dst.Bounds(), image.NewUniform(fill), image.Point{})
	}
	return dst
}

// SkewAmount is the horizontal shear at time t for an oscillation with
// the given period: sin(2πt/period)·strength. A non-positive period or
// strength yields 0.
func SkewAmount(t, period time.Duration, strength float64) float64 {
	if period <= 0 || strength == 0 {
		return 0
	}
	return math.Sin(2*math.Pi*t.Seconds()/period.Seconds()) * strength
}

// Shear returns a copy of img sheared horizontally about its center by
// angle radians (x' = x + tan(angle)·(y - cy)). Areas the sheared image
// does not cover keep the original content.
func Shear(img *image.NRGBA, angle float64) *image.NRGBA {
	dst := imaging.Clone(img)
	if angle == 0 {
		return dst
	}
	b := img.Bounds()
	k := math.Tan(angle)
	cy := float64(b.Min.Y) + float64(b.Dy())/2
	s2d := f64.Aff3{
		1, k, -k * cy,
		0, 1, 0,
	}
	xdraw.BiLinear.Transform(dst, s2d, img, b, xdraw.Src, nil)
	return dst
}
