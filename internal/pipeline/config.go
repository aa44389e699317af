package pipeline

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/AnyUserName/refblend/internal/profile"
	"github.com/AnyUserName/refblend/internal/source"
)

// ErrInvalidConfig is wrapped by every error Validate returns.
var ErrInvalidConfig = errors.New("pipeline: invalid config")

// DefaultOscPeriod is the skew oscillation period when none is set.
const DefaultOscPeriod = 4 * time.Second

// TracerSkew is the shear strength applied to the tracer reference when
// SkewStrength is zero.
const TracerSkew = 0.25

// Config holds all parameters for a reconstruction run.
type Config struct {
	BlockSize  int
	Blend      float64 // weight of the matched reference block, [0,1]
	Threshold  float64 // a block is interpolated when its z-score exceeds this
	EMAAlpha   float64 // range tracker smoothing, (0,1]
	Workers    int     // <= 0 means runtime.NumCPU()
	Scale      float64 // processing resolution relative to the input, (0,1]
	Candidates int
	MaxVisits  int

	Mode         source.Mode
	SkewStrength float64
	OscPeriod    time.Duration

	Verbose bool
	Log     io.Writer // verbose output, default os.Stderr
}

// FromProfile returns a config seeded from a preset.
func FromProfile(p profile.Profile) Config {
	return Config{
		BlockSize:  p.BlockSize,
		Blend:      p.Blend,
		Threshold:  p.Threshold,
		EMAAlpha:   p.EMAAlpha,
		Scale:      p.Scale,
		Candidates: p.Candidates,
		MaxVisits:  p.MaxVisits,
		Mode:       source.ModeStatic,
		OscPeriod:  DefaultOscPeriod,
	}
}

// DefaultConfig is FromProfile of the default preset.
func DefaultConfig() Config {
	return FromProfile(profile.Get(profile.Default))
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.BlockSize < 2:
		return fmt.Errorf("%w: block size %d < 2", ErrInvalidConfig, c.BlockSize)
	case c.Blend < 0 || c.Blend > 1:
		return fmt.Errorf("%w: blend %g outside [0,1]", ErrInvalidConfig, c.Blend)
	case c.EMAAlpha <= 0 || c.EMAAlpha > 1:
		return fmt.Errorf("%w: ema alpha %g outside (0,1]", ErrInvalidConfig, c.EMAAlpha)
	case !validScale(c.Scale):
		return fmt.Errorf("%w: scale %g outside (0,1]", ErrInvalidConfig, c.Scale)
	case c.Candidates < 0:
		return fmt.Errorf("%w: candidates %d < 0", ErrInvalidConfig, c.Candidates)
	case c.OscPeriod < 0:
		return fmt.Errorf("%w: negative oscillation period", ErrInvalidConfig)
	}
	if _, err := source.ParseMode(string(c.Mode)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func validScale(s float64) bool { return s > 0 && s <= 1 }

// ProcessingSize is the resolution a native w×h frame is processed at:
// each axis scaled and floored to a whole number of blocks, never less
// than one block.
func ProcessingSize(w, h int, scale float64, blockSize int) (int, int) {
	fit := func(n int) int {
		blocks := int(float64(n) * scale / float64(blockSize))
		if blocks < 1 {
			blocks = 1
		}
		return blocks * blockSize
	}
	return fit(w), fit(h)
}
