package profile

// Profile is a named set of reconstruction parameters.
type Profile struct {
	Name       string
	BlockSize  int     // block edge in pixels
	Blend      float64 // weight of the matched reference block
	Threshold  float64 // z-score a match must exceed
	EMAAlpha   float64 // range tracker smoothing
	Scale      float64 // processing resolution relative to the input
	Candidates int     // nearest neighbors rescored per block
	MaxVisits  int     // k-d tree visit budget, 0 for exact search
	Format     string  // output frame format
}

// Default is the preset used when none is named.
const Default = "balanced"

// Built-in profiles.
var profiles = map[string]Profile{
	"realtime": {
		Name:       "realtime",
		BlockSize:  16,
		Blend:      0.5,
		Threshold:  1.0,
		EMAAlpha:   0.2,
		Scale:      0.25,
		Candidates: 3,
		MaxVisits:  64,
		Format:     "rgbz",
	},
	"balanced": {
		Name:       "balanced",
		BlockSize:  8,
		Blend:      0.5,
		Threshold:  1.0,
		EMAAlpha:   0.1,
		Scale:      0.5,
		Candidates: 5,
		Format:     "png",
	},
	"quality": {
		Name:       "quality",
		BlockSize:  8,
		Blend:      0.35,
		Threshold:  1.5,
		EMAAlpha:   0.05,
		Scale:      1,
		Candidates: 8,
		Format:     "png",
	},
}

// Get returns a profile by name. Falls back to balanced if unknown.
func Get(name string) Profile {
	if p, ok := profiles[name]; ok {
		return p
	}
	p := profiles[Default]
	p.Name = name // preserve requested name
	return p
}

// Names lists the built-in profiles.
func Names() []string {
	return []string{"realtime", "balanced", "quality"}
}
