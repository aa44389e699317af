package encoder

import (
	"fmt"
	"strings"
)

// Registry holds all available encoders by format name.
type Registry struct {
	encoders map[string]Encoder
}

// order is the display order of known formats.
var order = []string{"png", "rgbz", "jpeg", "webp", "avif"}

// NewRegistry creates a registry, probing all encoders for availability.
func NewRegistry() *Registry {
	r := &Registry{
		encoders: make(map[string]Encoder),
	}

	all := []Encoder{
		&PNGEncoder{},
		&RGBZEncoder{},
		&JPEGEncoder{},
		NewWebPEncoder(),
		NewAVIFEncoder(),
	}
	for _, enc := range all {
		if enc.Available() {
			r.encoders[enc.Format()] = enc
		}
	}
	r.encoders["jpg"] = r.encoders["jpeg"]
	return r
}

// Get returns an encoder for the given format, or nil if unavailable.
func (r *Registry) Get(format string) Encoder {
	return r.encoders[strings.ToLower(format)]
}

// Resolve is Get with an error naming the available formats.
func (r *Registry) Resolve(format string) (Encoder, error) {
	if enc := r.Get(format); enc != nil {
		return enc, nil
	}
	return nil, fmt.Errorf("format %q unavailable (%s)", format, r)
}

// Available returns all available format names.
func (r *Registry) Available() []string {
	var result []string
	for _, f := range order {
		if _, ok := r.encoders[f]; ok {
			result = append(result, f)
		}
	}
	return result
}

// String returns a summary of available encoders.
func (r *Registry) String() string {
	avail := r.Available()
	if len(avail) == 0 {
		return "no encoders available"
	}
	return fmt.Sprintf("encoders: %s", strings.Join(avail, ", "))
}
