package match

import (
	"encoding/json"
	"fmt"

	"github.com/AnyUserName/refblend/internal/dct"
	"github.com/AnyUserName/refblend/internal/refgrid"
)

// Kind is the per-block outcome.
type Kind uint8

const (
	Passthrough Kind = iota
	Interpolate
)

func (k Kind) String() string {
	switch k {
	case Interpolate:
		return "interpolate"
	case Passthrough:
		return "passthrough"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// MarshalJSON encodes the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) { return json.Marshal(k.String()) }

// UnmarshalJSON decodes a kind name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "interpolate":
		*k = Interpolate
	case "passthrough":
		*k = Passthrough
	default:
		return fmt.Errorf("match: unknown decision %q", s)
	}
	return nil
}

// Decision records what happened to one block. It is never modified
// after the worker that produced it returns.
type Decision struct {
	GX    int          `json:"gx"`
	GY    int          `json:"gy"`
	Kind  Kind         `json:"decision"`
	Match *refgrid.Pos `json:"match,omitempty"` // nil only when no candidate existed
	Score float64      `json:"score"`           // normalized z-score of the best match
}

// Decide returns Interpolate when a match exists and z exceeds threshold.
// Higher z means the best candidate stands out more from the rest.
func Decide(z, threshold float64, hasMatch bool) Kind {
	if hasMatch && z > threshold {
		return Interpolate
	}
	return Passthrough
}

// Blend writes (1-blend)·target + blend·candidate into dst element-wise.
// dst may alias target.
func Blend(dst, target, candidate *dct.Block, blend float64) {
	keep := 1 - blend
	for i := range dst.Data {
		dst.Data[i] = keep*target.Data[i] + blend*candidate.Data[i]
	}
}

// Reconstruct applies the decision to target and returns the coefficients
// to invert. On Passthrough dst receives the target unchanged.
func Reconstruct(dst, target, candidate *dct.Block, kind Kind, blend float64) {
	if kind == Interpolate && candidate != nil {
		Blend(dst, target, candidate, blend)
		return
	}
	dst.CopyFrom(target)
}
