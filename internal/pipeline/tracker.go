package pipeline

import "gonum.org/v1/gonum/floats"

// RangeTracker follows the spread of match scores across frames with an
// exponential moving average of the per-frame extremes.
type RangeTracker struct {
	Alpha float64
	Min   float64
	Max   float64
}

// Update folds one frame's scores into the bounds. An empty set leaves
// them unchanged.
func (r *RangeTracker) Update(scores []float64) {
	if len(scores) == 0 {
		return
	}
	r.Min = r.Alpha*floats.Min(scores) + (1-r.Alpha)*r.Min
	r.Max = r.Alpha*floats.Max(scores) + (1-r.Alpha)*r.Max
}

// Normalize maps v into [0,1] against the current bounds. A collapsed
// range maps everything to 0.
func (r *RangeTracker) Normalize(v float64) float64 {
	span := r.Max - r.Min
	if span <= 1e-6 {
		return 0
	}
	n := (v - r.Min) / span
	switch {
	case n < 0:
		return 0
	case n > 1:
		return 1
	}
	return n
}
