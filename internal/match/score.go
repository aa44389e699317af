// Package match scores reference candidates against a target block and
// decides whether the target is replaced by a blend toward its best match.
package match

import (
	"gonum.org/v1/gonum/stat"

	"github.com/AnyUserName/refblend/internal/dct"
)

// Epsilon is the smallest standard deviation treated as non-zero.
const Epsilon = 1e-6

// NCC returns the normalized cross-correlation of two coefficient blocks,
// averaged over the color channels. The result lies in [-1, 1]. A channel
// where either block is flat scores 1 if both are flat and 0 otherwise.
func NCC(target, candidate *dct.Block) float64 {
	var total float64
	for c := 0; c < dct.Channels; c++ {
		total += channelNCC(target.Channel(c), candidate.Channel(c))
	}
	return total / dct.Channels
}

func channelNCC(a, b []float64) float64 {
	_, stdA := stat.PopMeanStdDev(a, nil)
	_, stdB := stat.PopMeanStdDev(b, nil)
	if stdA < Epsilon || stdB < Epsilon {
		if stdA < Epsilon && stdB < Epsilon {
			return 1
		}
		return 0
	}
	r := stat.Correlation(a, b, nil)
	switch {
	case r > 1:
		return 1
	case r < -1:
		return -1
	}
	return r
}

// Rescored is the outcome of scoring every candidate for one block.
type Rescored struct {
	// Best is the index of the highest-scoring candidate, or -1 when
	// there were none. The first maximum wins.
	Best      int
	BestScore float64
	// Z is BestScore standardized against all candidate scores; it is 0
	// when the scores do not vary.
	Z float64
}

// Rescore computes NCC for each candidate and normalizes the best score
// against the distribution of the candidates examined.
func Rescore(target *dct.Block, candidates []*dct.Block) Rescored {
	if len(candidates) == 0 {
		return Rescored{Best: -1}
	}
	scores := make([]float64, len(candidates))
	res := Rescored{Best: -1}
	for i, c := range candidates {
		scores[i] = NCC(target, c)
		if res.Best < 0 || scores[i] > res.BestScore {
			res.Best = i
			res.BestScore = scores[i]
		}
	}
	res.Z = ZScore(res.BestScore, scores)
	return res
}

// ZScore standardizes v against the population mean and standard
// deviation of set. A deviation below Epsilon yields 0.
func ZScore(v float64, set []float64) float64 {
	if len(set) == 0 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(set, nil)
	if std <= Epsilon {
		return 0
	}
	return (v - mean) / std
}
