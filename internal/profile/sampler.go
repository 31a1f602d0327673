package profile

import (
	"fmt"
	"math/rand"
	"sort"
)

// Sampler draws indices from a discrete weighted distribution.
// Weights are normalized once at construction into a cumulative table,
// so each draw costs one random number and a binary search.
type Sampler struct {
	cum []float64
}

// NewSampler builds a sampler over the given weights. Weights do not need
// to sum to 1.0; they are normalized. A negative weight or an all-zero
// weight set is rejected.
func NewSampler(weights []float64) (*Sampler, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("sampler: no weights given")
	}

	total := 0.0
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("sampler: weight %d is negative (%v)", i, w)
		}
		total += w
	}
	if total <= 0 {
		return nil, fmt.Errorf("sampler: weights sum to zero")
	}

	cum := make([]float64, len(weights))
	acc := 0.0
	for i, w := range weights {
		acc += w / total
		cum[i] = acc
	}
	// Guard against float drift so the last bucket always catches 1.0.
	cum[len(cum)-1] = 1.0

	return &Sampler{cum: cum}, nil
}

// Sample returns an index distributed according to the weights.
// Zero-weight entries are never returned; ties resolve to the earliest
// registered index.
func (s *Sampler) Sample(rng *rand.Rand) int {
	r := rng.Float64()
	i := sort.SearchFloat64s(s.cum, r)
	// SearchFloat64s finds the first cum >= r, except when r lands exactly
	// on a boundary value, where it returns that bucket's own index.
	for i < len(s.cum)-1 && s.cum[i] <= r {
		i++
	}
	return i
}

// Cumulative returns a copy of the normalized cumulative table.
func (s *Sampler) Cumulative() []float64 {
	out := make([]float64, len(s.cum))
	copy(out, s.cum)
	return out
}
