package profile

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampler_NormalizesWeights(t *testing.T) {
	// Weights deliberately do not sum to 1.0.
	s, err := NewSampler([]float64{2, 6})
	require.NoError(t, err)

	cum := s.Cumulative()
	require.Len(t, cum, 2)
	assert.InDelta(t, 0.25, cum[0], 1e-9)
	assert.InDelta(t, 1.0, cum[1], 1e-9)
}

func TestSampler_RejectsBadWeights(t *testing.T) {
	_, err := NewSampler(nil)
	assert.Error(t, err)

	_, err = NewSampler([]float64{0.5, -0.1})
	assert.Error(t, err)

	_, err = NewSampler([]float64{0, 0})
	assert.Error(t, err)
}

func TestSampler_Distribution(t *testing.T) {
	s, err := NewSampler([]float64{0.7, 0.2, 0.1})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	counts := make([]int, 3)
	const n = 100000
	for i := 0; i < n; i++ {
		counts[s.Sample(rng)]++
	}

	assert.InDelta(t, 0.7, float64(counts[0])/n, 0.02)
	assert.InDelta(t, 0.2, float64(counts[1])/n, 0.02)
	assert.InDelta(t, 0.1, float64(counts[2])/n, 0.02)
}

func TestSampler_ZeroWeightNeverSampled(t *testing.T) {
	s, err := NewSampler([]float64{0, 1, 0})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10000; i++ {
		assert.Equal(t, 1, s.Sample(rng))
	}
}
