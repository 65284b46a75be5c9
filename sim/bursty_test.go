package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleStats draws n values and returns their mean and coefficient of variation.
func sampleStats(d Distribution, n int) (mean, cv float64) {
	rng := rand.New(rand.NewSource(42))
	var sum, sumSq float64
	for i := 0; i < n; i++ {
		v := d.Next(rng)
		sum += v
		sumSq += v * v
	}
	mean = sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	return mean, math.Sqrt(variance) / mean
}

func TestBurstyDistributions_MeanAndCV(t *testing.T) {
	tests := []struct {
		name string
		dist Distribution
		cv   float64
	}{
		{"gamma cv 1", &Gamma{Mean: 10}, 1},
		{"gamma bursty", &Gamma{Mean: 10, CV: 2}, 2},
		{"weibull cv 1", &Weibull{Mean: 10}, 1},
		{"weibull regular", &Weibull{Mean: 10, CV: 0.5}, 0.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mean, cv := sampleStats(tc.dist, 50000)
			assert.InEpsilon(t, 10.0, mean, 0.05)
			assert.InEpsilon(t, tc.cv, cv, 0.1)
		})
	}
}

func TestDistributionSpec_BuildBursty(t *testing.T) {
	d, err := DistributionSpec{Kind: DistWeibull, Mean: 4, CV: 0.5}.Build()
	require.NoError(t, err)
	w, ok := d.(*Weibull)
	require.True(t, ok)

	w.Next(rand.New(rand.NewSource(1)))
	c := Clone(w).(*Weibull)

	assert.Equal(t, 4.0, c.Mean)
	assert.Zero(t, c.shape, "derived shape is recomputed by the clone")
	assert.InDelta(t, 0.5, weibullCV(w.shape), 0.001)
}
