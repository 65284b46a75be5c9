package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculatePercentile(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}

	assert.Equal(t, 1.0, CalculatePercentile(data, 0))
	assert.Equal(t, 3.0, CalculatePercentile(data, 50))
	assert.Equal(t, 5.0, CalculatePercentile(data, 100))
	assert.InDelta(t, 4.6, CalculatePercentile(data, 90), 1e-9)
	assert.Equal(t, 7.0, CalculatePercentile([]int{7}, 99))
	assert.Zero(t, CalculatePercentile([]int64{}, 50))
}

func TestCalculateMean(t *testing.T) {
	assert.Equal(t, 2.5, CalculateMean([]int{1, 2, 3, 4}))
	assert.Equal(t, 6.0, CalculateMean([]float64{6}))
	assert.Zero(t, CalculateMean([]float64(nil)))
}
