package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetMemUsage(t *testing.T) {
	s := GetMemUsage()
	assert.Contains(t, s, "Alloc")
	assert.Contains(t, s, "NumGC")
}

func TestIsNan(t *testing.T) {
	assert.False(t, IsNan(1.0))
	assert.True(t, IsNan(math.NaN()))
	assert.True(t, IsNan(float32(math.NaN())))
	assert.True(t, IsNan([3]float64{0, math.NaN(), 0}))
	assert.False(t, IsNan([]float64{0, 1, 2}))
	assert.True(t, IsNan([]float64{0, math.NaN()}))

	assert.NotPanics(t, func() { IsNanPanic([]float64{1, 2}) })
	assert.Panics(t, func() { IsNanPanic(math.NaN()) })
}
