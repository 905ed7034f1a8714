package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateMean(t *testing.T) {
	assert.Equal(t, 0.0, calculateMean(nil))
	assert.Equal(t, 2.0, calculateMean([]float64{1, 2, 3}))
	assert.Equal(t, -1.5, calculateMean([]float64{-1, -2}))
}

func TestCalculateStdDev(t *testing.T) {
	assert.Equal(t, 0.0, calculateStdDev([]float64{5}))
	assert.Equal(t, 0.0, calculateStdDev([]float64{3, 3, 3, 3}))

	// Sample stddev of {2, 4, 4, 4, 5, 5, 7, 9} is sqrt(32/7).
	got := calculateStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, math.Sqrt(32.0/7.0), got, 1e-12)
}

func TestCalculateCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}

	r, ok := calculateCorrelation(x, x)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-12)

	neg := []float64{-1, -2, -3, -4, -5}
	r, ok = calculateCorrelation(x, neg)
	assert.True(t, ok)
	assert.InDelta(t, -1.0, r, 1e-12)

	// Symmetric even function has exactly zero linear correlation.
	even := []float64{4, 1, 0, 1, 4}
	sym := []float64{-2, -1, 0, 1, 2}
	r, ok = calculateCorrelation(sym, even)
	assert.True(t, ok)
	assert.InDelta(t, 0.0, r, 1e-12)

	// Constant series has no defined correlation.
	_, ok = calculateCorrelation(x, []float64{7, 7, 7, 7, 7})
	assert.False(t, ok)

	// Length mismatch.
	_, ok = calculateCorrelation(x, []float64{1, 2})
	assert.False(t, ok)
}

func TestSimpleReturns(t *testing.T) {
	assert.Nil(t, simpleReturns([]float64{100}))

	returns := simpleReturns([]float64{100, 110, 99})
	assert.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-12)
	assert.InDelta(t, -0.10, returns[1], 1e-12)

	// A zero previous value is skipped, never divided by.
	returns = simpleReturns([]float64{100, 0, 50})
	assert.Len(t, returns, 1)
	assert.InDelta(t, -1.0, returns[0], 1e-12)
}

func TestMaxDrawdown(t *testing.T) {
	assert.Equal(t, 0.0, maxDrawdown(nil))
	assert.Equal(t, 0.0, maxDrawdown([]float64{1, 2, 2, 3}))

	// Peak 200 down to 100 is a 50% drawdown.
	assert.InDelta(t, 0.5, maxDrawdown([]float64{100, 200, 100, 150}), 1e-12)

	dd := maxDrawdown([]float64{100, 80, 120, 90, 130})
	assert.GreaterOrEqual(t, dd, 0.0)
	assert.LessOrEqual(t, dd, 1.0)
	assert.InDelta(t, 0.25, dd, 1e-12)
}

func TestCorrelationPValue(t *testing.T) {
	// Zero correlation: p-value is 1 regardless of sample size.
	assert.InDelta(t, 1.0, correlationPValue(0, 20), 1e-12)

	// Perfect correlation: t diverges, p-value is 0.
	assert.Equal(t, 0.0, correlationPValue(1, 20))
	assert.Equal(t, 0.0, correlationPValue(-1, 20))

	// Too few samples for the test to mean anything.
	assert.Equal(t, 1.0, correlationPValue(0.9, 2))

	// Strong correlation over a decent sample is clearly significant.
	p := correlationPValue(0.9, 30)
	assert.Greater(t, p, 0.0)
	assert.Less(t, p, 0.001)

	// Weak correlation over a small sample is not.
	p = correlationPValue(0.2, 10)
	assert.Greater(t, p, 0.05)

	// p-values are monotonically decreasing in |r|.
	assert.Greater(t, correlationPValue(0.3, 25), correlationPValue(0.6, 25))
}

func TestRegularizedIncompleteBeta(t *testing.T) {
	assert.Equal(t, 0.0, regularizedIncompleteBeta(2, 3, 0))
	assert.Equal(t, 1.0, regularizedIncompleteBeta(2, 3, 1))

	// I_x(1, 1) is the uniform CDF.
	assert.InDelta(t, 0.25, regularizedIncompleteBeta(1, 1, 0.25), 1e-10)

	// I_x(1, b) = 1 - (1-x)^b.
	assert.InDelta(t, 1-math.Pow(0.7, 4), regularizedIncompleteBeta(1, 4, 0.3), 1e-10)

	// Symmetry: I_x(a, b) = 1 - I_{1-x}(b, a).
	assert.InDelta(t, 1-regularizedIncompleteBeta(3, 5, 0.6), regularizedIncompleteBeta(5, 3, 0.4), 1e-10)
}

func TestAllFinite(t *testing.T) {
	assert.True(t, allFinite([]float64{1, -2, 0}))
	assert.False(t, allFinite([]float64{1, math.NaN()}))
	assert.False(t, allFinite([]float64{math.Inf(1)}))
	assert.False(t, allFinite([]float64{math.Inf(-1)}))
}
