package services

import (
	"math"
)

func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateStdDev returns the sample (n-1) standard deviation. Sample
// deviation is used consistently across all engines.
func calculateStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := calculateMean(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	variance := sumSquares / float64(len(values)-1)
	return math.Sqrt(variance)
}

// calculateCorrelation computes Pearson's r for two equal-length series.
// The second return value is false when either series has zero variance.
func calculateCorrelation(x []float64, y []float64) (float64, bool) {
	n := len(x)
	if n == 0 || len(y) != n {
		return 0, false
	}
	meanX := calculateMean(x)
	meanY := calculateMean(y)

	var numerator float64
	var denomX float64
	var denomY float64

	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		numerator += dx * dy
		denomX += dx * dx
		denomY += dy * dy
	}

	denom := math.Sqrt(denomX * denomY)
	if denom == 0 {
		return 0, false
	}

	corr := numerator / denom
	if corr > 1 {
		return 1, true
	}
	if corr < -1 {
		return -1, true
	}
	return corr, true
}

// simpleReturns derives period-over-period returns from a value series,
// skipping pairs where the previous value is zero.
func simpleReturns(series []float64) []float64 {
	if len(series) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		if series[i-1] == 0 {
			continue
		}
		returns = append(returns, (series[i]-series[i-1])/series[i-1])
	}
	return returns
}

// maxDrawdown returns the largest peak-to-trough decline as a fraction of
// the peak, in [0, 1]. Zero for a monotonically non-decreasing series.
func maxDrawdown(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	peak := series[0]
	worst := 0.0
	for _, v := range series {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			drawdown := (peak - v) / peak
			if drawdown > worst {
				worst = drawdown
			}
		}
	}
	return worst
}

// correlationPValue returns the two-sided p-value for an observed Pearson r
// over n aligned samples, testing against zero correlation with a Student's
// t distribution with n-2 degrees of freedom.
func correlationPValue(r float64, n int) float64 {
	df := n - 2
	if df <= 0 {
		return 1
	}
	denom := 1 - r*r
	if denom <= 0 {
		// |r| = 1: the t statistic diverges.
		return 0
	}
	t := r * math.Sqrt(float64(df)/denom)
	// For T ~ t(df), P(|T| > |t|) = I_x(df/2, 1/2) with x = df/(df+t^2).
	x := float64(df) / (float64(df) + t*t)
	return regularizedIncompleteBeta(float64(df)/2, 0.5, x)
}

// regularizedIncompleteBeta computes I_x(a, b) via the continued-fraction
// expansion (Numerical Recipes 6.4).
func regularizedIncompleteBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	lgAB, _ := math.Lgamma(a + b)
	lgA, _ := math.Lgamma(a)
	lgB, _ := math.Lgamma(b)
	front := math.Exp(lgAB - lgA - lgB + a*math.Log(x) + b*math.Log(1-x))

	if x < (a+1)/(a+b+2) {
		return front * betaContinuedFraction(a, b, x) / a
	}
	return 1 - front*betaContinuedFraction(b, a, 1-x)/b
}

func betaContinuedFraction(a, b, x float64) float64 {
	const maxIterations = 200
	const epsilon = 3e-14
	const tiny = 1e-300

	qab := a + b
	qap := a + 1
	qam := a - 1

	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	h := d

	for m := 1; m <= maxIterations; m++ {
		m2 := float64(2 * m)
		fm := float64(m)

		aa := fm * (b - fm) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		h *= d * c

		aa = -(a + fm) * (qab + fm) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del

		if math.Abs(del-1) < epsilon {
			break
		}
	}
	return h
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
