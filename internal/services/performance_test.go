package services

import (
	"math"
	"testing"
	"time"

	"github.com/chainfolio/chainfolio-go/internal/config"
	"github.com/chainfolio/chainfolio-go/internal/models"
	"github.com/chainfolio/chainfolio-go/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAnalyticsConfig() config.AnalyticsConfig {
	return config.AnalyticsConfig{
		AnnualizationDays: 365,
		Timeframes:        []string{"24h", "7d", "30d", "90d", "1y", "all"},
	}
}

func dailyValuations(start time.Time, values ...float64) []models.ValuationPoint {
	points := make([]models.ValuationPoint, len(values))
	for i, v := range values {
		points[i] = models.ValuationPoint{
			Timestamp: start.Add(time.Duration(i) * 24 * time.Hour),
			Value:     v,
		}
	}
	return points
}

func TestComputeMetricsBasic(t *testing.T) {
	calc := NewPerformanceCalculator(testAnalyticsConfig())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	valuations := dailyValuations(start, 1000, 1100, 1050, 1200)

	metric, err := calc.ComputeMetrics("portfolio:abc", valuations, models.TimeframeAll)
	require.NoError(t, err)

	assert.Equal(t, "portfolio:abc", metric.Scope)
	assert.Equal(t, models.TimeframeAll, metric.Timeframe)
	assert.Equal(t, 4, metric.SampleSize)
	assert.InDelta(t, 200, metric.TotalReturn, 1e-9)
	require.NotNil(t, metric.ReturnPct)
	assert.InDelta(t, 20, *metric.ReturnPct, 1e-9)

	// Three daily returns: +10%, -4.545%, +14.286%; two of three positive.
	assert.InDelta(t, 2.0/3.0, metric.WinRate, 1e-9)
	assert.Greater(t, metric.Volatility, 0.0)
	require.NotNil(t, metric.SharpeRatio)

	// Peak 1100 to trough 1050.
	assert.InDelta(t, 50.0/1100.0, metric.MaxDrawdown, 1e-9)
}

func TestComputeMetricsInsufficientData(t *testing.T) {
	calc := NewPerformanceCalculator(testAnalyticsConfig())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, valuations := range [][]models.ValuationPoint{nil, dailyValuations(start, 1000)} {
		metric, err := calc.ComputeMetrics("portfolio:abc", valuations, models.TimeframeAll)
		require.NoError(t, err)
		assert.Zero(t, metric.TotalReturn)
		assert.Nil(t, metric.ReturnPct)
		assert.Zero(t, metric.Volatility)
		assert.Nil(t, metric.SharpeRatio)
		assert.Zero(t, metric.MaxDrawdown)
		assert.Zero(t, metric.WinRate)
	}
}

func TestComputeMetricsZeroStartValue(t *testing.T) {
	calc := NewPerformanceCalculator(testAnalyticsConfig())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	metric, err := calc.ComputeMetrics("portfolio:abc", dailyValuations(start, 0, 500, 600), models.TimeframeAll)
	require.NoError(t, err)
	assert.InDelta(t, 600, metric.TotalReturn, 1e-9)
	assert.Nil(t, metric.ReturnPct, "return pct undefined when the window starts at zero")
}

func TestComputeMetricsFlatSeriesHasNilSharpe(t *testing.T) {
	calc := NewPerformanceCalculator(testAnalyticsConfig())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	metric, err := calc.ComputeMetrics("portfolio:abc", dailyValuations(start, 1000, 1000, 1000), models.TimeframeAll)
	require.NoError(t, err)
	assert.Zero(t, metric.Volatility)
	assert.Nil(t, metric.SharpeRatio)
	assert.Zero(t, metric.MaxDrawdown)
}

func TestComputeMetricsMonotonicSeriesHasZeroDrawdown(t *testing.T) {
	calc := NewPerformanceCalculator(testAnalyticsConfig())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	metric, err := calc.ComputeMetrics("portfolio:abc", dailyValuations(start, 100, 110, 110, 125), models.TimeframeAll)
	require.NoError(t, err)
	assert.Zero(t, metric.MaxDrawdown)
	assert.GreaterOrEqual(t, metric.Volatility, 0.0)
}

func TestComputeMetricsWindowAnchoredAtSeriesEnd(t *testing.T) {
	calc := NewPerformanceCalculator(testAnalyticsConfig())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// Ten daily points; the 7d window keeps the last eight timestamps.
	valuations := dailyValuations(start, 100, 200, 300, 400, 500, 600, 700, 800, 900, 1000)

	metric, err := calc.ComputeMetrics("portfolio:abc", valuations, models.Timeframe7d)
	require.NoError(t, err)
	assert.Equal(t, 8, metric.SampleSize)
	assert.InDelta(t, 700, metric.TotalReturn, 1e-9)
}

func TestComputeMetricsRejectsNonFiniteInput(t *testing.T) {
	calc := NewPerformanceCalculator(testAnalyticsConfig())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	valuations := dailyValuations(start, 1000, math.NaN(), 1200)

	_, err := calc.ComputeMetrics("portfolio:abc", valuations, models.TimeframeAll)
	require.Error(t, err)

	var validationErr *utils.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestComputeMetricsIsDeterministic(t *testing.T) {
	calc := NewPerformanceCalculator(testAnalyticsConfig())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	valuations := dailyValuations(start, 1000, 1100, 1050, 1200, 1150)

	first, err := calc.ComputeMetrics("portfolio:abc", valuations, models.Timeframe30d)
	require.NoError(t, err)
	second, err := calc.ComputeMetrics("portfolio:abc", valuations, models.Timeframe30d)
	require.NoError(t, err)

	// ComputedAt is the only field allowed to differ between runs.
	second.ComputedAt = first.ComputedAt
	assert.Equal(t, first, second)
}

func dailyPrices(tokenID string, start time.Time, prices ...float64) models.TokenPriceSeries {
	points := make([]models.PricePoint, len(prices))
	for i, p := range prices {
		points[i] = models.PricePoint{
			AssetID:   tokenID,
			Timestamp: start.Add(time.Duration(i) * 24 * time.Hour),
			PriceUSD:  p,
		}
	}
	return models.TokenPriceSeries{TokenID: tokenID, Points: points}
}

func TestRankPriceChanges(t *testing.T) {
	calc := NewPerformanceCalculator(testAnalyticsConfig())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tokens := []models.TokenPriceSeries{
		dailyPrices("ETH", start, 100, 120), // +20%
		dailyPrices("BTC", start, 100, 90),  // -10%
		dailyPrices("SOL", start, 50, 60),   // +20%
		dailyPrices("DOT", start, 10),       // too short, skipped
	}

	ranked, err := calc.RankPriceChanges(tokens, models.TimeframeAll)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	// ETH and SOL tie at +20%; token id breaks the tie.
	assert.Equal(t, "ETH", ranked[0].TokenID)
	assert.Equal(t, "SOL", ranked[1].TokenID)
	assert.Equal(t, "BTC", ranked[2].TokenID)
	assert.InDelta(t, 20, ranked[0].ChangePct, 1e-9)
	assert.InDelta(t, -10, ranked[2].ChangePct, 1e-9)
}

func TestRankPriceChangesSkipsZeroStart(t *testing.T) {
	calc := NewPerformanceCalculator(testAnalyticsConfig())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	ranked, err := calc.RankPriceChanges([]models.TokenPriceSeries{
		dailyPrices("NEW", start, 0, 5),
	}, models.TimeframeAll)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}
