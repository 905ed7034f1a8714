package services

import (
	"math"
	"sort"
	"time"

	"github.com/chainfolio/chainfolio-go/internal/config"
	"github.com/chainfolio/chainfolio-go/internal/models"
	"github.com/chainfolio/chainfolio-go/internal/utils"
	"github.com/google/uuid"
)

// PerformanceCalculator turns ordered portfolio valuation snapshots into
// return and risk statistics per timeframe. It is a pure calculator: the
// same input always produces the same output apart from the ComputedAt
// stamp, so results can be recomputed and upserted idempotently.
type PerformanceCalculator struct {
	annualizationDays int
}

// NewPerformanceCalculator creates a calculator from the analytics config.
func NewPerformanceCalculator(cfg config.AnalyticsConfig) *PerformanceCalculator {
	return &PerformanceCalculator{
		annualizationDays: cfg.AnnualizationDays,
	}
}

// ComputeMetrics computes the PerformanceMetric for one scope and timeframe.
// The timeframe window is anchored at the final snapshot of the series, not
// the wall clock. With fewer than two points in the window every derived
// statistic is zero or nil, never an error.
func (pc *PerformanceCalculator) ComputeMetrics(scope string, valuations []models.ValuationPoint, timeframe models.Timeframe) (*models.PerformanceMetric, error) {
	values := make([]float64, len(valuations))
	for i, point := range valuations {
		values[i] = point.Value
	}
	if !allFinite(values) {
		return nil, utils.NewValidationErrorf("valuation series for %s contains non-finite values", scope)
	}

	windowed := filterWindow(valuations, timeframe)

	metric := &models.PerformanceMetric{
		ID:         metricID(scope, timeframe),
		Scope:      scope,
		Timeframe:  timeframe,
		SampleSize: len(windowed),
		ComputedAt: time.Now().UTC(),
	}
	if len(windowed) < 2 {
		return metric, nil
	}

	series := make([]float64, len(windowed))
	for i, point := range windowed {
		series[i] = point.Value
	}

	first := series[0]
	last := series[len(series)-1]

	metric.TotalReturn = last - first
	if first != 0 {
		pct := metric.TotalReturn / first * 100
		metric.ReturnPct = &pct
	}

	returns := simpleReturns(series)
	metric.Volatility = calculateStdDev(returns) * math.Sqrt(float64(pc.annualizationDays))
	if metric.Volatility != 0 {
		sharpe := calculateMean(returns) / metric.Volatility
		metric.SharpeRatio = &sharpe
	}

	metric.MaxDrawdown = maxDrawdown(series)

	if len(returns) > 0 {
		wins := 0
		for _, r := range returns {
			if r > 0 {
				wins++
			}
		}
		metric.WinRate = float64(wins) / float64(len(returns))
	}

	return metric, nil
}

// RankPriceChanges sorts tokens by their percentage price change over the
// timeframe, descending, with ties broken by token id so the ranking is
// deterministic. Tokens without two finite in-window prices are skipped.
func (pc *PerformanceCalculator) RankPriceChanges(tokens []models.TokenPriceSeries, timeframe models.Timeframe) ([]models.TokenPriceChange, error) {
	changes := make([]models.TokenPriceChange, 0, len(tokens))
	for _, token := range tokens {
		prices := make([]float64, len(token.Points))
		for i, point := range token.Points {
			prices[i] = point.PriceUSD
		}
		if !allFinite(prices) {
			return nil, utils.NewValidationErrorf("price series for %s contains non-finite values", token.TokenID)
		}

		windowed := filterPriceWindow(token.Points, timeframe)
		if len(windowed) < 2 {
			continue
		}

		first := windowed[0].PriceUSD
		last := windowed[len(windowed)-1].PriceUSD
		if first == 0 {
			continue
		}

		changes = append(changes, models.TokenPriceChange{
			TokenID:    token.TokenID,
			Timeframe:  timeframe,
			ChangePct:  (last - first) / first * 100,
			FirstPrice: first,
			LastPrice:  last,
		})
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].ChangePct != changes[j].ChangePct {
			return changes[i].ChangePct > changes[j].ChangePct
		}
		return changes[i].TokenID < changes[j].TokenID
	})

	return changes, nil
}

// metricID is derived from the upsert key, so recomputing the same scope
// and timeframe yields an identical metric apart from ComputedAt.
func metricID(scope string, timeframe models.Timeframe) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(scope+":"+timeframe.String()))
}

func filterWindow(points []models.ValuationPoint, timeframe models.Timeframe) []models.ValuationPoint {
	window, bounded := timeframe.Window()
	if !bounded || len(points) == 0 {
		return points
	}
	cutoff := points[len(points)-1].Timestamp.Add(-window)
	start := sort.Search(len(points), func(i int) bool {
		return !points[i].Timestamp.Before(cutoff)
	})
	return points[start:]
}

func filterPriceWindow(points []models.PricePoint, timeframe models.Timeframe) []models.PricePoint {
	window, bounded := timeframe.Window()
	if !bounded || len(points) == 0 {
		return points
	}
	cutoff := points[len(points)-1].Timestamp.Add(-window)
	start := sort.Search(len(points), func(i int) bool {
		return !points[i].Timestamp.Before(cutoff)
	})
	return points[start:]
}
