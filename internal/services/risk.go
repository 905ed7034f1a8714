package services

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/chainfolio/chainfolio-go/internal/config"
	"github.com/chainfolio/chainfolio-go/internal/models"
	"github.com/chainfolio/chainfolio-go/internal/utils"
	"github.com/google/uuid"
)

// Weighting of the two diversification components. Correlation dominates
// because an evenly spread but fully correlated portfolio is barely
// diversified at all.
const (
	diversificationCorrelationWeight   = 0.6
	diversificationConcentrationWeight = 0.4
)

// RiskEngine produces pairwise correlation, volatility decomposition,
// concentration exposure, and diversification scoring from per-asset
// return series. All methods are pure computation over their inputs and
// safe to call concurrently.
type RiskEngine struct {
	cfg               config.RiskConfig
	annualizationDays int
}

// NewRiskEngine creates a risk engine from the risk and analytics config.
func NewRiskEngine(riskCfg config.RiskConfig, analyticsCfg config.AnalyticsConfig) *RiskEngine {
	return &RiskEngine{
		cfg:               riskCfg,
		annualizationDays: analyticsCfg.AnnualizationDays,
	}
}

// Correlate computes the Pearson correlation between two tokens' return
// series after aligning them on common timestamps. An aligned sample below
// the configured minimum, or a constant series, yields a nil coefficient
// and significant=false rather than an error. The pair is stored in
// canonical lexicographic order, so Correlate(a, b) and Correlate(b, a)
// produce identical results.
func (re *RiskEngine) Correlate(tokenA, tokenB string, seriesA, seriesB []models.ReturnPoint) (*models.CorrelationPair, error) {
	if tokenB < tokenA {
		tokenA, tokenB = tokenB, tokenA
		seriesA, seriesB = seriesB, seriesA
	}

	pair := &models.CorrelationPair{
		TokenA:     tokenA,
		TokenB:     tokenB,
		ComputedAt: time.Now().UTC(),
	}

	x, y, err := alignSeries(seriesA, seriesB)
	if err != nil {
		return nil, err
	}

	pair.SampleSize = len(x)
	if len(x) < re.cfg.MinSampleSize {
		return pair, nil
	}

	r, ok := calculateCorrelation(x, y)
	if !ok {
		// One of the series is constant over the aligned window.
		return pair, nil
	}

	p := correlationPValue(r, len(x))
	pair.Coefficient = &r
	pair.PValue = &p
	pair.Significant = p < re.cfg.SignificanceLevel

	return pair, nil
}

// CorrelationMatrix computes every distinct pair among the given tokens.
// Pairs are independent, so they are computed concurrently; the result is
// sorted by (TokenA, TokenB) for deterministic output.
func (re *RiskEngine) CorrelationMatrix(series map[string][]models.ReturnPoint) ([]*models.CorrelationPair, error) {
	tokens := make([]string, 0, len(series))
	for token := range series {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	type result struct {
		pair *models.CorrelationPair
		err  error
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make([]result, 0, len(tokens)*(len(tokens)-1)/2)

	for i := 0; i < len(tokens); i++ {
		for j := i + 1; j < len(tokens); j++ {
			tokenA, tokenB := tokens[i], tokens[j]
			wg.Add(1)
			go func() {
				defer wg.Done()
				pair, err := re.Correlate(tokenA, tokenB, series[tokenA], series[tokenB])
				mu.Lock()
				results = append(results, result{pair: pair, err: err})
				mu.Unlock()
			}()
		}
	}
	wg.Wait()

	pairs := make([]*models.CorrelationPair, 0, len(results))
	for _, res := range results {
		if res.err != nil {
			return nil, res.err
		}
		pairs = append(pairs, res.pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].TokenA != pairs[j].TokenA {
			return pairs[i].TokenA < pairs[j].TokenA
		}
		return pairs[i].TokenB < pairs[j].TokenB
	})

	return pairs, nil
}

// VolatilityProfile decomposes a return series into upside and downside
// deviation and a rolling annualized volatility over the configured window,
// then grades the result against the configured thresholds.
func (re *RiskEngine) VolatilityProfile(scope string, series []models.ReturnPoint) (*models.VolatilityProfile, error) {
	returns := make([]float64, len(series))
	for i, point := range series {
		returns[i] = point.Value
	}
	if !allFinite(returns) {
		return nil, utils.NewValidationErrorf("return series for %s contains non-finite values", scope)
	}

	mean := calculateMean(returns)
	var upside, downside []float64
	for _, r := range returns {
		switch {
		case r > mean:
			upside = append(upside, r)
		case r < mean:
			downside = append(downside, r)
		}
	}

	window := returns
	if re.cfg.RollingWindow > 0 && len(returns) > re.cfg.RollingWindow {
		window = returns[len(returns)-re.cfg.RollingWindow:]
	}
	rolling := calculateStdDev(window) * math.Sqrt(float64(re.annualizationDays))

	return &models.VolatilityProfile{
		Scope:             scope,
		UpsideDeviation:   calculateStdDev(upside),
		DownsideDeviation: calculateStdDev(downside),
		RollingVolatility: rolling,
		RiskCategory:      re.volatilityRiskLevel(rolling),
		ComputedAt:        time.Now().UTC(),
	}, nil
}

// Exposure grades the concentration of one protocol position against the
// portfolio total. A zero portfolio total resolves to zero concentration.
func (re *RiskEngine) Exposure(protocolID string, protocolValue, portfolioTotal float64) (*models.ExposureAssessment, error) {
	if !allFinite([]float64{protocolValue, portfolioTotal}) {
		return nil, utils.NewValidationErrorf("exposure inputs for %s are non-finite", protocolID)
	}
	if protocolValue < 0 || portfolioTotal < 0 {
		return nil, utils.NewValidationErrorf("exposure inputs for %s must not be negative", protocolID)
	}

	concentration := 0.0
	if portfolioTotal > 0 {
		concentration = protocolValue / portfolioTotal
	}

	level := re.concentrationRiskLevel(concentration)

	return &models.ExposureAssessment{
		ProtocolID:               protocolID,
		ConcentrationPct:         concentration * 100,
		RiskLevel:                level,
		RecommendedAllocationPct: re.allocationCap(level) * 100,
		ComputedAt:               time.Now().UTC(),
	}, nil
}

// DiversificationScore condenses the correlation matrix and the protocol
// concentration distribution into a 0-100 score. A fully uncorrelated,
// evenly distributed portfolio scores near 100; a single-asset or fully
// correlated portfolio scores near 0.
func (re *RiskEngine) DiversificationScore(portfolioID string, pairs []*models.CorrelationPair, concentrations map[string]float64) *models.DiversificationScore {
	// With no computable pairs the portfolio is treated as fully
	// correlated: one asset cannot diversify anything.
	avgAbsCorrelation := 1.0
	var sum float64
	var count int
	for _, pair := range pairs {
		if pair.Coefficient == nil {
			continue
		}
		sum += math.Abs(*pair.Coefficient)
		count++
	}
	if count > 0 {
		avgAbsCorrelation = sum / float64(count)
	}

	score := 100 * (diversificationCorrelationWeight*(1-avgAbsCorrelation) +
		diversificationConcentrationWeight*(1-normalizedHHI(concentrations)))
	score = math.Max(0, math.Min(100, score))

	return &models.DiversificationScore{
		PortfolioID: portfolioID,
		Score:       score,
		RunID:       uuid.New(),
		ComputedAt:  time.Now().UTC(),
	}
}

// normalizedHHI maps the Herfindahl-Hirschman index of the concentration
// distribution onto [0, 1], where 0 is a perfectly even spread and 1 is a
// single-position portfolio.
func normalizedHHI(concentrations map[string]float64) float64 {
	n := len(concentrations)
	if n <= 1 {
		return 1
	}

	var total float64
	for _, v := range concentrations {
		total += v
	}
	if total <= 0 {
		return 1
	}

	var hhi float64
	for _, v := range concentrations {
		w := v / total
		hhi += w * w
	}

	floor := 1 / float64(n)
	return (hhi - floor) / (1 - floor)
}

func (re *RiskEngine) volatilityRiskLevel(annualizedVolatility float64) models.RiskLevel {
	switch {
	case annualizedVolatility < re.cfg.VolatilityMediumThreshold:
		return models.RiskLow
	case annualizedVolatility < re.cfg.VolatilityHighThreshold:
		return models.RiskMedium
	case annualizedVolatility < re.cfg.VolatilityCriticalThreshold:
		return models.RiskHigh
	default:
		return models.RiskCritical
	}
}

func (re *RiskEngine) concentrationRiskLevel(concentration float64) models.RiskLevel {
	switch {
	case concentration < re.cfg.ConcentrationMediumThreshold:
		return models.RiskLow
	case concentration < re.cfg.ConcentrationHighThreshold:
		return models.RiskMedium
	case concentration < re.cfg.ConcentrationCriticalThreshold:
		return models.RiskHigh
	default:
		return models.RiskCritical
	}
}

func (re *RiskEngine) allocationCap(level models.RiskLevel) float64 {
	switch level {
	case models.RiskLow:
		return re.cfg.AllocationCapLow
	case models.RiskMedium:
		return re.cfg.AllocationCapMedium
	case models.RiskHigh:
		return re.cfg.AllocationCapHigh
	default:
		return re.cfg.AllocationCapCritical
	}
}

// alignSeries inner-joins two return series on their timestamps, keeping
// ascending order, and validates that every joined value is finite. A
// duplicate timestamp on either side is rejected: the join would silently
// drop or double-count observations.
func alignSeries(a, b []models.ReturnPoint) ([]float64, []float64, error) {
	byTime := make(map[int64]float64, len(a))
	for _, point := range a {
		ts := point.Timestamp.Unix()
		if _, dup := byTime[ts]; dup {
			return nil, nil, utils.NewValidationError("return series contains duplicate timestamps")
		}
		byTime[ts] = point.Value
	}

	joined := make(map[int64]bool, len(b))
	x := make([]float64, 0, len(b))
	y := make([]float64, 0, len(b))
	for _, point := range b {
		ts := point.Timestamp.Unix()
		va, ok := byTime[ts]
		if !ok {
			continue
		}
		if joined[ts] {
			return nil, nil, utils.NewValidationError("return series contains duplicate timestamps")
		}
		joined[ts] = true
		if math.IsNaN(va) || math.IsInf(va, 0) || math.IsNaN(point.Value) || math.IsInf(point.Value, 0) {
			return nil, nil, utils.NewValidationError("return series contains non-finite values")
		}
		x = append(x, va)
		y = append(y, point.Value)
	}
	return x, y, nil
}
