package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chainfolio/chainfolio-go/internal/config"
	"github.com/chainfolio/chainfolio-go/internal/models"
	"github.com/sirupsen/logrus"
)

// AnalyticsRunner periodically recomputes every analytics product for every
// tracked portfolio and hands the results to the repository for upsert. The
// engines themselves are pure; the runner owns scheduling, fan-out across
// independent scopes, and result persistence. Timeout and retry policy stay
// with the caller via the context.
type AnalyticsRunner struct {
	repo       AnalyticsRepository
	cache      MetricsCache
	perf       *PerformanceCalculator
	risk       *RiskEngine
	timeframes []models.Timeframe
	interval   time.Duration
	logger     *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAnalyticsRunner creates a runner wired to the given collaborators.
func NewAnalyticsRunner(
	cfg *config.Config,
	repo AnalyticsRepository,
	cache MetricsCache,
	perf *PerformanceCalculator,
	risk *RiskEngine,
	logger *logrus.Logger,
) (*AnalyticsRunner, error) {
	timeframes := make([]models.Timeframe, 0, len(cfg.Analytics.Timeframes))
	for _, raw := range cfg.Analytics.Timeframes {
		tf, err := models.ParseTimeframe(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid analytics timeframe: %w", err)
		}
		timeframes = append(timeframes, tf)
	}

	interval := 15 * time.Minute
	if cfg.Analytics.RecomputeInterval != "" {
		parsed, err := time.ParseDuration(cfg.Analytics.RecomputeInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid recompute interval: %w", err)
		}
		interval = parsed
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &AnalyticsRunner{
		repo:       repo,
		cache:      cache,
		perf:       perf,
		risk:       risk,
		timeframes: timeframes,
		interval:   interval,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start launches the periodic recomputation loop.
func (r *AnalyticsRunner) Start() {
	r.logger.WithField("interval", r.interval).Info("Starting analytics runner")
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// Run immediately so a fresh deployment serves computed results
		// without waiting out the first interval.
		if err := r.RunOnce(r.ctx); err != nil {
			r.logger.WithError(err).Error("Analytics run failed")
		}
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				if err := r.RunOnce(r.ctx); err != nil {
					r.logger.WithError(err).Error("Analytics run failed")
				}
			}
		}
	}()
}

// Stop cancels the loop and waits for the in-flight run to finish.
func (r *AnalyticsRunner) Stop() {
	r.cancel()
	r.wg.Wait()
	r.logger.Info("Analytics runner stopped")
}

// RunOnce recomputes everything for every tracked portfolio.
func (r *AnalyticsRunner) RunOnce(ctx context.Context) error {
	started := time.Now()

	portfolioIDs, err := r.repo.ListPortfolioIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list portfolios: %w", err)
	}

	for _, portfolioID := range portfolioIDs {
		if err := r.runPortfolio(ctx, portfolioID); err != nil {
			r.logger.WithError(err).WithField("portfolio_id", portfolioID).Error("Portfolio recomputation failed")
		}
	}

	r.logger.WithFields(logrus.Fields{
		"portfolios": len(portfolioIDs),
		"elapsed":    time.Since(started).String(),
	}).Info("Analytics run completed")
	return nil
}

func (r *AnalyticsRunner) runPortfolio(ctx context.Context, portfolioID string) error {
	if err := r.computePerformance(ctx, portfolioID); err != nil {
		return err
	}
	return r.computeRisk(ctx, portfolioID)
}

func (r *AnalyticsRunner) computePerformance(ctx context.Context, portfolioID string) error {
	valuations, err := r.repo.GetValuationHistory(ctx, portfolioID, time.Time{})
	if err != nil {
		return fmt.Errorf("failed to load valuations for %s: %w", portfolioID, err)
	}

	scope := "portfolio:" + portfolioID
	for _, timeframe := range r.timeframes {
		metric, err := r.perf.ComputeMetrics(scope, valuations, timeframe)
		if err != nil {
			return fmt.Errorf("failed to compute %s metrics for %s: %w", timeframe, portfolioID, err)
		}
		if err := r.repo.UpsertPerformanceMetric(ctx, metric); err != nil {
			return fmt.Errorf("failed to upsert %s metrics for %s: %w", timeframe, portfolioID, err)
		}
		if r.cache != nil {
			if err := r.cache.Set(ctx, metric); err != nil {
				// A stale cache entry is tolerable; the upsert is the
				// source of truth.
				r.logger.WithError(err).WithField("scope", scope).Warn("Failed to cache performance metric")
			}
		}
	}
	return nil
}

func (r *AnalyticsRunner) computeRisk(ctx context.Context, portfolioID string) error {
	tokens, err := r.repo.GetTrackedTokens(ctx, portfolioID)
	if err != nil {
		return fmt.Errorf("failed to list tokens for %s: %w", portfolioID, err)
	}

	series := make(map[string][]models.ReturnPoint, len(tokens))
	for _, token := range tokens {
		points, err := r.repo.GetReturnSeries(ctx, token, time.Time{})
		if err != nil {
			return fmt.Errorf("failed to load returns for %s: %w", token, err)
		}
		series[token] = points

		profile, err := r.risk.VolatilityProfile("token:"+token, points)
		if err != nil {
			return fmt.Errorf("failed to profile %s: %w", token, err)
		}
		if err := r.repo.UpsertVolatilityProfile(ctx, profile); err != nil {
			return fmt.Errorf("failed to upsert profile for %s: %w", token, err)
		}
	}

	pairs, err := r.risk.CorrelationMatrix(series)
	if err != nil {
		return fmt.Errorf("failed to compute correlation matrix for %s: %w", portfolioID, err)
	}
	for _, pair := range pairs {
		if err := r.repo.UpsertCorrelationPair(ctx, pair); err != nil {
			return fmt.Errorf("failed to upsert correlation %s/%s: %w", pair.TokenA, pair.TokenB, err)
		}
	}

	protocolValues, err := r.repo.GetProtocolValues(ctx, portfolioID)
	if err != nil {
		return fmt.Errorf("failed to load protocol values for %s: %w", portfolioID, err)
	}
	var portfolioTotal float64
	for _, value := range protocolValues {
		portfolioTotal += value
	}
	concentrations := make(map[string]float64, len(protocolValues))
	for protocolID, value := range protocolValues {
		assessment, err := r.risk.Exposure(protocolID, value, portfolioTotal)
		if err != nil {
			return fmt.Errorf("failed to assess exposure for %s: %w", protocolID, err)
		}
		if err := r.repo.UpsertExposureAssessment(ctx, assessment); err != nil {
			return fmt.Errorf("failed to upsert exposure for %s: %w", protocolID, err)
		}
		concentrations[protocolID] = value
	}

	score := r.risk.DiversificationScore(portfolioID, pairs, concentrations)
	if err := r.repo.UpsertDiversificationScore(ctx, score); err != nil {
		return fmt.Errorf("failed to upsert diversification score for %s: %w", portfolioID, err)
	}

	return nil
}
