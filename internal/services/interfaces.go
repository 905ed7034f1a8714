package services

import (
	"context"
	"time"

	"github.com/chainfolio/chainfolio-go/internal/models"
)

// AnalyticsRepository is the persistence contract the analytics engines
// compute against. Reads return pre-fetched, ascending time series; writes
// are idempotent upserts so a recomputed batch can be retried safely. Each
// consumer receives the repository by injection; there is no shared client
// singleton.
type AnalyticsRepository interface {
	// ListPortfolioIDs returns the portfolios eligible for recomputation.
	ListPortfolioIDs(ctx context.Context) ([]string, error)
	// GetValuationHistory returns the portfolio's valuation snapshots since
	// the given time, ascending by timestamp.
	GetValuationHistory(ctx context.Context, portfolioID string, since time.Time) ([]models.ValuationPoint, error)
	// GetReturnSeries returns the token's daily return series since the
	// given time, ascending by timestamp.
	GetReturnSeries(ctx context.Context, tokenID string, since time.Time) ([]models.ReturnPoint, error)
	// GetTransactionHistory returns the wallet's transaction history for an
	// asset, ascending by timestamp.
	GetTransactionHistory(ctx context.Context, walletID, assetID string) ([]models.Transaction, error)
	// GetProtocolValues returns the current USD value held per protocol for
	// a portfolio.
	GetProtocolValues(ctx context.Context, portfolioID string) (map[string]float64, error)
	// GetTrackedTokens returns the tokens the portfolio holds.
	GetTrackedTokens(ctx context.Context, portfolioID string) ([]string, error)

	UpsertPerformanceMetric(ctx context.Context, metric *models.PerformanceMetric) error
	UpsertCorrelationPair(ctx context.Context, pair *models.CorrelationPair) error
	UpsertVolatilityProfile(ctx context.Context, profile *models.VolatilityProfile) error
	UpsertExposureAssessment(ctx context.Context, assessment *models.ExposureAssessment) error
	UpsertDiversificationScore(ctx context.Context, score *models.DiversificationScore) error
}

// MetricsCache holds the most recently computed performance metric per
// (scope, timeframe) for cheap API reads between batch runs.
type MetricsCache interface {
	Get(ctx context.Context, scope string, timeframe models.Timeframe) (*models.PerformanceMetric, bool)
	Set(ctx context.Context, metric *models.PerformanceMetric) error
}
