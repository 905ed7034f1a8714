package database

import (
	"context"
	"fmt"
	"time"

	"github.com/chainfolio/chainfolio-go/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DatabasePool defines the interface for database pool operations.
// This interface allows for both real pool and mock pool implementations.
type DatabasePool interface {
	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	// Exec executes a query without returning any rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// AnalyticsRepository persists analytics inputs and recomputed products.
// All writes are keyed upserts, so a retried batch overwrites rather than
// duplicates.
type AnalyticsRepository struct {
	pool DatabasePool
}

// NewAnalyticsRepository creates a repository backed by the given pool.
func NewAnalyticsRepository(pool DatabasePool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

// ListPortfolioIDs returns every portfolio eligible for recomputation.
func (r *AnalyticsRepository) ListPortfolioIDs(ctx context.Context) ([]string, error) {
	query := `SELECT id FROM portfolios ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}

	return ids, nil
}

// GetValuationHistory returns the portfolio's valuation snapshots since the
// given time, ascending by timestamp.
func (r *AnalyticsRepository) GetValuationHistory(ctx context.Context, portfolioID string, since time.Time) ([]models.ValuationPoint, error) {
	query := `
		SELECT timestamp, total_usd_value
		FROM portfolio_valuations
		WHERE portfolio_id = $1 AND timestamp >= $2
		ORDER BY timestamp ASC
	`

	rows, err := r.pool.Query(ctx, query, portfolioID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get valuation history: %w", err)
	}
	defer rows.Close()

	var points []models.ValuationPoint
	for rows.Next() {
		var point models.ValuationPoint
		if err := rows.Scan(&point.Timestamp, &point.Value); err != nil {
			return nil, fmt.Errorf("failed to scan valuation point: %w", err)
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating valuation history: %w", err)
	}

	return points, nil
}

// GetReturnSeries returns the token's daily return series since the given
// time, ascending by timestamp.
func (r *AnalyticsRepository) GetReturnSeries(ctx context.Context, tokenID string, since time.Time) ([]models.ReturnPoint, error) {
	query := `
		SELECT timestamp, daily_return
		FROM token_returns
		WHERE token_id = $1 AND timestamp >= $2
		ORDER BY timestamp ASC
	`

	rows, err := r.pool.Query(ctx, query, tokenID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get return series: %w", err)
	}
	defer rows.Close()

	var points []models.ReturnPoint
	for rows.Next() {
		var point models.ReturnPoint
		if err := rows.Scan(&point.Timestamp, &point.Value); err != nil {
			return nil, fmt.Errorf("failed to scan return point: %w", err)
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating return series: %w", err)
	}

	return points, nil
}

// GetTransactionHistory returns the wallet's transaction history for an
// asset, ascending by timestamp, ready for cost-basis replay.
func (r *AnalyticsRepository) GetTransactionHistory(ctx context.Context, walletID, assetID string) ([]models.Transaction, error) {
	query := `
		SELECT wallet_id, asset_id, type, quantity, price_usd, timestamp, incoming
		FROM transactions
		WHERE wallet_id = $1 AND asset_id = $2
		ORDER BY timestamp ASC
	`

	rows, err := r.pool.Query(ctx, query, walletID, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer rows.Close()

	var history []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var rawType string
		err := rows.Scan(&tx.WalletID, &tx.AssetID, &rawType, &tx.Quantity, &tx.PriceUSD, &tx.Timestamp, &tx.Incoming)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txType, ok := models.ParseTransactionType(rawType)
		if !ok {
			return nil, fmt.Errorf("unknown transaction type %q for wallet %s", rawType, walletID)
		}
		tx.Type = txType
		history = append(history, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return history, nil
}

// GetProtocolValues returns the current USD value held per protocol for a
// portfolio.
func (r *AnalyticsRepository) GetProtocolValues(ctx context.Context, portfolioID string) (map[string]float64, error) {
	query := `
		SELECT protocol_id, SUM(usd_value)
		FROM protocol_positions
		WHERE portfolio_id = $1
		GROUP BY protocol_id
	`

	rows, err := r.pool.Query(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to get protocol values: %w", err)
	}
	defer rows.Close()

	values := make(map[string]float64)
	for rows.Next() {
		var protocolID string
		var value float64
		if err := rows.Scan(&protocolID, &value); err != nil {
			return nil, fmt.Errorf("failed to scan protocol value: %w", err)
		}
		values[protocolID] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating protocol values: %w", err)
	}

	return values, nil
}

// GetTrackedTokens returns the tokens the portfolio currently holds.
func (r *AnalyticsRepository) GetTrackedTokens(ctx context.Context, portfolioID string) ([]string, error) {
	query := `
		SELECT DISTINCT token_id
		FROM portfolio_holdings
		WHERE portfolio_id = $1
		ORDER BY token_id
	`

	rows, err := r.pool.Query(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tracked tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan token id: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracked tokens: %w", err)
	}

	return tokens, nil
}

// UpsertPerformanceMetric writes one metric row keyed by (scope, timeframe).
func (r *AnalyticsRepository) UpsertPerformanceMetric(ctx context.Context, metric *models.PerformanceMetric) error {
	query := `
		INSERT INTO performance_metrics (
			id, scope, timeframe, total_return, return_pct, volatility,
			sharpe_ratio, max_drawdown, win_rate, sample_size, computed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (scope, timeframe)
		DO UPDATE SET
			total_return = EXCLUDED.total_return,
			return_pct = EXCLUDED.return_pct,
			volatility = EXCLUDED.volatility,
			sharpe_ratio = EXCLUDED.sharpe_ratio,
			max_drawdown = EXCLUDED.max_drawdown,
			win_rate = EXCLUDED.win_rate,
			sample_size = EXCLUDED.sample_size,
			computed_at = EXCLUDED.computed_at
	`

	_, err := r.pool.Exec(ctx, query,
		metric.ID,
		metric.Scope,
		metric.Timeframe.String(),
		metric.TotalReturn,
		metric.ReturnPct,
		metric.Volatility,
		metric.SharpeRatio,
		metric.MaxDrawdown,
		metric.WinRate,
		metric.SampleSize,
		metric.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert performance metric: %w", err)
	}

	return nil
}

// UpsertCorrelationPair writes one correlation row keyed by the canonical
// (token_a, token_b) ordering.
func (r *AnalyticsRepository) UpsertCorrelationPair(ctx context.Context, pair *models.CorrelationPair) error {
	query := `
		INSERT INTO token_correlations (
			token_a, token_b, coefficient, p_value, sample_size, significant, computed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (token_a, token_b)
		DO UPDATE SET
			coefficient = EXCLUDED.coefficient,
			p_value = EXCLUDED.p_value,
			sample_size = EXCLUDED.sample_size,
			significant = EXCLUDED.significant,
			computed_at = EXCLUDED.computed_at
	`

	_, err := r.pool.Exec(ctx, query,
		pair.TokenA,
		pair.TokenB,
		pair.Coefficient,
		pair.PValue,
		pair.SampleSize,
		pair.Significant,
		pair.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert correlation pair: %w", err)
	}

	return nil
}

// UpsertVolatilityProfile writes one profile row keyed by scope.
func (r *AnalyticsRepository) UpsertVolatilityProfile(ctx context.Context, profile *models.VolatilityProfile) error {
	query := `
		INSERT INTO volatility_profiles (
			scope, upside_deviation, downside_deviation, rolling_volatility, risk_category, computed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (scope)
		DO UPDATE SET
			upside_deviation = EXCLUDED.upside_deviation,
			downside_deviation = EXCLUDED.downside_deviation,
			rolling_volatility = EXCLUDED.rolling_volatility,
			risk_category = EXCLUDED.risk_category,
			computed_at = EXCLUDED.computed_at
	`

	_, err := r.pool.Exec(ctx, query,
		profile.Scope,
		profile.UpsideDeviation,
		profile.DownsideDeviation,
		profile.RollingVolatility,
		profile.RiskCategory.String(),
		profile.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert volatility profile: %w", err)
	}

	return nil
}

// UpsertExposureAssessment writes one assessment row keyed by protocol.
func (r *AnalyticsRepository) UpsertExposureAssessment(ctx context.Context, assessment *models.ExposureAssessment) error {
	query := `
		INSERT INTO exposure_assessments (
			protocol_id, concentration_pct, risk_level, recommended_allocation_pct, computed_at
		)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (protocol_id)
		DO UPDATE SET
			concentration_pct = EXCLUDED.concentration_pct,
			risk_level = EXCLUDED.risk_level,
			recommended_allocation_pct = EXCLUDED.recommended_allocation_pct,
			computed_at = EXCLUDED.computed_at
	`

	_, err := r.pool.Exec(ctx, query,
		assessment.ProtocolID,
		assessment.ConcentrationPct,
		assessment.RiskLevel.String(),
		assessment.RecommendedAllocationPct,
		assessment.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert exposure assessment: %w", err)
	}

	return nil
}

// UpsertDiversificationScore writes one score row keyed by portfolio.
func (r *AnalyticsRepository) UpsertDiversificationScore(ctx context.Context, score *models.DiversificationScore) error {
	query := `
		INSERT INTO diversification_scores (portfolio_id, score, run_id, computed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (portfolio_id)
		DO UPDATE SET
			score = EXCLUDED.score,
			run_id = EXCLUDED.run_id,
			computed_at = EXCLUDED.computed_at
	`

	_, err := r.pool.Exec(ctx, query,
		score.PortfolioID,
		score.Score,
		score.RunID,
		score.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert diversification score: %w", err)
	}

	return nil
}
