package models

import (
	"time"

	"github.com/google/uuid"
)

// PerformanceMetric holds the return/risk statistics for one scope and
// timeframe. Recomputation upserts by (scope, timeframe); superseded rows
// are overwritten, never appended. Nullable statistics are pointers so an
// "insufficient data" state is explicit rather than a NaN.
type PerformanceMetric struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Scope       string    `json:"scope" db:"scope"`
	Timeframe   Timeframe `json:"timeframe" db:"timeframe"`
	TotalReturn float64   `json:"total_return" db:"total_return"`
	ReturnPct   *float64  `json:"return_pct" db:"return_pct"`
	Volatility  float64   `json:"volatility" db:"volatility"`
	SharpeRatio *float64  `json:"sharpe_ratio" db:"sharpe_ratio"`
	MaxDrawdown float64   `json:"max_drawdown" db:"max_drawdown"`
	WinRate     float64   `json:"win_rate" db:"win_rate"`
	SampleSize  int       `json:"sample_size" db:"sample_size"`
	ComputedAt  time.Time `json:"computed_at" db:"computed_at"`
}

// TokenPriceChange is one row of a price-change ranking.
type TokenPriceChange struct {
	TokenID    string    `json:"token_id"`
	Timeframe  Timeframe `json:"timeframe"`
	ChangePct  float64   `json:"change_pct"`
	FirstPrice float64   `json:"first_price"`
	LastPrice  float64   `json:"last_price"`
}
