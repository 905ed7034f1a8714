package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one observation of an asset's USD price.
type PricePoint struct {
	AssetID   string    `json:"asset_id" db:"asset_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	PriceUSD  float64   `json:"price_usd" db:"price_usd"`
}

// ValuationPoint is one snapshot of a portfolio's total USD value.
type ValuationPoint struct {
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Value     float64   `json:"total_usd_value" db:"total_usd_value"`
}

// ReturnPoint is one observation in a derived daily-return series.
type ReturnPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// TokenPriceSeries carries the ordered price history for one token,
// ascending by timestamp, as materialized by the ingestion jobs.
type TokenPriceSeries struct {
	TokenID string       `json:"token_id"`
	Points  []PricePoint `json:"points"`
}

// TransactionType is the closed set of ledger-relevant transaction kinds.
type TransactionType int

const (
	TransactionBuy TransactionType = iota
	TransactionSell
	TransactionTransfer
)

func (t TransactionType) String() string {
	switch t {
	case TransactionBuy:
		return "buy"
	case TransactionSell:
		return "sell"
	case TransactionTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// ParseTransactionType converts the stored representation into a TransactionType.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch s {
	case "buy":
		return TransactionBuy, true
	case "sell":
		return TransactionSell, true
	case "transfer":
		return TransactionTransfer, true
	default:
		return 0, false
	}
}

// Transaction is one entry of the on-chain transaction history used to
// reconstruct a cost-basis ledger. Quantity and price stay decimal end to
// end to avoid float drift across many small disposals.
type Transaction struct {
	WalletID  string          `json:"wallet_id" db:"wallet_id"`
	AssetID   string          `json:"asset_id" db:"asset_id"`
	Type      TransactionType `json:"type" db:"type"`
	Quantity  decimal.Decimal `json:"quantity" db:"quantity"`
	PriceUSD  decimal.Decimal `json:"price_usd" db:"price_usd"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
	// Incoming reports the direction of a transfer; ignored for buys and sells.
	Incoming bool `json:"incoming,omitempty" db:"incoming"`
}
