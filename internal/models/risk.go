package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RiskLevel is the closed set of risk categories assigned to volatility
// profiles and concentration exposures.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseRiskLevel converts the stored representation into a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch s {
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	case "critical":
		return RiskCritical, nil
	default:
		return 0, fmt.Errorf("unknown risk level: %q", s)
	}
}

// MarshalJSON encodes the risk level as its string form.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// UnmarshalJSON decodes the string form of a risk level.
func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid risk level JSON: %s", data)
	}
	parsed, err := ParseRiskLevel(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// CorrelationPair is the result of correlating two tokens' return series.
// TokenA and TokenB are stored in canonical lexicographic order so the
// symmetric result is persisted exactly once. Coefficient and PValue are
// nil when the aligned sample is too small or either series is constant.
type CorrelationPair struct {
	TokenA      string    `json:"token_a" db:"token_a"`
	TokenB      string    `json:"token_b" db:"token_b"`
	Coefficient *float64  `json:"coefficient" db:"coefficient"`
	PValue      *float64  `json:"p_value" db:"p_value"`
	SampleSize  int       `json:"sample_size" db:"sample_size"`
	Significant bool      `json:"significant" db:"significant"`
	ComputedAt  time.Time `json:"computed_at" db:"computed_at"`
}

// VolatilityProfile decomposes the volatility of one scope.
type VolatilityProfile struct {
	Scope             string    `json:"scope" db:"scope"`
	UpsideDeviation   float64   `json:"upside_deviation" db:"upside_deviation"`
	DownsideDeviation float64   `json:"downside_deviation" db:"downside_deviation"`
	RollingVolatility float64   `json:"rolling_volatility" db:"rolling_volatility"`
	RiskCategory      RiskLevel `json:"risk_category" db:"risk_category"`
	ComputedAt        time.Time `json:"computed_at" db:"computed_at"`
}

// ExposureAssessment grades the concentration of one protocol position.
type ExposureAssessment struct {
	ProtocolID               string    `json:"protocol_id" db:"protocol_id"`
	ConcentrationPct         float64   `json:"concentration_pct" db:"concentration_pct"`
	RiskLevel                RiskLevel `json:"risk_level" db:"risk_level"`
	RecommendedAllocationPct float64   `json:"recommended_allocation_pct" db:"recommended_allocation_pct"`
	ComputedAt               time.Time `json:"computed_at" db:"computed_at"`
}

// DiversificationScore grades how uncorrelated and evenly distributed a
// portfolio is, on a 0-100 scale.
type DiversificationScore struct {
	PortfolioID string    `json:"portfolio_id" db:"portfolio_id"`
	Score       float64   `json:"score" db:"score"`
	RunID       uuid.UUID `json:"run_id" db:"run_id"`
	ComputedAt  time.Time `json:"computed_at" db:"computed_at"`
}
