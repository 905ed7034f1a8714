package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/chainfolio/chainfolio-go/internal/models"
	"github.com/chainfolio/chainfolio-go/internal/services"
	"github.com/chainfolio/chainfolio-go/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AnalyticsHandler serves read access to the analytics products. Heavy
// recomputation happens in the batch runner; handlers either read the
// cache or compute over a single pre-fetched series.
type AnalyticsHandler struct {
	repo   services.AnalyticsRepository
	cache  services.MetricsCache
	perf   *services.PerformanceCalculator
	risk   *services.RiskEngine
	logger *logrus.Logger
}

// NewAnalyticsHandler creates the handler with its injected collaborators.
func NewAnalyticsHandler(
	repo services.AnalyticsRepository,
	cache services.MetricsCache,
	perf *services.PerformanceCalculator,
	risk *services.RiskEngine,
	logger *logrus.Logger,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		repo:   repo,
		cache:  cache,
		perf:   perf,
		risk:   risk,
		logger: logger,
	}
}

// PerformanceResponse wraps one metric with its cache provenance.
type PerformanceResponse struct {
	Metric *models.PerformanceMetric `json:"metric"`
	Cached bool                      `json:"cached"`
}

// GetPerformance returns the performance metric for a portfolio and
// timeframe, served from cache when the batch runner has populated it.
func (h *AnalyticsHandler) GetPerformance(c *gin.Context) {
	portfolioID := c.Param("id")

	timeframe, err := models.ParseTimeframe(c.DefaultQuery("timeframe", "30d"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scope := "portfolio:" + portfolioID
	if h.cache != nil {
		if metric, ok := h.cache.Get(c.Request.Context(), scope, timeframe); ok {
			c.JSON(http.StatusOK, PerformanceResponse{Metric: metric, Cached: true})
			return
		}
	}

	valuations, err := h.repo.GetValuationHistory(c.Request.Context(), portfolioID, time.Time{})
	if err != nil {
		h.logger.WithError(err).WithField("portfolio_id", portfolioID).Error("Failed to load valuations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load valuation history"})
		return
	}

	metric, err := h.perf.ComputeMetrics(scope, valuations, timeframe)
	if err != nil {
		var validationErr *utils.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).WithField("portfolio_id", portfolioID).Error("Failed to compute metrics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute metrics"})
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(c.Request.Context(), metric); err != nil {
			h.logger.WithError(err).Warn("Failed to cache computed metric")
		}
	}

	c.JSON(http.StatusOK, PerformanceResponse{Metric: metric, Cached: false})
}

// PnLResponse reports the realized and unrealized ledger state for one
// wallet and asset after a full transaction replay.
type PnLResponse struct {
	WalletID          string          `json:"wallet_id"`
	AssetID           string          `json:"asset_id"`
	RealizedPnL       decimal.Decimal `json:"realized_pnl"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	TotalCostBasis    decimal.Decimal `json:"total_cost_basis"`
	AverageCostBasis  decimal.Decimal `json:"average_cost_basis"`
	OpenLots          int             `json:"open_lots"`
}

// GetPnL replays the wallet's transaction history for an asset through a
// fresh cost-basis ledger and returns the resulting P&L state.
func (h *AnalyticsHandler) GetPnL(c *gin.Context) {
	walletID := c.Query("wallet")
	assetID := c.Query("asset")
	if walletID == "" || assetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wallet and asset query parameters are required"})
		return
	}

	history, err := h.repo.GetTransactionHistory(c.Request.Context(), walletID, assetID)
	if err != nil {
		h.logger.WithError(err).WithField("wallet_id", walletID).Error("Failed to load transactions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transaction history"})
		return
	}

	ledger := services.NewCostBasisLedger()
	realized, err := services.ReplayTransactions(ledger, history)
	if err != nil {
		// Both an oversell and a malformed transaction mean the stored
		// history cannot produce a valid ledger.
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, PnLResponse{
		WalletID:          walletID,
		AssetID:           assetID,
		RealizedPnL:       realized,
		RemainingQuantity: ledger.TotalQuantity(),
		TotalCostBasis:    ledger.TotalCostBasis(),
		AverageCostBasis:  ledger.AverageCostBasis(),
		OpenLots:          ledger.LotCount(),
	})
}

// DiversificationResponse bundles the score with the correlation pairs and
// exposure distribution it was derived from.
type DiversificationResponse struct {
	Score *models.DiversificationScore `json:"score"`
	Pairs []*models.CorrelationPair    `json:"pairs"`
}

// GetDiversification computes the portfolio's diversification score from
// its current holdings and protocol distribution.
func (h *AnalyticsHandler) GetDiversification(c *gin.Context) {
	portfolioID := c.Param("id")
	ctx := c.Request.Context()

	tokens, err := h.repo.GetTrackedTokens(ctx, portfolioID)
	if err != nil {
		h.logger.WithError(err).WithField("portfolio_id", portfolioID).Error("Failed to load tokens")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tracked tokens"})
		return
	}

	series := make(map[string][]models.ReturnPoint, len(tokens))
	for _, token := range tokens {
		points, err := h.repo.GetReturnSeries(ctx, token, time.Time{})
		if err != nil {
			h.logger.WithError(err).WithField("token_id", token).Error("Failed to load returns")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load return series"})
			return
		}
		series[token] = points
	}

	pairs, err := h.risk.CorrelationMatrix(series)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	concentrations, err := h.repo.GetProtocolValues(ctx, portfolioID)
	if err != nil {
		h.logger.WithError(err).WithField("portfolio_id", portfolioID).Error("Failed to load protocol values")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load protocol values"})
		return
	}

	score := h.risk.DiversificationScore(portfolioID, pairs, concentrations)
	c.JSON(http.StatusOK, DiversificationResponse{Score: score, Pairs: pairs})
}

// GetCorrelation computes the correlation between two tokens' return series.
func (h *AnalyticsHandler) GetCorrelation(c *gin.Context) {
	tokenA := c.Query("token_a")
	tokenB := c.Query("token_b")
	if tokenA == "" || tokenB == "" || tokenA == tokenB {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token_a and token_b must be distinct and non-empty"})
		return
	}

	ctx := c.Request.Context()
	seriesA, err := h.repo.GetReturnSeries(ctx, tokenA, time.Time{})
	if err != nil {
		h.logger.WithError(err).WithField("token_id", tokenA).Error("Failed to load returns")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load return series"})
		return
	}
	seriesB, err := h.repo.GetReturnSeries(ctx, tokenB, time.Time{})
	if err != nil {
		h.logger.WithError(err).WithField("token_id", tokenB).Error("Failed to load returns")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load return series"})
		return
	}

	pair, err := h.risk.Correlate(tokenA, tokenB, seriesA, seriesB)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, pair)
}
