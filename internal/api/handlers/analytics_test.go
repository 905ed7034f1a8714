package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chainfolio/chainfolio-go/internal/config"
	"github.com/chainfolio/chainfolio-go/internal/models"
	"github.com/chainfolio/chainfolio-go/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepository struct {
	valuations   map[string][]models.ValuationPoint
	returns      map[string][]models.ReturnPoint
	tokens       map[string][]string
	protocols    map[string]map[string]float64
	transactions map[string][]models.Transaction
}

func (s *stubRepository) ListPortfolioIDs(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (s *stubRepository) GetValuationHistory(ctx context.Context, portfolioID string, since time.Time) ([]models.ValuationPoint, error) {
	return s.valuations[portfolioID], nil
}

func (s *stubRepository) GetReturnSeries(ctx context.Context, tokenID string, since time.Time) ([]models.ReturnPoint, error) {
	return s.returns[tokenID], nil
}

func (s *stubRepository) GetTransactionHistory(ctx context.Context, walletID, assetID string) ([]models.Transaction, error) {
	return s.transactions[walletID+":"+assetID], nil
}

func (s *stubRepository) GetProtocolValues(ctx context.Context, portfolioID string) (map[string]float64, error) {
	return s.protocols[portfolioID], nil
}

func (s *stubRepository) GetTrackedTokens(ctx context.Context, portfolioID string) ([]string, error) {
	return s.tokens[portfolioID], nil
}

func (s *stubRepository) UpsertPerformanceMetric(ctx context.Context, metric *models.PerformanceMetric) error {
	return nil
}

func (s *stubRepository) UpsertCorrelationPair(ctx context.Context, pair *models.CorrelationPair) error {
	return nil
}

func (s *stubRepository) UpsertVolatilityProfile(ctx context.Context, profile *models.VolatilityProfile) error {
	return nil
}

func (s *stubRepository) UpsertExposureAssessment(ctx context.Context, assessment *models.ExposureAssessment) error {
	return nil
}

func (s *stubRepository) UpsertDiversificationScore(ctx context.Context, score *models.DiversificationScore) error {
	return nil
}

type mapCache struct {
	entries map[string]*models.PerformanceMetric
}

func (c *mapCache) Get(ctx context.Context, scope string, timeframe models.Timeframe) (*models.PerformanceMetric, bool) {
	metric, ok := c.entries[scope+":"+timeframe.String()]
	return metric, ok
}

func (c *mapCache) Set(ctx context.Context, metric *models.PerformanceMetric) error {
	c.entries[metric.Scope+":"+metric.Timeframe.String()] = metric
	return nil
}

func newTestRouter(t *testing.T, repo *stubRepository, cache services.MetricsCache) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	analyticsCfg := config.AnalyticsConfig{AnnualizationDays: 365}
	riskCfg := config.RiskConfig{
		MinSampleSize:                  3,
		SignificanceLevel:              0.05,
		RollingWindow:                  30,
		VolatilityMediumThreshold:      0.2,
		VolatilityHighThreshold:        0.5,
		VolatilityCriticalThreshold:    1.0,
		ConcentrationMediumThreshold:   0.10,
		ConcentrationHighThreshold:     0.25,
		ConcentrationCriticalThreshold: 0.50,
		AllocationCapLow:               0.25,
		AllocationCapMedium:            0.15,
		AllocationCapHigh:              0.10,
		AllocationCapCritical:          0.05,
	}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	handler := NewAnalyticsHandler(
		repo,
		cache,
		services.NewPerformanceCalculator(analyticsCfg),
		services.NewRiskEngine(riskCfg, analyticsCfg),
		logger,
	)

	router := gin.New()
	v1 := router.Group("/api/v1")
	portfolio := v1.Group("/portfolio")
	portfolio.GET("/:id/performance", handler.GetPerformance)
	portfolio.GET("/:id/pnl", handler.GetPnL)
	portfolio.GET("/:id/diversification", handler.GetDiversification)
	v1.GET("/risk/correlation", handler.GetCorrelation)

	return router
}

func stubData() *stubRepository {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	valuations := make([]models.ValuationPoint, 0, 10)
	values := []float64{1000, 1100, 1050, 1200, 1150, 1250, 1300, 1280, 1350, 1400}
	for i, v := range values {
		valuations = append(valuations, models.ValuationPoint{
			Timestamp: start.Add(time.Duration(i) * 24 * time.Hour),
			Value:     v,
		})
	}

	returnsFor := func(values ...float64) []models.ReturnPoint {
		points := make([]models.ReturnPoint, len(values))
		for i, v := range values {
			points[i] = models.ReturnPoint{
				Timestamp: start.Add(time.Duration(i) * 24 * time.Hour),
				Value:     v,
			}
		}
		return points
	}

	return &stubRepository{
		valuations: map[string][]models.ValuationPoint{"p1": valuations},
		returns: map[string][]models.ReturnPoint{
			"BTC": returnsFor(0.01, -0.02, 0.03, 0.015, -0.005),
			"ETH": returnsFor(0.02, -0.01, 0.025, 0.01, 0.005),
		},
		tokens:    map[string][]string{"p1": {"BTC", "ETH"}},
		protocols: map[string]map[string]float64{"p1": {"aave": 4000, "uniswap": 6000}},
		transactions: map[string][]models.Transaction{
			"w1:BTC": {
				{
					WalletID:  "w1",
					AssetID:   "BTC",
					Type:      models.TransactionBuy,
					Quantity:  decimal.NewFromInt(2),
					PriceUSD:  decimal.NewFromInt(50000),
					Timestamp: start,
				},
				{
					WalletID:  "w1",
					AssetID:   "BTC",
					Type:      models.TransactionSell,
					Quantity:  decimal.NewFromInt(1),
					PriceUSD:  decimal.NewFromInt(60000),
					Timestamp: start.Add(24 * time.Hour),
				},
			},
			"w2:BTC": {
				{
					WalletID:  "w2",
					AssetID:   "BTC",
					Type:      models.TransactionSell,
					Quantity:  decimal.NewFromInt(1),
					PriceUSD:  decimal.NewFromInt(60000),
					Timestamp: start,
				},
			},
		},
	}
}

func TestGetPerformance(t *testing.T) {
	router := newTestRouter(t, stubData(), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/p1/performance?timeframe=all", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp PerformanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Cached)
	require.NotNil(t, resp.Metric)
	assert.Equal(t, "portfolio:p1", resp.Metric.Scope)
	assert.InDelta(t, 400.0, resp.Metric.TotalReturn, 1e-9)
	assert.Equal(t, 10, resp.Metric.SampleSize)
}

func TestGetPerformanceCached(t *testing.T) {
	cache := &mapCache{entries: make(map[string]*models.PerformanceMetric)}
	router := newTestRouter(t, stubData(), cache)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/p1/performance?timeframe=all", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/p1/performance?timeframe=all", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp PerformanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
}

func TestGetPerformanceBadTimeframe(t *testing.T) {
	router := newTestRouter(t, stubData(), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/p1/performance?timeframe=fortnight", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPnL(t *testing.T) {
	router := newTestRouter(t, stubData(), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/p1/pnl?wallet=w1&asset=BTC", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp PnLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.RealizedPnL.Equal(decimal.NewFromInt(10000)), "realized pnl %s", resp.RealizedPnL)
	assert.True(t, resp.RemainingQuantity.Equal(decimal.NewFromInt(1)))
	assert.True(t, resp.TotalCostBasis.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, 1, resp.OpenLots)
}

func TestGetPnLMissingParams(t *testing.T) {
	router := newTestRouter(t, stubData(), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/p1/pnl?wallet=w1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPnLOversoldHistory(t *testing.T) {
	router := newTestRouter(t, stubData(), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/p1/pnl?wallet=w2&asset=BTC", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetDiversification(t *testing.T) {
	router := newTestRouter(t, stubData(), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/p1/diversification", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp DiversificationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Score)
	assert.Equal(t, "p1", resp.Score.PortfolioID)
	assert.GreaterOrEqual(t, resp.Score.Score, 0.0)
	assert.LessOrEqual(t, resp.Score.Score, 100.0)
	assert.Len(t, resp.Pairs, 1)
}

func TestGetCorrelation(t *testing.T) {
	router := newTestRouter(t, stubData(), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/risk/correlation?token_a=ETH&token_b=BTC", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var pair models.CorrelationPair
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pair))
	// Canonical ordering holds regardless of query order.
	assert.Equal(t, "BTC", pair.TokenA)
	assert.Equal(t, "ETH", pair.TokenB)
	assert.Equal(t, 5, pair.SampleSize)
	require.NotNil(t, pair.Coefficient)
	assert.GreaterOrEqual(t, *pair.Coefficient, -1.0)
	assert.LessOrEqual(t, *pair.Coefficient, 1.0)
}

func TestGetCorrelationBadRequest(t *testing.T) {
	router := newTestRouter(t, stubData(), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/risk/correlation?token_a=BTC&token_b=BTC", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
