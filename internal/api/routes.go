package api

import (
	"net/http"
	"time"

	"github.com/chainfolio/chainfolio-go/internal/api/handlers"
	"github.com/chainfolio/chainfolio-go/internal/database"
	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Services  Services  `json:"services"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

func SetupRoutes(router *gin.Engine, db *database.PostgresDB, redis *database.RedisClient, analytics *handlers.AnalyticsHandler) {
	// Health check endpoint
	router.GET("/health", healthCheck(db, redis))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Portfolio analytics routes
		portfolio := v1.Group("/portfolio")
		{
			portfolio.GET("/:id/performance", analytics.GetPerformance)
			portfolio.GET("/:id/pnl", analytics.GetPnL)
			portfolio.GET("/:id/diversification", analytics.GetDiversification)
		}

		// Risk routes
		risk := v1.Group("/risk")
		{
			risk.GET("/correlation", analytics.GetCorrelation)
		}
	}
}

func healthCheck(db *database.PostgresDB, redis *database.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Services: Services{
				Database: "ok",
				Redis:    "ok",
			},
		}

		// Check database health
		if err := db.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Database = "error"
			response.Status = "degraded"
		}

		// Check Redis health
		if err := redis.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Redis = "error"
			response.Status = "degraded"
		}

		statusCode := http.StatusOK
		if response.Status == "degraded" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, response)
	}
}
