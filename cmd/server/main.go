package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainfolio/chainfolio-go/internal/api"
	"github.com/chainfolio/chainfolio-go/internal/api/handlers"
	"github.com/chainfolio/chainfolio-go/internal/cache"
	"github.com/chainfolio/chainfolio-go/internal/config"
	"github.com/chainfolio/chainfolio-go/internal/database"
	"github.com/chainfolio/chainfolio-go/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Redis
	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	repo := database.NewAnalyticsRepository(db.Pool)

	cacheTTL := 5 * time.Minute
	if cfg.Analytics.CacheTTL != "" {
		parsed, err := time.ParseDuration(cfg.Analytics.CacheTTL)
		if err != nil {
			logger.Fatalf("Invalid analytics cache TTL: %v", err)
		}
		cacheTTL = parsed
	}
	metricsCache := cache.NewRedisMetricsCache(redis.Client, cacheTTL, logger)

	perf := services.NewPerformanceCalculator(cfg.Analytics)
	risk := services.NewRiskEngine(cfg.Risk, cfg.Analytics)

	runner, err := services.NewAnalyticsRunner(cfg, repo, metricsCache, perf, risk, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize analytics runner: %v", err)
	}
	runner.Start()
	defer runner.Stop()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin router
	router := gin.Default()
	api.SetupRoutes(router, db, redis, handlers.NewAnalyticsHandler(repo, metricsCache, perf, risk, logger))

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
