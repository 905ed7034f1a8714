package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Analytics   AnalyticsConfig `mapstructure:"analytics"`
	Risk        RiskConfig      `mapstructure:"risk"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	DatabaseURL  string `mapstructure:"database_url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AnalyticsConfig drives the performance metrics engine and the batch runner.
type AnalyticsConfig struct {
	// AnnualizationDays is the day-count used to annualize volatility.
	AnnualizationDays int `mapstructure:"annualization_days"`
	// Timeframes is the enumerated set of reporting windows to recompute.
	Timeframes []string `mapstructure:"timeframes"`
	// RecomputeInterval is how often the batch runner recomputes, e.g. "15m".
	RecomputeInterval string `mapstructure:"recompute_interval"`
	// CacheTTL is the TTL for cached performance metrics, e.g. "5m".
	CacheTTL string `mapstructure:"cache_ttl"`
}

// RiskConfig drives the risk and correlation engine.
type RiskConfig struct {
	// MinSampleSize is the minimum aligned sample required for a
	// correlation to be reported as significant at all.
	MinSampleSize int `mapstructure:"min_sample_size"`
	// SignificanceLevel is the p-value cutoff for correlation significance.
	SignificanceLevel float64 `mapstructure:"significance_level"`
	// RollingWindow is the number of most recent returns in the rolling
	// volatility window.
	RollingWindow int `mapstructure:"rolling_window"`
	// Volatility risk thresholds, as annualized fractions (0.2 = 20%).
	VolatilityMediumThreshold   float64 `mapstructure:"volatility_medium_threshold"`
	VolatilityHighThreshold     float64 `mapstructure:"volatility_high_threshold"`
	VolatilityCriticalThreshold float64 `mapstructure:"volatility_critical_threshold"`
	// Concentration risk thresholds, as portfolio fractions.
	ConcentrationMediumThreshold   float64 `mapstructure:"concentration_medium_threshold"`
	ConcentrationHighThreshold     float64 `mapstructure:"concentration_high_threshold"`
	ConcentrationCriticalThreshold float64 `mapstructure:"concentration_critical_threshold"`
	// Recommended allocation caps per risk level, as portfolio fractions.
	AllocationCapLow      float64 `mapstructure:"allocation_cap_low"`
	AllocationCapMedium   float64 `mapstructure:"allocation_cap_medium"`
	AllocationCapHigh     float64 `mapstructure:"allocation_cap_high"`
	AllocationCapCritical float64 `mapstructure:"allocation_cap_critical"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(cfg *Config) error {
	if cfg.Analytics.AnnualizationDays <= 0 {
		return fmt.Errorf("analytics annualization_days must be positive, got %d", cfg.Analytics.AnnualizationDays)
	}
	if cfg.Risk.MinSampleSize < 3 {
		return fmt.Errorf("risk min_sample_size must be at least 3, got %d", cfg.Risk.MinSampleSize)
	}
	if cfg.Risk.SignificanceLevel <= 0 || cfg.Risk.SignificanceLevel >= 1 {
		return fmt.Errorf("risk significance_level must be in (0, 1), got %g", cfg.Risk.SignificanceLevel)
	}
	if cfg.Risk.RollingWindow < 2 {
		return fmt.Errorf("risk rolling_window must be at least 2, got %d", cfg.Risk.RollingWindow)
	}
	return nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "chainfolio")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Analytics
	viper.SetDefault("analytics.annualization_days", 365)
	viper.SetDefault("analytics.timeframes", []string{"24h", "7d", "30d", "90d", "1y", "all"})
	viper.SetDefault("analytics.recompute_interval", "15m")
	viper.SetDefault("analytics.cache_ttl", "5m")

	// Risk
	viper.SetDefault("risk.min_sample_size", 10)
	viper.SetDefault("risk.significance_level", 0.05)
	viper.SetDefault("risk.rolling_window", 30)
	viper.SetDefault("risk.volatility_medium_threshold", 0.2)
	viper.SetDefault("risk.volatility_high_threshold", 0.5)
	viper.SetDefault("risk.volatility_critical_threshold", 1.0)
	viper.SetDefault("risk.concentration_medium_threshold", 0.10)
	viper.SetDefault("risk.concentration_high_threshold", 0.25)
	viper.SetDefault("risk.concentration_critical_threshold", 0.50)
	viper.SetDefault("risk.allocation_cap_low", 0.25)
	viper.SetDefault("risk.allocation_cap_medium", 0.15)
	viper.SetDefault("risk.allocation_cap_high", 0.10)
	viper.SetDefault("risk.allocation_cap_critical", 0.05)
}
