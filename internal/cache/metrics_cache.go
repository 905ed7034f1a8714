package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/chainfolio/chainfolio-go/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// MetricsCacheStats tracks cache performance counters.
type MetricsCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.RWMutex
}

// RedisMetricsCache keeps the latest performance metric per (scope,
// timeframe) in Redis so API reads between batch runs skip the database.
// Entries expire on their own; the batch runner refreshes them on every
// recomputation.
type RedisMetricsCache struct {
	redis  *redis.Client
	ttl    time.Duration
	stats  *MetricsCacheStats
	prefix string
	logger *logrus.Logger
}

// NewRedisMetricsCache creates a Redis-backed metrics cache.
func NewRedisMetricsCache(redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisMetricsCache {
	return &RedisMetricsCache{
		redis:  redisClient,
		ttl:    ttl,
		stats:  &MetricsCacheStats{},
		prefix: "metrics_cache:",
		logger: logger,
	}
}

func (c *RedisMetricsCache) key(scope string, timeframe models.Timeframe) string {
	return c.prefix + scope + ":" + timeframe.String()
}

// Get retrieves the cached metric for a scope and timeframe. A missing key,
// Redis error, or corrupt entry all count as a miss.
func (c *RedisMetricsCache) Get(ctx context.Context, scope string, timeframe models.Timeframe) (*models.PerformanceMetric, bool) {
	data, err := c.redis.Get(ctx, c.key(scope, timeframe)).Result()
	if err == redis.Nil {
		c.recordMiss()
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("scope", scope).Warn("Redis error reading cached metric")
		c.recordMiss()
		return nil, false
	}

	var metric models.PerformanceMetric
	if err := json.Unmarshal([]byte(data), &metric); err != nil {
		c.logger.WithError(err).WithField("scope", scope).Warn("Failed to decode cached metric")
		c.recordMiss()
		return nil, false
	}

	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()

	return &metric, true
}

// Set stores a metric under its scope and timeframe with the configured TTL.
func (c *RedisMetricsCache) Set(ctx context.Context, metric *models.PerformanceMetric) error {
	data, err := json.Marshal(metric)
	if err != nil {
		return err
	}

	if err := c.redis.Set(ctx, c.key(metric.Scope, metric.Timeframe), data, c.ttl).Err(); err != nil {
		return err
	}

	c.stats.mu.Lock()
	c.stats.Sets++
	c.stats.mu.Unlock()

	return nil
}

// Stats returns a snapshot of the cache counters.
func (c *RedisMetricsCache) Stats() MetricsCacheStats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()
	return MetricsCacheStats{
		Hits:   c.stats.Hits,
		Misses: c.stats.Misses,
		Sets:   c.stats.Sets,
	}
}

// Clear removes every cached metric. Used by tests and manual invalidation.
func (c *RedisMetricsCache) Clear(ctx context.Context) error {
	var keys []string
	iter := c.redis.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...).Err()
}

func (c *RedisMetricsCache) recordMiss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}
