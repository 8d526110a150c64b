package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/dgirardi/thawcast-go/internal/database"
	"github.com/dgirardi/thawcast-go/internal/models"
)

// ForecastCacheEntry wraps a cached batch entry with metadata.
type ForecastCacheEntry struct {
	Entry    models.BatchEntry `json:"entry"`
	CachedAt time.Time         `json:"cached_at"`
}

// ForecastCacheStats is a point-in-time snapshot of the cache counters.
type ForecastCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
}

type cacheCounters struct {
	mu     sync.Mutex
	hits   int64
	misses int64
	sets   int64
}

// ForecastCache stores finished per-product forecasts in Redis so repeated
// requests within the TTL skip retraining. Entries are keyed by a digest of
// the submitted sales history as well as product/strategy/horizon: a new
// upload for the same product never serves the previous upload's forecast.
type ForecastCache struct {
	redis    *database.RedisClient
	ttl      time.Duration
	counters cacheCounters
	prefix   string
	logger   *logrus.Logger
}

// NewForecastCache creates a Redis-backed forecast cache.
func NewForecastCache(redisClient *database.RedisClient, ttl time.Duration, logger *logrus.Logger) *ForecastCache {
	return &ForecastCache{
		redis:  redisClient,
		ttl:    ttl,
		prefix: "forecast_cache:",
		logger: logger,
	}
}

// key identifies a cached forecast: the same product with a different
// strategy, horizon, or input history is a different entry.
func (c *ForecastCache) key(sku int64, strategy string, horizonDays int, historyDigest string) string {
	return fmt.Sprintf("%s%d:%s:%d:%s", c.prefix, sku, strategy, horizonDays, historyDigest)
}

// Get retrieves a cached forecast, reporting whether it was present.
func (c *ForecastCache) Get(ctx context.Context, sku int64, strategy string, horizonDays int, historyDigest string) (models.BatchEntry, bool) {
	data, err := c.redis.Get(ctx, c.key(sku, strategy, horizonDays, historyDigest))
	if errors.Is(err, redis.Nil) {
		c.miss()
		return models.BatchEntry{}, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("product_id", sku).Warn("Forecast cache read failed")
		c.miss()
		return models.BatchEntry{}, false
	}

	var entry ForecastCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.logger.WithError(err).WithField("product_id", sku).Warn("Forecast cache entry corrupt")
		c.miss()
		return models.BatchEntry{}, false
	}

	c.counters.mu.Lock()
	c.counters.hits++
	c.counters.mu.Unlock()
	return entry.Entry, true
}

// Set stores a forecast with the cache TTL. Failures are logged and ignored:
// the cache is an optimization, never a source of truth.
func (c *ForecastCache) Set(ctx context.Context, strategy string, horizonDays int, historyDigest string, entry models.BatchEntry) {
	payload, err := json.Marshal(ForecastCacheEntry{Entry: entry, CachedAt: time.Now()})
	if err != nil {
		c.logger.WithError(err).WithField("product_id", entry.SKU).Warn("Forecast cache encode failed")
		return
	}

	if err := c.redis.Set(ctx, c.key(entry.SKU, strategy, horizonDays, historyDigest), payload, c.ttl); err != nil {
		c.logger.WithError(err).WithField("product_id", entry.SKU).Warn("Forecast cache write failed")
		return
	}

	c.counters.mu.Lock()
	c.counters.sets++
	c.counters.mu.Unlock()
}

// Invalidate drops every cached forecast for one product, across strategies,
// horizons, and uploads.
func (c *ForecastCache) Invalidate(ctx context.Context, sku int64) error {
	pattern := fmt.Sprintf("%s%d:*", c.prefix, sku)
	keys, err := c.redis.Keys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("failed to scan forecast cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Delete(ctx, keys...)
}

// Stats returns a snapshot of the cache counters.
func (c *ForecastCache) Stats() ForecastCacheStats {
	c.counters.mu.Lock()
	defer c.counters.mu.Unlock()
	return ForecastCacheStats{Hits: c.counters.hits, Misses: c.counters.misses, Sets: c.counters.sets}
}

func (c *ForecastCache) miss() {
	c.counters.mu.Lock()
	c.counters.misses++
	c.counters.mu.Unlock()
}
