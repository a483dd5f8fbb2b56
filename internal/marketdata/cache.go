package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"jax-trading-assistant/internal/domain"
)

// CacheConfig mirrors the Redis read-through cache configuration used
// throughout the pack for market-data caching.
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func (c CacheConfig) applyDefaults() CacheConfig {
	if c.TTL == 0 {
		c.TTL = 5 * time.Minute
	}
	return c
}

// Cache is a Redis-backed read-through cache in front of the Postgres bar
// store, keyed by (symbol, timeframe, timestamp) per §6.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache connects to Redis and verifies the connection with a ping.
func NewCache(ctx context.Context, cfg CacheConfig) (*Cache, error) {
	cfg = cfg.applyDefaults()
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("marketdata: redis ping: %w", err)
	}
	return &Cache{client: client, ttl: cfg.TTL}, nil
}

func barKey(symbol string, tf domain.Timeframe, ts int64) string {
	return fmt.Sprintf("bar:%s:%s:%d", symbol, tf, ts)
}

// Get returns a cached bar for (symbol, timeframe, timestamp), if present.
func (c *Cache) Get(ctx context.Context, symbol string, tf domain.Timeframe, ts int64) (domain.Bar, bool, error) {
	raw, err := c.client.Get(ctx, barKey(symbol, tf, ts)).Bytes()
	if err == redis.Nil {
		return domain.Bar{}, false, nil
	}
	if err != nil {
		return domain.Bar{}, false, fmt.Errorf("marketdata: cache get: %w", err)
	}
	var bar domain.Bar
	if err := json.Unmarshal(raw, &bar); err != nil {
		return domain.Bar{}, false, fmt.Errorf("marketdata: cache decode: %w", err)
	}
	return bar, true, nil
}

// Set upserts a bar into the cache. TTL doubles for sub-daily timeframes
// with high query churn, and is extended to 24h for daily bars, mirroring
// the pack's own cache-tuning rationale for candle data versus quotes.
func (c *Cache) Set(ctx context.Context, bar domain.Bar) error {
	ttl := c.ttl
	if bar.Timeframe == domain.Timeframe1Day {
		ttl = 24 * time.Hour
	} else {
		ttl *= 2
	}
	raw, err := json.Marshal(bar)
	if err != nil {
		return fmt.Errorf("marketdata: cache encode: %w", err)
	}
	if err := c.client.Set(ctx, barKey(bar.Symbol, bar.Timeframe, bar.Timestamp.Unix()), raw, ttl).Err(); err != nil {
		return fmt.Errorf("marketdata: cache set: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
