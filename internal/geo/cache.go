package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gyaneshwarpardhi/fraudscore/internal/metrics"
)

const cacheKeyPrefix = "geo:"

type cachedCountry struct {
	Country string `json:"country"`
	Found   bool   `json:"found"`
}

// CachedResolver memoizes another resolver's answers in Redis, misses
// included. Redis failures degrade to the inner resolver.
type CachedResolver struct {
	client redis.UniversalClient
	inner  Resolver
	ttl    time.Duration
}

// NewCachedResolver wraps inner with a Redis cache whose entries live for ttl.
func NewCachedResolver(client redis.UniversalClient, inner Resolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{client: client, inner: inner, ttl: ttl}
}

func (c *CachedResolver) Resolve(ctx context.Context, ip string) (string, bool, error) {
	key := cacheKeyPrefix + ip
	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var cc cachedCountry
		if jerr := json.Unmarshal([]byte(raw), &cc); jerr == nil {
			metrics.GeoLookups.WithLabelValues("cache", "hit").Inc()
			return cc.Country, cc.Found, nil
		}
		slog.Warn("geo cache entry unreadable", "key", key)
	case errors.Is(err, redis.Nil):
		metrics.GeoLookups.WithLabelValues("cache", "miss").Inc()
	default:
		metrics.GeoLookups.WithLabelValues("cache", "error").Inc()
		slog.Warn("geo cache get failed", "key", key, "err", err)
	}

	country, ok, err := c.inner.Resolve(ctx, ip)
	if err != nil {
		return "", false, err
	}
	payload, err := json.Marshal(cachedCountry{Country: country, Found: ok})
	if err != nil {
		return country, ok, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		slog.Warn("geo cache set failed", "key", key, "err", err)
	}
	return country, ok, nil
}

// Ping checks the Redis connection.
func (c *CachedResolver) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
