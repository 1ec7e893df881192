package geo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gyaneshwarpardhi/fraudscore/internal/config"
)

// NewFromConfig assembles the resolver chain described by cfg: the range
// table first, then MaxMind, both behind the Redis cache when one is
// configured. It returns a nil Resolver when no source is configured. The
// returned close function releases the database and the Redis client.
func NewFromConfig(ctx context.Context, cfg config.GeoConf) (Resolver, func() error, error) {
	var (
		chain   ChainResolver
		closers []func() error
	)
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	if cfg.IPRangesCSV != "" {
		idx, err := LoadRangesFile(cfg.IPRangesCSV)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("ip range table loaded", "path", cfg.IPRangesCSV, "ranges", idx.Len())
		chain = append(chain, NewIndexResolver(idx))
	}
	if cfg.MaxMindDB != "" {
		mm, err := OpenMaxMind(cfg.MaxMindDB)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		slog.Info("maxmind database opened", "path", cfg.MaxMindDB)
		chain = append(chain, mm)
		closers = append(closers, mm.Close)
	}

	if len(chain) == 0 {
		return nil, closeAll, nil
	}
	var r Resolver = chain
	if len(chain) == 1 {
		r = chain[0]
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closers = append(closers, client.Close)
		cached := NewCachedResolver(client, r, time.Duration(cfg.CacheTTLHours)*time.Hour)
		if err := cached.Ping(ctx); err != nil {
			slog.Warn("geo cache unreachable, lookups will bypass it until it recovers", "addr", cfg.RedisAddr, "err", err)
		}
		r = cached
	}
	return r, closeAll, nil
}
