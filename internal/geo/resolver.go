package geo

import (
	"context"

	"github.com/gyaneshwarpardhi/fraudscore/internal/ipcodec"
	"github.com/gyaneshwarpardhi/fraudscore/internal/metrics"
)

// Resolver maps a raw IP field to a country. A miss is not an error:
// ok=false means "unknown". err is reserved for backend failures.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (country string, ok bool, err error)
}

// IndexResolver resolves through the range table via the IP codec.
type IndexResolver struct {
	index *Index
}

// NewIndexResolver wraps idx.
func NewIndexResolver(idx *Index) *IndexResolver {
	return &IndexResolver{index: idx}
}

func (r *IndexResolver) Resolve(_ context.Context, ip string) (string, bool, error) {
	addr := ipcodec.ToInt(ip)
	if addr == ipcodec.Unknown {
		metrics.GeoLookups.WithLabelValues("index", "invalid").Inc()
		return "", false, nil
	}
	country, ok := r.index.Lookup(addr)
	if ok {
		metrics.GeoLookups.WithLabelValues("index", "hit").Inc()
	} else {
		metrics.GeoLookups.WithLabelValues("index", "miss").Inc()
	}
	return country, ok, nil
}

// ChainResolver tries each resolver in order; the first hit wins.
// Backend errors are skipped so one failing source does not hide the others;
// the last error is returned only if nothing resolved.
type ChainResolver []Resolver

func (c ChainResolver) Resolve(ctx context.Context, ip string) (string, bool, error) {
	var lastErr error
	for _, r := range c {
		country, ok, err := r.Resolve(ctx, ip)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return country, true, nil
		}
	}
	return "", false, lastErr
}
