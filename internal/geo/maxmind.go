package geo

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/gyaneshwarpardhi/fraudscore/internal/ipcodec"
	"github.com/gyaneshwarpardhi/fraudscore/internal/metrics"
)

// MaxMindResolver resolves countries from a GeoLite2/GeoIP2 Country or City
// database. It returns English country names so results share a vocabulary
// with the range table.
type MaxMindResolver struct {
	db *geoip2.Reader
}

// OpenMaxMind opens the mmdb file at path.
func OpenMaxMind(path string) (*MaxMindResolver, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open maxmind db %s: %w", path, err)
	}
	return &MaxMindResolver{db: db}, nil
}

func (r *MaxMindResolver) Resolve(_ context.Context, ip string) (string, bool, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		// float-corrupted or otherwise non-canonical input
		addr := ipcodec.ToInt(ip)
		if addr == ipcodec.Unknown {
			metrics.GeoLookups.WithLabelValues("maxmind", "invalid").Inc()
			return "", false, nil
		}
		parsed = net.ParseIP(ipcodec.FromInt(addr))
	}
	rec, err := r.db.Country(parsed)
	if err != nil {
		metrics.GeoLookups.WithLabelValues("maxmind", "error").Inc()
		return "", false, fmt.Errorf("maxmind lookup %s: %w", ip, err)
	}
	name := rec.Country.Names["en"]
	if name == "" {
		metrics.GeoLookups.WithLabelValues("maxmind", "miss").Inc()
		return "", false, nil
	}
	metrics.GeoLookups.WithLabelValues("maxmind", "hit").Inc()
	return name, true, nil
}

// Close releases the database.
func (r *MaxMindResolver) Close() error {
	return r.db.Close()
}
