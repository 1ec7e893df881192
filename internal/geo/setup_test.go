package geo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/fraudscore/internal/config"
)

func writeRanges(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ranges.csv")
	body := "lower_bound_ip_address,upper_bound_ip_address,country\n732758016,732758527,Japan\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNewFromConfig_NoSources(t *testing.T) {
	r, closeFn, err := NewFromConfig(context.Background(), config.GeoConf{})
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.NoError(t, closeFn())
}

func TestNewFromConfig_RangesBehindCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	r, closeFn, err := NewFromConfig(ctx, config.GeoConf{
		IPRangesCSV:   writeRanges(t),
		RedisAddr:     mr.Addr(),
		CacheTTLHours: 2,
	})
	require.NoError(t, err)
	defer closeFn()
	require.IsType(t, &CachedResolver{}, r)

	country, ok, err := r.Resolve(ctx, "43.173.1.96")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Japan", country)
	assert.True(t, mr.Exists("geo:43.173.1.96"))
}

func TestNewFromConfig_RangesOnly(t *testing.T) {
	r, closeFn, err := NewFromConfig(context.Background(), config.GeoConf{IPRangesCSV: writeRanges(t)})
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &IndexResolver{}, r)
}

func TestNewFromConfig_Errors(t *testing.T) {
	_, _, err := NewFromConfig(context.Background(), config.GeoConf{IPRangesCSV: "/nonexistent/ranges.csv"})
	assert.Error(t, err)

	_, _, err = NewFromConfig(context.Background(), config.GeoConf{
		IPRangesCSV: writeRanges(t),
		MaxMindDB:   filepath.Join(t.TempDir(), "missing.mmdb"),
	})
	assert.Error(t, err)
}
