package artifact

import (
	"context"
	"fmt"

	"github.com/gyaneshwarpardhi/fraudscore/internal/config"
)

// Open builds the store selected by the artifacts config section.
func Open(ctx context.Context, cfg config.ArtifactsConf) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.Dir)
	case "s3":
		return NewS3Store(ctx, cfg.Bucket, cfg.Prefix, S3Config{
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
	}
}
