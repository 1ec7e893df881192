package config

import (
	"fmt"
	"strings"
)

// Validate checks required fields, enums and ranges. All problems are
// reported together.
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	if !oneOf(cfg.Log.Level, "debug", "info", "warn", "error") {
		errs = append(errs, fmt.Sprintf("log.level %q must be one of debug, info, warn, error", cfg.Log.Level))
	}
	if !oneOf(cfg.Log.Format, "text", "json") {
		errs = append(errs, fmt.Sprintf("log.format %q must be text or json", cfg.Log.Format))
	}

	if cfg.Server.MaxBatchSize < 1 {
		errs = append(errs, "server.max_batch_size must be positive")
	}
	if cfg.Engine.Workers < 1 {
		errs = append(errs, "engine.workers must be positive")
	}
	if cfg.Engine.QueueDepth < 1 {
		errs = append(errs, "engine.queue_depth must be positive")
	}
	if cfg.Engine.TimeoutMs < 1 {
		errs = append(errs, "engine.timeout_ms must be positive")
	}

	switch cfg.Artifacts.Backend {
	case "local":
		if cfg.Artifacts.Dir == "" {
			errs = append(errs, "artifacts.dir is required for the local backend")
		}
	case "s3":
		if cfg.Artifacts.Bucket == "" {
			errs = append(errs, "artifacts.bucket is required for the s3 backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("artifacts.backend %q must be local or s3", cfg.Artifacts.Backend))
	}

	if cfg.Geo.CacheTTLHours < 0 {
		errs = append(errs, "geo.cache_ttl_hours must not be negative")
	}
	if !oneOf(cfg.Features.UnseenCategory, "fail", "unknown") {
		errs = append(errs, fmt.Sprintf("features.unseen_category %q must be fail or unknown", cfg.Features.UnseenCategory))
	}

	t := cfg.Training
	if t.TestFraction <= 0 || t.TestFraction >= 1 {
		errs = append(errs, fmt.Sprintf("training.test_fraction %v must be in (0, 1)", t.TestFraction))
	}
	if t.Epochs < 1 {
		errs = append(errs, "training.epochs must be positive")
	}
	if t.LearningRate <= 0 {
		errs = append(errs, "training.learning_rate must be positive")
	}
	if t.L2 < 0 {
		errs = append(errs, "training.l2 must not be negative")
	}
	if t.BatchSize < 1 {
		errs = append(errs, "training.batch_size must be positive")
	}
	if t.Workers < 0 {
		errs = append(errs, "training.workers must not be negative")
	}
	if !oneOf(t.ClassWeight, "balanced", "none") {
		errs = append(errs, fmt.Sprintf("training.class_weight %q must be balanced or none", t.ClassWeight))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
