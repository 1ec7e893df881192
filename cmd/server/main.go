package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/fraudscore/internal/api"
	"github.com/gyaneshwarpardhi/fraudscore/internal/artifact"
	"github.com/gyaneshwarpardhi/fraudscore/internal/config"
	"github.com/gyaneshwarpardhi/fraudscore/internal/engine"
	"github.com/gyaneshwarpardhi/fraudscore/internal/features"
	"github.com/gyaneshwarpardhi/fraudscore/internal/geo"
	"github.com/gyaneshwarpardhi/fraudscore/internal/logging"
	"github.com/gyaneshwarpardhi/fraudscore/internal/scoring"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "Path to YAML config")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	flag.Parse()

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(cfg.Log.Level, cfg.Log.Format))
	listenAddr := listenAddress(cfg, *addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Country resolution ────────────────────────────────────────────────────
	// Geo sources are opened once; a config change does not reopen them.
	resolver, closeGeo, err := geo.NewFromConfig(ctx, cfg.Geo)
	if err != nil {
		slog.Error("failed to set up country resolution", "err", err)
		os.Exit(1)
	}
	defer closeGeo()

	// ── Scoring service ───────────────────────────────────────────────────────
	build := func(ctx context.Context, c *config.Config) (*scoring.Service, error) {
		policy, err := features.ParseUnseenPolicy(c.Features.UnseenCategory)
		if err != nil {
			return nil, err
		}
		store, err := artifact.Open(ctx, c.Artifacts)
		if err != nil {
			return nil, err
		}
		opts := []features.Option{features.WithUnseenPolicy(policy)}
		if resolver != nil {
			opts = append(opts, features.WithResolver(resolver))
		}
		return scoring.Load(ctx, store, features.NewBuilder(opts...))
	}

	svc, err := build(ctx, cfg)
	if err != nil {
		// Keep serving so health checks can report the condition.
		slog.Error("model unavailable", "err", err)
		svc = scoring.Unavailable(err)
	} else {
		info := svc.Info()
		slog.Info("artifacts loaded", "artifact_id", info.ArtifactID, "model", info.BestModel,
			"features", info.NFeatures, "unseen_policy", info.UnseenPolicy)
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	eng := engine.New(ctx, svc, cfg.Engine)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		next, err := build(ctx, newCfg)
		if err != nil {
			slog.Warn("hot-reload skipped: model load failed", "err", err)
			return
		}
		eng.SwapService(next)
		slog.Info("model hot-reloaded", "artifact_id", next.Info().ArtifactID)
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	reload := func(ctx context.Context) (*scoring.Service, error) {
		return build(ctx, loader.Config())
	}
	srv := &http.Server{
		Addr:         listenAddr,
		Handler:      api.New(eng, reload, cfg.Server.MaxBatchSize),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	eng.Shutdown()
	cancel()
	slog.Info("goodbye")
}

// listenAddress applies the -addr override without touching cfg, which the
// loader shares with every reload.
func listenAddress(cfg *config.Config, override string) string {
	if override != "" {
		return override
	}
	return cfg.Server.Addr
}
