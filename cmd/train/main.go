package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gyaneshwarpardhi/fraudscore/internal/artifact"
	"github.com/gyaneshwarpardhi/fraudscore/internal/config"
	"github.com/gyaneshwarpardhi/fraudscore/internal/features"
	"github.com/gyaneshwarpardhi/fraudscore/internal/geo"
	"github.com/gyaneshwarpardhi/fraudscore/internal/logging"
	"github.com/gyaneshwarpardhi/fraudscore/internal/model"
	"github.com/gyaneshwarpardhi/fraudscore/internal/training"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "Path to YAML config")
	dataPath := flag.String("data", "", "Fraud dataset CSV (overrides training.fraud_csv)")
	rangesPath := flag.String("ranges", "", "IP-to-country CSV (overrides geo.ip_ranges_csv)")
	outDir := flag.String("out", "", "Write artifacts to this directory instead of the configured store")
	flag.Parse()

	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if *dataPath != "" {
		cfg.Training.FraudCSV = *dataPath
	}
	if *rangesPath != "" {
		cfg.Geo.IPRangesCSV = *rangesPath
	}
	if *outDir != "" {
		cfg.Artifacts = config.ArtifactsConf{Backend: "local", Dir: *outDir}
	}
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(cfg.Log.Level, cfg.Log.Format))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("training failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	policy, err := features.ParseUnseenPolicy(cfg.Features.UnseenCategory)
	if err != nil {
		return err
	}
	if cfg.Training.FraudCSV == "" {
		return fmt.Errorf("no fraud dataset: set training.fraud_csv or pass -data")
	}
	ds, err := training.LoadFraudCSVFile(cfg.Training.FraudCSV)
	if err != nil {
		return err
	}
	slog.Info("fraud data loaded", "rows", ds.Len(), "skipped", ds.Skipped)

	var idx *geo.Index
	if cfg.Geo.IPRangesCSV != "" {
		if idx, err = geo.LoadRangesFile(cfg.Geo.IPRangesCSV); err != nil {
			return err
		}
		slog.Info("ip range table loaded", "ranges", idx.Len())
	} else {
		slog.Warn("no ip range table configured")
	}

	// The remaining geo sources, in the order the server chains them after
	// the range table, so training sees the countries serving will see.
	fallbackConf := cfg.Geo
	fallbackConf.IPRangesCSV = ""
	fallback, closeGeo, err := geo.NewFromConfig(ctx, fallbackConf)
	if err != nil {
		return err
	}
	defer closeGeo()

	store, err := artifact.Open(ctx, cfg.Artifacts)
	if err != nil {
		return err
	}

	t := cfg.Training
	rep, err := training.Run(ctx, ds, idx, store, training.Options{
		TestFraction: t.TestFraction,
		Params: model.TrainParams{
			Epochs:       t.Epochs,
			LearningRate: t.LearningRate,
			L2:           t.L2,
			BatchSize:    t.BatchSize,
			Seed:         t.Seed,
			Balanced:     t.ClassWeight == "balanced",
		},
		Workers:      t.Workers,
		UnseenPolicy: policy,
		Fallback:     fallback,
	})
	if err != nil {
		return err
	}
	slog.Info("training complete",
		"artifact_id", rep.ArtifactID,
		"roc_auc", rep.AUC,
		"train_rows", rep.TrainRows,
		"test_rows", rep.TestRows,
		"geo_coverage", rep.Coverage.Ratio(),
		"geo_via_fallback", rep.Fallback,
		"elapsed", rep.Elapsed)
	return nil
}
