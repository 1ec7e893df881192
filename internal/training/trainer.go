// Package training fits the fraud model end to end: load the labelled
// dataset, resolve countries through the IP range table, fit the encoders,
// build the feature matrix, fit and validate the pipeline and persist the
// artifact set.
package training

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gyaneshwarpardhi/fraudscore/internal/artifact"
	"github.com/gyaneshwarpardhi/fraudscore/internal/features"
	"github.com/gyaneshwarpardhi/fraudscore/internal/geo"
	"github.com/gyaneshwarpardhi/fraudscore/internal/ipcodec"
	"github.com/gyaneshwarpardhi/fraudscore/internal/metrics"
	"github.com/gyaneshwarpardhi/fraudscore/internal/model"
	"github.com/gyaneshwarpardhi/fraudscore/internal/registry"
)

// Options configures a training run.
type Options struct {
	TestFraction float64
	Params       model.TrainParams
	// Workers bounds feature-building parallelism; 0 means GOMAXPROCS.
	Workers int
	// Columns is the model's feature order; empty means features.Columns(false).
	Columns []string
	// UnseenPolicy is recorded in the artifact.
	UnseenPolicy features.UnseenPolicy
	// Fallback resolves rows the range table misses. Pass the same sources the
	// server chains after the range table so both sides agree on country.
	Fallback geo.Resolver
}

// Report summarizes a run.
type Report struct {
	Rows        int
	Skipped     int
	BuildFailed int
	Coverage    geo.Coverage
	Fallback    int
	Vocabulary  map[string]int
	TrainRows   int
	TestRows    int
	AUC         float64
	ArtifactID  string
	Elapsed     time.Duration
}

// AssignCountries resolves every row's country from its IP through idx,
// then asks fallback for the rows idx missed, the same order the serving
// resolver chain uses. Rows nothing resolves, including the 0.0.0.0
// sentinel for the range table, get geo.UnknownCountry. Either of idx and
// fallback may be nil. Coverage counts rows resolved by any source; the
// second result counts those the fallback resolved.
func AssignCountries(ctx context.Context, ds *Dataset, idx *geo.Index, fallback geo.Resolver) (geo.Coverage, int) {
	cov := geo.Coverage{Total: ds.Len()}
	resolved := make([]bool, ds.Len())
	if idx != nil {
		addrs := make([]uint32, ds.Len())
		for i := range ds.Txs {
			addrs[i] = ipcodec.ToInt(ds.Txs[i].IPAddress)
		}
		matches, _ := idx.Join(addrs)
		for i, m := range matches {
			if m.OK && m.Addr != ipcodec.Unknown {
				ds.Txs[i].Country = m.Country
				resolved[i] = true
				cov.Matched++
			}
		}
	}

	var viaFallback, failures int
	for i := range ds.Txs {
		if resolved[i] {
			continue
		}
		ds.Txs[i].Country = geo.UnknownCountry
		if fallback == nil {
			continue
		}
		c, ok, err := fallback.Resolve(ctx, ds.Txs[i].IPAddress)
		if err != nil {
			failures++
			continue
		}
		if ok {
			ds.Txs[i].Country = c
			cov.Matched++
			viaFallback++
		}
	}
	if failures > 0 {
		slog.Warn("fallback country resolution failed for some rows", "rows", failures)
	}
	metrics.GeoCoverage.Set(cov.Ratio())
	return cov, viaFallback
}

// Vocabulary collects the distinct values of every categorical field.
// Unknown is always part of the country vocabulary.
func Vocabulary(ds *Dataset) map[string][]string {
	sets := map[string]map[string]struct{}{
		registry.FieldSource:  {},
		registry.FieldBrowser: {},
		registry.FieldSex:     {},
		registry.FieldCountry: {geo.UnknownCountry: {}},
	}
	for _, tx := range ds.Txs {
		sets[registry.FieldSource][tx.Source] = struct{}{}
		sets[registry.FieldBrowser][tx.Browser] = struct{}{}
		sets[registry.FieldSex][tx.Sex] = struct{}{}
		if tx.Country != "" {
			sets[registry.FieldCountry][tx.Country] = struct{}{}
		}
	}
	out := make(map[string][]string, len(sets))
	for field, set := range sets {
		values := make([]string, 0, len(set))
		for v := range set {
			values = append(values, v)
		}
		out[field] = values
	}
	return out
}

// Run trains on ds and writes the artifacts to store. When idx and
// opts.Fallback are both nil, rows keep whatever country they carry.
func Run(ctx context.Context, ds *Dataset, idx *geo.Index, store artifact.Store, opts Options) (*Report, error) {
	start := time.Now()
	if ds.Len() == 0 {
		return nil, fmt.Errorf("training: dataset is empty")
	}
	columns := opts.Columns
	if len(columns) == 0 {
		columns = features.Columns(false)
	}
	rep := &Report{Rows: ds.Len(), Skipped: ds.Skipped, Vocabulary: map[string]int{}}

	if idx != nil || opts.Fallback != nil {
		rep.Coverage, rep.Fallback = AssignCountries(ctx, ds, idx, opts.Fallback)
		slog.Info("ip join complete",
			"rows", rep.Coverage.Total,
			"matched", rep.Coverage.Matched,
			"via_fallback", rep.Fallback,
			"unmatched", rep.Coverage.Unmatched(),
			"coverage", rep.Coverage.Ratio())
	}

	vocab := Vocabulary(ds)
	for field, values := range vocab {
		rep.Vocabulary[field] = len(values)
	}
	reg, err := registry.Fit(vocab, columns, registry.Metadata{BestModel: model.Name})
	if err != nil {
		return nil, fmt.Errorf("training: fit encoders: %w", err)
	}
	slog.Info("encoders fitted", "vocabulary", rep.Vocabulary, "features", len(columns))

	policy := opts.UnseenPolicy
	if policy == "" {
		policy = features.UnseenFail
	}
	// Every category is in the vocabulary, so the policy only matters for
	// genuinely broken rows.
	builder := features.NewBuilder(features.WithUnseenPolicy(policy))
	batch, err := builder.BuildBatch(ctx, ds.Txs, reg, opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("training: build features: %w", err)
	}
	rep.BuildFailed = batch.Failed
	if batch.Failed > 0 {
		slog.Warn("rows dropped during feature build", "failed", batch.Failed)
	}
	X, rows := batch.Matrix()
	y := make([]int, len(rows))
	for i, r := range rows {
		y[i] = ds.Labels[r]
	}

	trainIdx, testIdx, err := StratifiedSplit(y, opts.TestFraction, opts.Params.Seed)
	if err != nil {
		return nil, fmt.Errorf("training: %w", err)
	}
	rep.TrainRows, rep.TestRows = len(trainIdx), len(testIdx)

	Xtr, ytr := subset(X, y, trainIdx)
	pipeline, err := model.Fit(ctx, Xtr, ytr, opts.Params)
	if err != nil {
		return nil, fmt.Errorf("training: %w", err)
	}

	Xte, yte := subset(X, y, testIdx)
	scores := make([]float64, len(Xte))
	for i, row := range Xte {
		if scores[i], err = pipeline.PredictProba(row); err != nil {
			return nil, fmt.Errorf("training: score holdout: %w", err)
		}
	}
	rep.AUC, err = model.ROCAUC(yte, scores)
	if err != nil {
		return nil, fmt.Errorf("training: validate: %w", err)
	}
	slog.Info("model validated", "model", model.Name, "train_rows", rep.TrainRows, "test_rows", rep.TestRows, "roc_auc", rep.AUC)

	final, err := registry.New(reg.LabelEncoders(), columns, registry.Metadata{BestModel: model.Name, BestScore: rep.AUC})
	if err != nil {
		return nil, fmt.Errorf("training: %w", err)
	}
	info, err := artifact.Save(ctx, store, pipeline, final, string(policy))
	if err != nil {
		return nil, fmt.Errorf("training: %w", err)
	}
	rep.ArtifactID = info.ArtifactID
	rep.Elapsed = time.Since(start)
	slog.Info("artifacts saved", "artifact_id", info.ArtifactID, "elapsed", rep.Elapsed)
	return rep, nil
}

func subset(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i], ys[i] = X[j], y[j]
	}
	return xs, ys
}
