// Package artifact persists and restores the fitted pipeline together with
// the encoder registry it was trained against.
//
// An artifact set is two blobs written by the same training run:
//
//	pipeline    snappy(JSON model.Pipeline)
//	model_info  snappy(JSON ModelInfo), carrying the encoders, the feature
//	            column order and a murmur3 checksum of the pipeline JSON
//
// model_info is written last and read first, so a reader never pairs a new
// pipeline with an old registry.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"

	ferrors "github.com/gyaneshwarpardhi/fraudscore/internal/errors"
	"github.com/gyaneshwarpardhi/fraudscore/internal/model"
	"github.com/gyaneshwarpardhi/fraudscore/internal/registry"
)

// SchemaVersion identifies the artifact layout.
const SchemaVersion = "fraudscore/v1"

// Blob names.
const (
	BlobPipeline  = "pipeline"
	BlobModelInfo = "model_info"
)

// ModelInfo is the metadata blob.
type ModelInfo struct {
	SchemaVersion    string                            `json:"schema_version"`
	ArtifactID       string                            `json:"artifact_id"`
	CreatedAt        time.Time                         `json:"created_at"`
	FeatureColumns   []string                          `json:"feature_columns"`
	BestModel        string                            `json:"best_model"`
	BestAUC          float64                           `json:"best_auc"`
	Encoders         map[string]*registry.LabelEncoder `json:"encoders"`
	UnseenPolicy     string                            `json:"unseen_policy"`
	PipelineChecksum string                            `json:"pipeline_checksum"`
}

// Bundle is a loaded artifact set.
type Bundle struct {
	Pipeline *model.Pipeline
	Registry *registry.Registry
	Info     ModelInfo
}

// Save writes both blobs. policy is the unseen-category policy the model was
// validated under; serving may override it.
func Save(ctx context.Context, store Store, p *model.Pipeline, reg *registry.Registry, policy string) (ModelInfo, error) {
	if err := p.Validate(); err != nil {
		return ModelInfo{}, fmt.Errorf("save artifacts: %w", err)
	}
	if p.NumFeatures() != reg.NumFeatures() {
		return ModelInfo{}, fmt.Errorf("save artifacts: pipeline width %d but registry lists %d columns", p.NumFeatures(), reg.NumFeatures())
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("encode pipeline: %w", err)
	}
	meta := reg.Metadata()
	info := ModelInfo{
		SchemaVersion:    SchemaVersion,
		ArtifactID:       uuid.New().String(),
		CreatedAt:        time.Now().UTC(),
		FeatureColumns:   reg.FeatureColumns(),
		BestModel:        meta.BestModel,
		BestAUC:          meta.BestScore,
		Encoders:         reg.LabelEncoders(),
		UnseenPolicy:     policy,
		PipelineChecksum: checksum(raw),
	}
	infoRaw, err := json.Marshal(info)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("encode model info: %w", err)
	}

	if err := store.Put(ctx, BlobPipeline, snappy.Encode(nil, raw)); err != nil {
		return ModelInfo{}, fmt.Errorf("write %s: %w", BlobPipeline, err)
	}
	if err := store.Put(ctx, BlobModelInfo, snappy.Encode(nil, infoRaw)); err != nil {
		return ModelInfo{}, fmt.Errorf("write %s: %w", BlobModelInfo, err)
	}
	return info, nil
}

// Load reads and cross-checks both blobs. Every failure is reported as a
// ModelUnavailable error.
func Load(ctx context.Context, store Store) (*Bundle, error) {
	b, err := load(ctx, store)
	if err != nil {
		return nil, ferrors.Unavailable("load artifacts", err)
	}
	return b, nil
}

func load(ctx context.Context, store Store) (*Bundle, error) {
	infoRaw, err := readBlob(ctx, store, BlobModelInfo)
	if err != nil {
		return nil, err
	}
	var info ModelInfo
	if err := json.Unmarshal(infoRaw, &info); err != nil {
		return nil, fmt.Errorf("decode %s: %w", BlobModelInfo, err)
	}
	if info.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("schema version %q, want %q", info.SchemaVersion, SchemaVersion)
	}

	raw, err := readBlob(ctx, store, BlobPipeline)
	if err != nil {
		return nil, err
	}
	if sum := checksum(raw); sum != info.PipelineChecksum {
		return nil, fmt.Errorf("pipeline checksum %s does not match model_info %s", sum, info.PipelineChecksum)
	}
	var p model.Pipeline
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", BlobPipeline, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.NumFeatures() != len(info.FeatureColumns) {
		return nil, fmt.Errorf("pipeline expects %d features but model_info lists %d columns", p.NumFeatures(), len(info.FeatureColumns))
	}

	reg, err := registry.New(info.Encoders, info.FeatureColumns, registry.Metadata{
		BestModel: info.BestModel,
		BestScore: info.BestAUC,
	})
	if err != nil {
		return nil, err
	}
	return &Bundle{Pipeline: &p, Registry: reg, Info: info}, nil
}

func readBlob(ctx context.Context, store Store, name string) ([]byte, error) {
	data, err := store.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", name, err)
	}
	return raw, nil
}

func checksum(raw []byte) string {
	return strconv.FormatUint(murmur3.Sum64(raw), 16)
}
