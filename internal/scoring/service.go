// Package scoring implements the inference contract: transaction in,
// fraud probability, label and confidence out.
//
// A Service is immutable. Hot reload builds a new one and swaps it in, so
// requests already in flight finish against the snapshot they started with.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/gyaneshwarpardhi/fraudscore/internal/artifact"
	ferrors "github.com/gyaneshwarpardhi/fraudscore/internal/errors"
	"github.com/gyaneshwarpardhi/fraudscore/internal/features"
	"github.com/gyaneshwarpardhi/fraudscore/internal/metrics"
	"github.com/gyaneshwarpardhi/fraudscore/internal/registry"
	"github.com/gyaneshwarpardhi/fraudscore/internal/transaction"
)

// Threshold is the fixed decision boundary.
const Threshold = 0.5

// Classifier is the fitted model as seen by the service.
type Classifier interface {
	PredictProba(x []float64) (float64, error)
	NumFeatures() int
}

// Result is the scoring outcome.
type Result struct {
	Probability float64 `json:"fraud_probability"`
	Label       int     `json:"fraud_label"`
	Confidence  float64 `json:"confidence"`
}

// Decide applies the decision threshold: label 1 iff p > 0.5, confidence
// is the distance from the boundary scaled to [0,1].
func Decide(p float64) Result {
	label := 0
	if p > Threshold {
		label = 1
	}
	return Result{Probability: p, Label: label, Confidence: math.Abs(p-Threshold) * 2}
}

// Info describes the loaded model.
type Info struct {
	ModelLoaded         bool     `json:"model_loaded"`
	Features            []string `json:"features"`
	NFeatures           int      `json:"n_features"`
	BestModel           string   `json:"best_model,omitempty"`
	BestAUC             float64  `json:"best_auc,omitempty"`
	EncodersAvailable   []string `json:"encoders_available"`
	ArtifactID          string   `json:"artifact_id,omitempty"`
	UnseenPolicy        string   `json:"unseen_policy"`
	// TrainedUnseenPolicy is the policy recorded in the artifact.
	TrainedUnseenPolicy string   `json:"trained_unseen_policy,omitempty"`
	Error               string   `json:"error,omitempty"`
}

// Service scores transactions against one model + registry pair.
type Service struct {
	classifier Classifier
	reg        *registry.Registry
	builder    *features.Builder
	artifactID string
	trained    string
	loadErr    error
}

// New assembles a ready service. The classifier width must equal the
// registry's column count.
func New(c Classifier, reg *registry.Registry, b *features.Builder) (*Service, error) {
	if c == nil || reg == nil || b == nil {
		return nil, fmt.Errorf("scoring: classifier, registry and builder are required")
	}
	if c.NumFeatures() != reg.NumFeatures() {
		return nil, fmt.Errorf("scoring: model expects %d features, registry lists %d", c.NumFeatures(), reg.NumFeatures())
	}
	return &Service{classifier: c, reg: reg, builder: b}, nil
}

// Unavailable returns a service that fails every call with ModelUnavailable.
func Unavailable(cause error) *Service {
	return &Service{loadErr: cause}
}

// Load restores the artifacts from store and wraps them in a service.
func Load(ctx context.Context, store artifact.Store, b *features.Builder) (*Service, error) {
	bundle, err := artifact.Load(ctx, store)
	if err != nil {
		return nil, err
	}
	s, err := New(bundle.Pipeline, bundle.Registry, b)
	if err != nil {
		return nil, ferrors.Unavailable("assemble service", err)
	}
	s.artifactID = bundle.Info.ArtifactID
	s.trained = bundle.Info.UnseenPolicy
	if s.trained != "" && s.trained != string(b.Policy()) {
		slog.Warn("unseen-category policy differs from the one recorded at training",
			"configured", b.Policy(), "trained", s.trained, "artifact_id", s.artifactID)
	}
	return s, nil
}

// Available reports whether the service can score.
func (s *Service) Available() bool {
	return s != nil && s.loadErr == nil && s.classifier != nil
}

// Score builds the feature vector for tx and classifies it.
func (s *Service) Score(ctx context.Context, tx *transaction.Transaction) (Result, error) {
	start := time.Now()
	res, err := s.score(ctx, tx)
	metrics.ScoringDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		kind := string(ferrors.KindOf(err))
		if kind == "" {
			kind = "INTERNAL"
		}
		metrics.ScoringErrors.WithLabelValues(kind).Inc()
		return Result{}, err
	}
	metrics.Predictions.WithLabelValues(strconv.Itoa(res.Label)).Inc()
	return res, nil
}

func (s *Service) score(ctx context.Context, tx *transaction.Transaction) (Result, error) {
	if !s.Available() {
		var cause error
		if s != nil {
			cause = s.loadErr
		}
		return Result{}, ferrors.Unavailable("model not loaded", cause)
	}
	vec, err := s.builder.Build(ctx, tx, s.reg)
	if err != nil {
		return Result{}, err
	}
	if len(vec.Values) != s.classifier.NumFeatures() {
		return Result{}, ferrors.Preprocessing("", fmt.Sprintf("feature shape mismatch: built %d, model expects %d", len(vec.Values), s.classifier.NumFeatures()))
	}
	p, err := s.classifier.PredictProba(vec.Values)
	if err != nil {
		return Result{}, ferrors.Preprocessing("", err.Error())
	}
	return Decide(p), nil
}

// Info reports what is loaded.
func (s *Service) Info() Info {
	if !s.Available() {
		info := Info{Features: []string{}, EncodersAvailable: []string{}}
		if s != nil && s.loadErr != nil {
			info.Error = s.loadErr.Error()
		}
		return info
	}
	meta := s.reg.Metadata()
	return Info{
		ModelLoaded:         true,
		Features:            s.reg.FeatureColumns(),
		NFeatures:           s.reg.NumFeatures(),
		BestModel:           meta.BestModel,
		BestAUC:             meta.BestScore,
		EncodersAvailable:   s.reg.Fields(),
		ArtifactID:          s.artifactID,
		UnseenPolicy:        string(s.builder.Policy()),
		TrainedUnseenPolicy: s.trained,
	}
}
