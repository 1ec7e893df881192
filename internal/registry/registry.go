// Package registry holds the fitted categorical encoders and the canonical
// feature-column order shared by training and serving.
//
// A Registry is produced once per training run and is read-only afterwards;
// every accessor returns copies so it can be shared across goroutines without
// locking.
package registry

import (
	"fmt"
	"sort"
	"strings"
)

// Categorical fields encoded by the registry.
const (
	FieldSource  = "source"
	FieldBrowser = "browser"
	FieldSex     = "sex"
	FieldCountry = "country"
)

// CategoricalFields lists the fields every registry must carry an encoder for.
var CategoricalFields = []string{FieldSource, FieldBrowser, FieldSex, FieldCountry}

// Metadata describes the model fitted alongside the registry.
type Metadata struct {
	BestModel string
	BestScore float64
}

// Registry is the immutable training-time contract.
type Registry struct {
	encoders map[string]*LabelEncoder
	columns  []string
	meta     Metadata
}

// New validates and assembles a registry.
func New(encoders map[string]*LabelEncoder, columns []string, meta Metadata) (*Registry, error) {
	var errs []string
	if len(columns) == 0 {
		errs = append(errs, "feature columns must not be empty")
	}
	seen := make(map[string]int, len(columns))
	for i, c := range columns {
		if c == "" {
			errs = append(errs, fmt.Sprintf("feature column %d is empty", i))
			continue
		}
		if prev, ok := seen[c]; ok {
			errs = append(errs, fmt.Sprintf("duplicate feature column %q (positions %d and %d)", c, prev, i))
			continue
		}
		seen[c] = i
	}
	for _, f := range CategoricalFields {
		if encoders[f] == nil {
			errs = append(errs, fmt.Sprintf("missing encoder for %q", f))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("registry validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	enc := make(map[string]*LabelEncoder, len(encoders))
	for k, v := range encoders {
		enc[k] = v
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Registry{encoders: enc, columns: cols, meta: meta}, nil
}

// Fit builds one encoder per categorical field from the full training
// vocabulary and records the column order used to fit the model.
func Fit(vocabulary map[string][]string, columns []string, meta Metadata) (*Registry, error) {
	encoders := make(map[string]*LabelEncoder, len(vocabulary))
	for field, values := range vocabulary {
		encoders[field] = NewLabelEncoder(values)
	}
	return New(encoders, columns, meta)
}

// Encoder returns the encoder for field.
func (r *Registry) Encoder(field string) (Encoder, bool) {
	e, ok := r.encoders[field]
	if !ok {
		return nil, false
	}
	return e, true
}

// LabelEncoders returns the encoders keyed by field, for persistence.
func (r *Registry) LabelEncoders() map[string]*LabelEncoder {
	out := make(map[string]*LabelEncoder, len(r.encoders))
	for k, v := range r.encoders {
		out[k] = v
	}
	return out
}

// Fields returns the encoded field names in sorted order.
func (r *Registry) Fields() []string {
	out := make([]string, 0, len(r.encoders))
	for k := range r.encoders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FeatureColumns returns the authoritative column order.
func (r *Registry) FeatureColumns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// NumFeatures returns len(FeatureColumns()).
func (r *Registry) NumFeatures() int { return len(r.columns) }

// Metadata returns the model metadata.
func (r *Registry) Metadata() Metadata { return r.meta }
