// Package model holds the fitted classifier: a standard scaler followed by an
// L2-regularized logistic regression.
package model

import (
	"context"
	"fmt"
)

// Name is recorded as the best model in the artifact metadata.
const Name = "LogisticRegression"

// Pipeline is a fitted scaler + classifier. It is read-only after Fit and
// safe for concurrent PredictProba calls.
type Pipeline struct {
	Name   string              `json:"name"`
	Scaler *StandardScaler     `json:"scaler"`
	Model  *LogisticRegression `json:"model"`
}

// Fit trains a pipeline on X (rows of equal width) and binary labels y.
func Fit(ctx context.Context, X [][]float64, y []int, p TrainParams) (*Pipeline, error) {
	if len(X) != len(y) {
		return nil, fmt.Errorf("fit: %d rows but %d labels", len(X), len(y))
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return nil, fmt.Errorf("fit: label %d at row %d is not binary", label, i)
		}
	}
	scaler, err := FitScaler(X)
	if err != nil {
		return nil, err
	}
	scaled := make([][]float64, len(X))
	for i, row := range X {
		scaled[i] = scaler.Transform(row)
	}
	lr, err := fitLogistic(ctx, scaled, y, p)
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	return &Pipeline{Name: Name, Scaler: scaler, Model: lr}, nil
}

// NumFeatures is the input width the pipeline was fitted on.
func (p *Pipeline) NumFeatures() int {
	if p == nil || p.Model == nil {
		return 0
	}
	return len(p.Model.Weights)
}

// Validate checks that the scaler and classifier agree on width.
func (p *Pipeline) Validate() error {
	if p == nil || p.Scaler == nil || p.Model == nil {
		return fmt.Errorf("pipeline is incomplete")
	}
	n := len(p.Model.Weights)
	if n == 0 {
		return fmt.Errorf("pipeline has no features")
	}
	if len(p.Scaler.Mean) != n || len(p.Scaler.Scale) != n {
		return fmt.Errorf("scaler width %d/%d does not match model width %d", len(p.Scaler.Mean), len(p.Scaler.Scale), n)
	}
	return nil
}

// PredictProba returns the probability of the positive (fraud) class.
func (p *Pipeline) PredictProba(x []float64) (float64, error) {
	if len(x) != p.NumFeatures() {
		return 0, fmt.Errorf("feature width %d, model expects %d", len(x), p.NumFeatures())
	}
	return p.Model.Prob(p.Scaler.Transform(x)), nil
}
