package model

import (
	"fmt"
	"math"
)

// StandardScaler centres each column on its training mean and divides by its
// population standard deviation. Constant columns get a scale of 1.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler computes column statistics over X. Every row must have the same width.
func FitScaler(X [][]float64) (*StandardScaler, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("fit scaler: no rows")
	}
	width := len(X[0])
	mean := make([]float64, width)
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("fit scaler: row %d has %d columns, want %d", i, len(row), width)
		}
		for j, v := range row {
			mean[j] += v
		}
	}
	n := float64(len(X))
	for j := range mean {
		mean[j] /= n
	}

	scale := make([]float64, width)
	for _, row := range X {
		for j, v := range row {
			d := v - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	return &StandardScaler{Mean: mean, Scale: scale}, nil
}

// Transform returns a scaled copy of x.
func (s *StandardScaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out
}
