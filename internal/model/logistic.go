package model

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
)

// TrainParams controls gradient-descent training.
type TrainParams struct {
	Epochs       int
	LearningRate float64
	L2           float64
	BatchSize    int
	Seed         uint64
	// Balanced reweights samples inversely to class frequency.
	Balanced bool
}

// DefaultTrainParams mirror the training config defaults.
func DefaultTrainParams() TrainParams {
	return TrainParams{
		Epochs:       50,
		LearningRate: 0.1,
		L2:           1e-4,
		BatchSize:    256,
		Seed:         42,
		Balanced:     true,
	}
}

// LogisticRegression is a binary linear classifier.
type LogisticRegression struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// Prob returns P(class=1 | x). x must already be scaled.
func (m *LogisticRegression) Prob(x []float64) float64 {
	z := m.Bias
	for j, w := range m.Weights {
		z += w * x[j]
	}
	return sigmoid(z)
}

// fitLogistic trains on scaled rows with mini-batch gradient descent. The
// shuffle order is derived from p.Seed, so equal inputs give equal weights.
func fitLogistic(ctx context.Context, X [][]float64, y []int, p TrainParams) (*LogisticRegression, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("invalid training data: got %d samples and %d labels", len(X), len(y))
	}
	if p.BatchSize <= 0 {
		p.BatchSize = len(X)
	}
	width := len(X[0])
	m := &LogisticRegression{Weights: make([]float64, width)}

	sampleWeight := [2]float64{1, 1}
	if p.Balanced {
		var counts [2]int
		for _, label := range y {
			counts[label]++
		}
		for c := range counts {
			if counts[c] > 0 {
				sampleWeight[c] = float64(len(y)) / (2 * float64(counts[c]))
			}
		}
	}

	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))
	grad := make([]float64, width)
	for epoch := 0; epoch < p.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		order := rng.Perm(len(X))
		var loss float64
		for start := 0; start < len(order); start += p.BatchSize {
			end := min(start+p.BatchSize, len(order))
			clear(grad)
			var gradBias float64
			for _, idx := range order[start:end] {
				x, label := X[idx], float64(y[idx])
				pred := m.Prob(x)
				sw := sampleWeight[y[idx]]
				loss -= sw * (label*math.Log(pred+1e-15) + (1-label)*math.Log(1-pred+1e-15))
				diff := sw * (pred - label)
				for j, v := range x {
					grad[j] += diff * v
				}
				gradBias += diff
			}
			n := float64(end - start)
			for j := range m.Weights {
				m.Weights[j] -= p.LearningRate * (grad[j]/n + p.L2*m.Weights[j])
			}
			m.Bias -= p.LearningRate * gradBias / n
		}
		if epoch%10 == 0 || epoch == p.Epochs-1 {
			slog.Debug("training epoch", "epoch", epoch+1, "epochs", p.Epochs, "loss", loss/float64(len(X)))
		}
	}
	return m, nil
}
