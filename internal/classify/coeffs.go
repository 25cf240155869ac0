package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// coeffFile is the on-disk format for an exported logistic model: one weight
// per feature plus an intercept. Training happens elsewhere; this service
// only consumes the export.
type coeffFile struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// CoeffScorer scores feature vectors with exported logistic-regression
// coefficients. It is stateless after load and safe for concurrent use.
type CoeffScorer struct {
	weights   []float64
	intercept float64
}

// LoadCoeffScorer reads a coefficients file. The weight count must match the
// feature vector width.
func LoadCoeffScorer(path string) (*CoeffScorer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	var cf coeffFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse model file: %w", err)
	}
	if len(cf.Coefficients) != NumFeatures {
		return nil, fmt.Errorf("model has %d coefficients, want %d", len(cf.Coefficients), NumFeatures)
	}
	return &CoeffScorer{weights: cf.Coefficients, intercept: cf.Intercept}, nil
}

// PredictProba returns [P(safe), P(malicious)].
func (c *CoeffScorer) PredictProba(_ context.Context, features []float64) ([]float64, error) {
	if len(features) != len(c.weights) {
		return nil, fmt.Errorf("feature vector has %d values, want %d", len(features), len(c.weights))
	}
	z := c.intercept
	for i, w := range c.weights {
		z += w * features[i]
	}
	p := 1.0 / (1.0 + math.Exp(-z))
	return []float64{1 - p, p}, nil
}

// Predict returns the most probable class label.
func (c *CoeffScorer) Predict(ctx context.Context, features []float64) (int, error) {
	probs, err := c.PredictProba(ctx, features)
	if err != nil {
		return 0, err
	}
	if probs[PredictionMalicious] > probs[PredictionSafe] {
		return PredictionMalicious, nil
	}
	return PredictionSafe, nil
}
