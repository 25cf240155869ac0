package classify

import (
	"context"
	"sync"
)

// Scorer is the statistical classifier capability. Predict returns a class
// label (0 safe, 1 malicious); PredictProba returns the per-class
// probability distribution in label order. Both take the positional feature
// vector produced by FeatureVector.Vector.
//
// A Scorer is optional: the pipeline treats its absence as a recognized
// degraded mode, not an error. Implementations are not required to be safe
// for concurrent use — wrap those that are not with NewSerialScorer.
type Scorer interface {
	Predict(ctx context.Context, features []float64) (int, error)
	PredictProba(ctx context.Context, features []float64) ([]float64, error)
}

// SerialScorer serializes access to a scorer whose implementation cannot
// handle concurrent calls.
type SerialScorer struct {
	mu    sync.Mutex
	inner Scorer
}

// NewSerialScorer wraps inner so that at most one call runs at a time.
func NewSerialScorer(inner Scorer) *SerialScorer {
	return &SerialScorer{inner: inner}
}

func (s *SerialScorer) Predict(ctx context.Context, features []float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Predict(ctx, features)
}

func (s *SerialScorer) PredictProba(ctx context.Context, features []float64) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.PredictProba(ctx, features)
}
