package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// ConfidenceThreshold is the minimum scaled probability (0-100) required to
// trust the scorer's output over the default-safe fallback.
const ConfidenceThreshold = 75.0

// Confidence values for the terminal states that bypass the scorer.
const (
	ruleConfidence    = 99.0
	defaultConfidence = 60.0
)

// Verdict messages, part of the wire format.
const (
	msgRuleSafe      = "Known safe domain"
	msgRuleMalicious = "Known malicious pattern"
	msgMLPrediction  = "ML model prediction"
	msgDefaultSafe   = "Low confidence or no model - defaulting to safe"
)

// ErrInvalidInput is returned for empty or whitespace-only URLs.
var ErrInvalidInput = errors.New("url cannot be empty")

// Pipeline sequences the rule engine, the optional scorer, and the
// default-safe fallback into exactly one verdict per URL. Its collaborators
// are fixed at construction and read-only afterwards, so a Pipeline is safe
// for concurrent use; callers swap in a whole new Pipeline to change rules.
type Pipeline struct {
	engine *Engine
	scorer Scorer
	logger *slog.Logger
}

// NewPipeline builds a Pipeline. scorer may be nil, in which case evaluation
// degrades to rule checks plus the default-safe fallback.
func NewPipeline(engine *Engine, scorer Scorer, logger *slog.Logger) *Pipeline {
	return &Pipeline{engine: engine, scorer: scorer, logger: logger}
}

// ModelLoaded reports whether a scorer is configured.
func (p *Pipeline) ModelLoaded() bool { return p.scorer != nil }

// Engine returns the rule engine the pipeline evaluates against.
func (p *Pipeline) Engine() *Engine { return p.engine }

// Evaluate classifies one URL. Stages run in strict precedence order and the
// first hit is terminal: allow rule, deny rule, confidence-gated scorer,
// default safe. ErrInvalidInput is returned for empty input; a scorer
// failure propagates unretried.
func (p *Pipeline) Evaluate(ctx context.Context, rawURL string) (*Verdict, error) {
	url := strings.TrimSpace(rawURL)
	if url == "" {
		return nil, ErrInvalidInput
	}

	if p.engine.IsDefinitelySafe(url) {
		return &Verdict{
			Prediction: PredictionSafe,
			Confidence: ruleConfidence,
			Method:     MethodRuleBasedSafe,
			Message:    msgRuleSafe,
			URL:        url,
		}, nil
	}

	if p.engine.IsDefinitelyMalicious(url) {
		return &Verdict{
			Prediction: PredictionMalicious,
			Confidence: ruleConfidence,
			Method:     MethodRuleBasedMalicious,
			Message:    msgRuleMalicious,
			URL:        url,
		}, nil
	}

	verdict, err := p.classifyGated(ctx, url)
	if err != nil {
		return nil, err
	}
	if verdict != nil {
		return verdict, nil
	}

	return &Verdict{
		Prediction: PredictionSafe,
		Confidence: defaultConfidence,
		Method:     MethodDefaultSafe,
		Message:    msgDefaultSafe,
		URL:        url,
	}, nil
}

// classifyGated runs the scorer stage. A nil verdict with nil error means
// "fall through to default": either no scorer is configured, or the scorer's
// confidence is below the threshold.
func (p *Pipeline) classifyGated(ctx context.Context, url string) (*Verdict, error) {
	if p.scorer == nil {
		return nil, nil
	}

	features := Extract(url)
	vec := features.Vector()

	label, err := p.scorer.Predict(ctx, vec)
	if err != nil {
		return nil, fmt.Errorf("scorer predict: %w", err)
	}
	probs, err := p.scorer.PredictProba(ctx, vec)
	if err != nil {
		return nil, fmt.Errorf("scorer predict_proba: %w", err)
	}

	confidence := maxProb(probs) * 100
	if confidence < ConfidenceThreshold {
		p.logger.Debug("scorer below confidence threshold",
			"url", url,
			"confidence", confidence,
		)
		return nil, nil
	}

	return &Verdict{
		Prediction: label,
		Confidence: math.Round(confidence*100) / 100,
		Method:     MethodMLHighConfidence,
		Message:    msgMLPrediction,
		URL:        url,
		Features:   &features,
	}, nil
}

func maxProb(probs []float64) float64 {
	m := 0.0
	for _, p := range probs {
		if p > m {
			m = p
		}
	}
	return m
}
