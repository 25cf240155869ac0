package classify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type mockScorer struct {
	label        int
	probs        []float64
	err          error
	predictCalls int
	probaCalls   int
}

func (m *mockScorer) Predict(ctx context.Context, features []float64) (int, error) {
	m.predictCalls++
	if m.err != nil {
		return 0, m.err
	}
	return m.label, nil
}

func (m *mockScorer) PredictProba(ctx context.Context, features []float64) ([]float64, error) {
	m.probaCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.probs, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestPipeline(scorer Scorer) *Pipeline {
	return NewPipeline(NewDefaultEngine(), scorer, testLogger())
}

func TestEvaluateSafeList(t *testing.T) {
	p := newTestPipeline(nil)

	v, err := p.Evaluate(context.Background(), "https://github.com/golang/go")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Prediction != PredictionSafe {
		t.Errorf("prediction = %d, want %d", v.Prediction, PredictionSafe)
	}
	if v.Method != MethodRuleBasedSafe {
		t.Errorf("method = %q, want %q", v.Method, MethodRuleBasedSafe)
	}
	if v.Confidence != 99.0 {
		t.Errorf("confidence = %v, want 99.0", v.Confidence)
	}
	if v.Message != "Known safe domain" {
		t.Errorf("message = %q", v.Message)
	}
	if v.Features != nil {
		t.Error("rule verdicts should not carry features")
	}
}

func TestEvaluateMaliciousList(t *testing.T) {
	p := newTestPipeline(nil)

	v, err := p.Evaluate(context.Background(), "http://localhost/phish")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Prediction != PredictionMalicious {
		t.Errorf("prediction = %d, want %d", v.Prediction, PredictionMalicious)
	}
	if v.Method != MethodRuleBasedMalicious {
		t.Errorf("method = %q, want %q", v.Method, MethodRuleBasedMalicious)
	}
	if v.Confidence != 99.0 {
		t.Errorf("confidence = %v, want 99.0", v.Confidence)
	}
	if v.Message != "Known malicious pattern" {
		t.Errorf("message = %q", v.Message)
	}
}

func TestEvaluateSafeBeatsMalicious(t *testing.T) {
	p := newTestPipeline(nil)

	// Matches both lists; the allow check runs first and is terminal.
	v, err := p.Evaluate(context.Background(), "http://google.com/login@evil")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Method != MethodRuleBasedSafe {
		t.Errorf("method = %q, want %q", v.Method, MethodRuleBasedSafe)
	}
	if v.Prediction != PredictionSafe {
		t.Errorf("prediction = %d, want %d", v.Prediction, PredictionSafe)
	}
}

func TestEvaluateEmptyURL(t *testing.T) {
	p := newTestPipeline(nil)

	if _, err := p.Evaluate(context.Background(), ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty URL: err = %v, want ErrInvalidInput", err)
	}
	if _, err := p.Evaluate(context.Background(), "   "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("whitespace URL: err = %v, want ErrInvalidInput", err)
	}
}

func TestEvaluateTrimsURL(t *testing.T) {
	p := newTestPipeline(nil)

	v, err := p.Evaluate(context.Background(), "  https://github.com  ")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.URL != "https://github.com" {
		t.Errorf("verdict URL = %q, want trimmed form", v.URL)
	}
}

func TestEvaluateNoScorerDefaultsSafe(t *testing.T) {
	p := newTestPipeline(nil)

	v, err := p.Evaluate(context.Background(), "https://unknown-site.example.org")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Method != MethodDefaultSafe {
		t.Errorf("method = %q, want %q", v.Method, MethodDefaultSafe)
	}
	if v.Prediction != PredictionSafe {
		t.Errorf("prediction = %d, want %d", v.Prediction, PredictionSafe)
	}
	if v.Confidence != 60.0 {
		t.Errorf("confidence = %v, want 60.0", v.Confidence)
	}
	if v.Message != "Low confidence or no model - defaulting to safe" {
		t.Errorf("message = %q", v.Message)
	}
}

func TestEvaluateLowConfidenceDefaultsSafe(t *testing.T) {
	// Scorer votes malicious at 60% confidence; the gate discards it.
	scorer := &mockScorer{label: 1, probs: []float64{0.4, 0.6}}
	p := newTestPipeline(scorer)

	v, err := p.Evaluate(context.Background(), "https://unknown-site.example.org")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Method != MethodDefaultSafe {
		t.Errorf("method = %q, want %q", v.Method, MethodDefaultSafe)
	}
	if v.Prediction != PredictionSafe {
		t.Errorf("prediction = %d, want %d; low-confidence votes must not leak", v.Prediction, PredictionSafe)
	}
	if v.Confidence != 60.0 {
		t.Errorf("confidence = %v, want 60.0", v.Confidence)
	}
	if v.Features != nil {
		t.Error("default verdicts should not carry features")
	}
}

func TestEvaluateHighConfidenceScorer(t *testing.T) {
	scorer := &mockScorer{label: 1, probs: []float64{0.1, 0.9}}
	p := newTestPipeline(scorer)

	url := "https://unknown-site.example.org/claim"
	v, err := p.Evaluate(context.Background(), url)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Method != MethodMLHighConfidence {
		t.Errorf("method = %q, want %q", v.Method, MethodMLHighConfidence)
	}
	if v.Prediction != PredictionMalicious {
		t.Errorf("prediction = %d, want %d", v.Prediction, PredictionMalicious)
	}
	if v.Confidence != 90.0 {
		t.Errorf("confidence = %v, want 90.0", v.Confidence)
	}
	if v.Message != "ML model prediction" {
		t.Errorf("message = %q", v.Message)
	}
	if v.Features == nil {
		t.Fatal("high-confidence verdicts must echo features")
	}
	if want := Extract(url); *v.Features != want {
		t.Errorf("features = %+v, want %+v", *v.Features, want)
	}
}

func TestEvaluateConfidenceRounding(t *testing.T) {
	scorer := &mockScorer{label: 0, probs: []float64{0.876543, 0.123457}}
	p := newTestPipeline(scorer)

	v, err := p.Evaluate(context.Background(), "https://unknown-site.example.org")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Confidence != 87.65 {
		t.Errorf("confidence = %v, want 87.65", v.Confidence)
	}
}

func TestEvaluateThresholdBoundary(t *testing.T) {
	// Exactly 75 passes the gate; the check is strictly-below.
	scorer := &mockScorer{label: 0, probs: []float64{0.75, 0.25}}
	p := newTestPipeline(scorer)

	v, err := p.Evaluate(context.Background(), "https://unknown-site.example.org")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Method != MethodMLHighConfidence {
		t.Errorf("method = %q, want %q at the threshold", v.Method, MethodMLHighConfidence)
	}
}

func TestEvaluateScorerError(t *testing.T) {
	scorer := &mockScorer{err: errors.New("upstream unavailable")}
	p := newTestPipeline(scorer)

	if _, err := p.Evaluate(context.Background(), "https://unknown-site.example.org"); err == nil {
		t.Error("expected scorer failure to propagate")
	}
}

func TestEvaluateRulesShortCircuitScorer(t *testing.T) {
	scorer := &mockScorer{label: 1, probs: []float64{0.0, 1.0}}
	p := newTestPipeline(scorer)

	if _, err := p.Evaluate(context.Background(), "https://github.com"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if _, err := p.Evaluate(context.Background(), "http://localhost/x"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if scorer.predictCalls != 0 || scorer.probaCalls != 0 {
		t.Errorf("scorer called %d/%d times for rule-matched URLs, want 0/0",
			scorer.predictCalls, scorer.probaCalls)
	}
}

func TestModelLoaded(t *testing.T) {
	if newTestPipeline(nil).ModelLoaded() {
		t.Error("ModelLoaded() = true with no scorer")
	}
	if !newTestPipeline(&mockScorer{}).ModelLoaded() {
		t.Error("ModelLoaded() = false with a scorer")
	}
}
