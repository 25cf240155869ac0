package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// defaultAnthropicModel is used when no model is configured.
const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// AnthropicScorer scores feature vectors by asking Claude for a probability
// of maliciousness. It implements Scorer over the same positional contract
// as the coefficients scorer, so the two are interchangeable behind the
// pipeline's confidence gate. Stateless between calls and safe for
// concurrent use.
type AnthropicScorer struct {
	client anthropic.Client
	model  string
}

// NewAnthropicScorer builds a scorer against the Anthropic API. An empty
// model selects the default.
func NewAnthropicScorer(apiKey, model string) *AnthropicScorer {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicScorer{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Predict returns 1 when the scored probability of maliciousness reaches 0.5.
func (a *AnthropicScorer) Predict(ctx context.Context, features []float64) (int, error) {
	probs, err := a.PredictProba(ctx, features)
	if err != nil {
		return 0, err
	}
	if probs[PredictionMalicious] >= 0.5 {
		return PredictionMalicious, nil
	}
	return PredictionSafe, nil
}

// PredictProba returns [P(safe), P(malicious)]. API failures propagate to the
// caller; there is no retry and no degraded guess.
func (a *AnthropicScorer) PredictProba(ctx context.Context, features []float64) ([]float64, error) {
	if len(features) != NumFeatures {
		return nil, fmt.Errorf("feature vector has %d values, want %d", len(features), NumFeatures)
	}

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 100,
		System: []anthropic.TextBlockParam{
			{Text: anthropicScorerPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(formatFeatures(features))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic scorer: %w", err)
	}
	if len(message.Content) == 0 {
		return nil, fmt.Errorf("anthropic scorer: empty response")
	}

	p, err := parseProbability(strings.TrimSpace(message.Content[0].Text))
	if err != nil {
		return nil, fmt.Errorf("anthropic scorer: %w", err)
	}
	return []float64{1 - p, p}, nil
}

// formatFeatures renders the vector as name=value lines in positional order.
func formatFeatures(features []float64) string {
	var b strings.Builder
	for i, name := range featureNames {
		fmt.Fprintf(&b, "%s=%g\n", name, features[i])
	}
	return b.String()
}

// parseProbability extracts the probability from the model's reply, handling
// output that wraps the JSON object in extra text.
func parseProbability(content string) (float64, error) {
	var reply struct {
		ProbabilityMalicious *float64 `json:"probability_malicious"`
	}
	if err := json.Unmarshal([]byte(content), &reply); err != nil || reply.ProbabilityMalicious == nil {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start < 0 || end <= start {
			return 0, fmt.Errorf("no JSON object in response")
		}
		if err := json.Unmarshal([]byte(content[start:end+1]), &reply); err != nil {
			return 0, fmt.Errorf("parse response: %w", err)
		}
	}
	if reply.ProbabilityMalicious == nil {
		return 0, fmt.Errorf("response missing probability_malicious")
	}
	p := *reply.ProbabilityMalicious
	if p < 0 || p > 1 {
		return 0, fmt.Errorf("probability %g out of range", p)
	}
	return p, nil
}

const anthropicScorerPrompt = `You are a URL risk scorer. You receive eleven numeric features extracted from a URL:
url_length, num_dots, has_https, has_http, has_ip, has_at_symbol, num_slashes, num_hyphens, is_shortened, num_digits, has_suspicious_words.
Estimate how likely the URL is malicious and respond with a JSON object:
{"probability_malicious": 0.0-1.0}
Only respond with the JSON object, no other text.`
