package classify

// Method identifies the pipeline stage that produced a verdict.
type Method string

// Stages in precedence order. The first stage to claim a URL is terminal.
const (
	MethodRuleBasedSafe      Method = "rule_based_safe"
	MethodRuleBasedMalicious Method = "rule_based_malicious"
	MethodMLHighConfidence   Method = "ml_high_confidence"
	MethodDefaultSafe        Method = "default_safe"
)

// Class labels carried in Verdict.Prediction and scorer output.
const (
	PredictionSafe      = 0
	PredictionMalicious = 1
)

// Verdict is the classification result for a single URL. It is built once
// per request and never mutated. Features are present only on the
// ml_high_confidence path, for explainability.
type Verdict struct {
	Prediction int            `json:"prediction"`
	Confidence float64        `json:"confidence"`
	Method     Method         `json:"method"`
	Message    string         `json:"message"`
	URL        string         `json:"url"`
	Features   *FeatureVector `json:"features,omitempty"`
}

// Malicious reports whether the verdict labels the URL malicious.
func (v *Verdict) Malicious() bool { return v.Prediction == PredictionMalicious }
