package db

import "time"

type VerdictRecord struct {
	ID         int64     `json:"id"`
	URL        string    `json:"url"`
	Prediction int       `json:"prediction"`
	Confidence float64   `json:"confidence"`
	Method     string    `json:"method"`
	CreatedAt  time.Time `json:"created_at"`
}

type FeedbackRecord struct {
	ID            int64     `json:"id"`
	URL           string    `json:"url"`
	ExpectedClass int       `json:"expected_class"`
	UserAgent     string    `json:"user_agent,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Stats aggregation types
type Stats struct {
	TotalVerdicts  int64   `json:"total_verdicts"`
	MaliciousCount int64   `json:"malicious_count"`
	SafeCount      int64   `json:"safe_count"`
	AvgConfidence  float64 `json:"avg_confidence"`
	FeedbackCount  int64   `json:"feedback_count"`
}

type MethodCount struct {
	Method string `json:"method"`
	Count  int64  `json:"count"`
}
