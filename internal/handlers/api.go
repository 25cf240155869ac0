package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/urlsentry/urlsentry-go/internal/classify"
	"github.com/urlsentry/urlsentry-go/internal/db"
	"github.com/urlsentry/urlsentry-go/internal/feedback"
	"github.com/urlsentry/urlsentry-go/internal/ratelimit"
	"github.com/urlsentry/urlsentry-go/internal/ws"
)

// batchWorkers bounds the scorer fan-out for one batch request.
const batchWorkers = 8

// PipelineSource yields the current classification pipeline. Hot reload swaps
// pipelines out from under the handlers, so they must re-fetch per request
// instead of holding one.
type PipelineSource interface {
	Pipeline() *classify.Pipeline
}

// APIHandler serves the classification API. Wire formats for predict,
// feedback and health match the original Python service; the store and the
// WebSocket manager are optional and their absence degrades the related
// endpoints, never classification itself.
type APIHandler struct {
	pipelines  PipelineSource
	store      *db.Store
	sink       feedback.Sink
	ws         *ws.Manager
	limiter    *ratelimit.Limiter
	batchLimit int
	logger     *slog.Logger
}

// NewAPIHandler creates a new API handler. store, sink and wsManager may be
// nil.
func NewAPIHandler(
	pipelines PipelineSource,
	store *db.Store,
	sink feedback.Sink,
	wsManager *ws.Manager,
	limiter *ratelimit.Limiter,
	batchLimit int,
	logger *slog.Logger,
) *APIHandler {
	if batchLimit <= 0 {
		batchLimit = 50
	}
	return &APIHandler{
		pipelines:  pipelines,
		store:      store,
		sink:       sink,
		ws:         wsManager,
		limiter:    limiter,
		batchLimit: batchLimit,
		logger:     logger,
	}
}

// Predict handles POST /predict — classify one URL.
func (h *APIHandler) Predict(w http.ResponseWriter, r *http.Request) {
	if h.limiter.Check(w, r, "predict") {
		return
	}

	var req struct {
		URL *string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == nil {
		jsonError(w, "URL parameter required", http.StatusBadRequest)
		return
	}

	verdict, err := h.pipelines.Pipeline().Evaluate(r.Context(), *req.URL)
	if err != nil {
		if errors.Is(err, classify.ErrInvalidInput) {
			jsonError(w, "URL cannot be empty", http.StatusBadRequest)
			return
		}
		h.logger.Error("classification failed", "err", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.record(r.Context(), verdict)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(verdict)
}

// Batch handles POST /api/predict/batch — classify several URLs in one call.
// Per-URL failures are reported in-row; one bad URL never fails the batch.
func (h *APIHandler) Batch(w http.ResponseWriter, r *http.Request) {
	if h.limiter.Check(w, r, "batch") {
		return
	}

	var req struct {
		URLs []string `json:"urls"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.URLs) == 0 {
		jsonError(w, "urls parameter required", http.StatusBadRequest)
		return
	}
	if len(req.URLs) > h.batchLimit {
		jsonError(w, "too many URLs (limit "+strconv.Itoa(h.batchLimit)+")", http.StatusBadRequest)
		return
	}

	type batchItem struct {
		URL     string            `json:"url"`
		Verdict *classify.Verdict `json:"verdict,omitempty"`
		Error   string            `json:"error,omitempty"`
	}

	pipeline := h.pipelines.Pipeline()
	results := make([]batchItem, len(req.URLs))

	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(batchWorkers)
	for i, url := range req.URLs {
		g.Go(func() error {
			verdict, err := pipeline.Evaluate(ctx, url)
			if err != nil {
				results[i] = batchItem{URL: url, Error: evaluationError(err)}
				return nil
			}
			h.record(ctx, verdict)
			results[i] = batchItem{URL: verdict.URL, Verdict: verdict}
			return nil
		})
	}
	// Workers report failures in-row and never return an error.
	_ = g.Wait()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"results": results})
}

// Feedback handles POST /feedback — record a user-reported correction.
func (h *APIHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	if h.limiter.Check(w, r, "feedback") {
		return
	}

	var req struct {
		URL           *string `json:"url"`
		ExpectedClass int     `json:"expected_class"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == nil {
		jsonError(w, "URL parameter required", http.StatusBadRequest)
		return
	}
	if req.ExpectedClass != classify.PredictionSafe && req.ExpectedClass != classify.PredictionMalicious {
		jsonError(w, "expected_class must be 0 or 1", http.StatusBadRequest)
		return
	}
	if h.sink == nil {
		jsonError(w, "feedback sink not configured", http.StatusServiceUnavailable)
		return
	}

	entry := feedback.Entry{
		URL:           *req.URL,
		ExpectedClass: req.ExpectedClass,
		Timestamp:     time.Now().Format(time.RFC3339),
		UserAgent:     r.Header.Get("User-Agent"),
	}
	if err := h.sink.Record(entry); err != nil {
		h.logger.Error("feedback write failed", "err", err)
		jsonError(w, "Failed to record feedback", http.StatusInternalServerError)
		return
	}

	if h.store != nil {
		rec := db.FeedbackRecord{
			URL:           entry.URL,
			ExpectedClass: entry.ExpectedClass,
			UserAgent:     entry.UserAgent,
		}
		if err := h.store.InsertFeedback(r.Context(), &rec); err != nil {
			h.logger.Warn("feedback insert failed", "err", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "success",
		"message": "Feedback received for model improvement",
	})
}

// Health handles GET /health.
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":       "healthy",
		"model_loaded": h.pipelines.Pipeline().ModelLoaded(),
		"timestamp":    time.Now().Format(time.RFC3339),
	})
}

// Stats handles GET /api/stats — aggregate verdict counts from the store.
func (h *APIHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		jsonError(w, "database not configured", http.StatusServiceUnavailable)
		return
	}

	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		h.logger.Error("stats query failed", "err", err)
		jsonError(w, "failed to fetch stats", http.StatusInternalServerError)
		return
	}
	breakdown, err := h.store.GetMethodBreakdown(r.Context())
	if err != nil {
		h.logger.Error("method breakdown query failed", "err", err)
		jsonError(w, "failed to fetch stats", http.StatusInternalServerError)
		return
	}

	methods := make(map[string]int64, len(breakdown))
	for _, mc := range breakdown {
		methods[mc.Method] = mc.Count
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"total_verdicts":  stats.TotalVerdicts,
		"malicious_count": stats.MaliciousCount,
		"safe_count":      stats.SafeCount,
		"avg_confidence":  stats.AvgConfidence,
		"feedback_count":  stats.FeedbackCount,
		"methods":         methods,
	})
}

// Recent handles GET /api/verdicts/recent — latest persisted verdicts.
func (h *APIHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		jsonError(w, "database not configured", http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		if n > 200 {
			n = 200
		}
		limit = n
	}

	records, err := h.store.GetRecentVerdicts(r.Context(), limit)
	if err != nil {
		h.logger.Error("recent verdicts query failed", "err", err)
		jsonError(w, "failed to fetch verdicts", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []db.VerdictRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// record persists and broadcasts a verdict. Both side effects are best
// effort and never surface to the caller.
func (h *APIHandler) record(ctx context.Context, v *classify.Verdict) {
	if h.store != nil {
		rec := db.VerdictRecord{
			URL:        v.URL,
			Prediction: v.Prediction,
			Confidence: v.Confidence,
			Method:     string(v.Method),
		}
		if err := h.store.InsertVerdict(ctx, &rec); err != nil {
			h.logger.Warn("verdict insert failed", "err", err)
		}
	}
	if h.ws != nil {
		h.ws.BroadcastVerdict(v)
	}
}

// evaluationError maps a pipeline failure to an in-row batch error string.
func evaluationError(err error) string {
	if errors.Is(err, classify.ErrInvalidInput) {
		return "URL cannot be empty"
	}
	return "Internal server error"
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
