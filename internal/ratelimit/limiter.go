package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Bucket defines rate limit parameters.
type Bucket struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultBuckets are the per-endpoint rate limits. Batch is the tightest
// since one request can fan out to dozens of scorer calls.
var DefaultBuckets = map[string]Bucket{
	"predict":  {MaxRequests: 60, Window: time.Minute},
	"batch":    {MaxRequests: 10, Window: time.Minute},
	"feedback": {MaxRequests: 30, Window: time.Minute},
	"api":      {MaxRequests: 120, Window: time.Minute},
}

// Limiter is an in-memory sliding-window rate limiter per key.
type Limiter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

// New creates a new rate limiter.
func New() *Limiter {
	return &Limiter{hits: make(map[string][]time.Time)}
}

// Allow checks if a request identified by key is within the rate limit for the
// given bucket. Returns true if allowed.
func (l *Limiter) Allow(key string, bucket Bucket) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-bucket.Window)

	// Prune old entries
	times := l.hits[key]
	pruned := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}

	if len(pruned) >= bucket.MaxRequests {
		l.hits[key] = pruned
		return false
	}

	l.hits[key] = append(pruned, now)
	return true
}

// Check returns an http.StatusTooManyRequests error response if the IP is rate
// limited for the given bucket name. Returns true if the request was rejected.
func (l *Limiter) Check(w http.ResponseWriter, r *http.Request, bucketName string) bool {
	bucket, ok := DefaultBuckets[bucketName]
	if !ok {
		bucket = Bucket{MaxRequests: 60, Window: time.Minute}
	}

	ip := r.RemoteAddr
	if fwd := r.Header.Get("X-Real-IP"); fwd != "" {
		ip = fwd
	}
	key := bucketName + ":" + ip

	if l.Allow(key, bucket) {
		return false
	}

	retryAfter := strconv.Itoa(int(bucket.Window.Seconds()))
	w.Header().Set("Retry-After", retryAfter)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"Rate limited","retry_after_seconds":` + retryAfter + `}`))
	return true
}
