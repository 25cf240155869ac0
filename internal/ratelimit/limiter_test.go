package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAllowWithinLimit(t *testing.T) {
	l := New()
	bucket := Bucket{MaxRequests: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		if !l.Allow("ip1", bucket) {
			t.Fatalf("call %d: expected within limit", i+1)
		}
	}
}

func TestAllowDeniesAboveLimit(t *testing.T) {
	l := New()
	bucket := Bucket{MaxRequests: 2, Window: time.Minute}

	l.Allow("ip1", bucket)
	l.Allow("ip1", bucket)
	if l.Allow("ip1", bucket) {
		t.Error("expected third call to be denied")
	}
}

func TestAllowKeysIndependent(t *testing.T) {
	l := New()
	bucket := Bucket{MaxRequests: 1, Window: time.Minute}

	if !l.Allow("ip1", bucket) {
		t.Fatal("first key should pass")
	}
	if !l.Allow("ip2", bucket) {
		t.Error("expected second key to have its own budget")
	}
}

func TestAllowWindowSlides(t *testing.T) {
	l := New()
	bucket := Bucket{MaxRequests: 1, Window: 10 * time.Millisecond}

	if !l.Allow("ip1", bucket) {
		t.Fatal("first call should pass")
	}
	if l.Allow("ip1", bucket) {
		t.Fatal("second call should be denied")
	}

	time.Sleep(15 * time.Millisecond)
	if !l.Allow("ip1", bucket) {
		t.Error("expected budget to recover after the window")
	}
}

func TestCheckRejectsWith429(t *testing.T) {
	l := New()

	var rejected bool
	for i := 0; i < DefaultBuckets["batch"].MaxRequests+1; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/predict/batch", nil)
		r.RemoteAddr = "203.0.113.9:1234"
		rejected = l.Check(w, r, "batch")
		if rejected {
			if w.Code != http.StatusTooManyRequests {
				t.Errorf("status = %d, want 429", w.Code)
			}
			if w.Header().Get("Retry-After") == "" {
				t.Error("expected Retry-After header")
			}
			if !strings.Contains(w.Body.String(), "Rate limited") {
				t.Errorf("body = %q", w.Body.String())
			}
			break
		}
	}
	if !rejected {
		t.Error("expected a rejection after exceeding the bucket")
	}
}

func TestCheckUsesRealIPHeader(t *testing.T) {
	l := New()
	bucket := DefaultBuckets["batch"]

	// Exhaust the budget for one forwarded IP.
	for i := 0; i < bucket.MaxRequests; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/predict/batch", nil)
		r.Header.Set("X-Real-IP", "198.51.100.7")
		if l.Check(w, r, "batch") {
			t.Fatalf("call %d: unexpected rejection", i+1)
		}
	}

	// Same proxy, different forwarded IP: fresh budget.
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/predict/batch", nil)
	r.Header.Set("X-Real-IP", "198.51.100.8")
	if l.Check(w, r, "batch") {
		t.Error("expected a different forwarded IP to have its own budget")
	}
}

func TestCheckUnknownBucketFallsBack(t *testing.T) {
	l := New()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	if l.Check(w, r, "nonexistent") {
		t.Error("expected fallback bucket to allow the first request")
	}
}
