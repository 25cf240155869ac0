package server

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRunWithRecoveryRecoversPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	RunWithRecovery(ctx, testLogger(), "panicker", func(context.Context) {
		calls++
		cancel() // stop after the first run so the test does not wait out the backoff
		panic("boom")
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRunWithRecoveryStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	RunWithRecovery(ctx, testLogger(), "never", func(context.Context) {
		called = true
	})

	if called {
		t.Error("fn must not run once ctx is cancelled")
	}
}
