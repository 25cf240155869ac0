package server

import (
	"context"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

const maxRestartBackoff = 5 * time.Minute

// RunWithRecovery runs fn in a loop, recovering from panics and
// restarting with exponential backoff. It stops when ctx is cancelled.
// The file watcher runs under this so a watcher panic never takes the
// server down.
func RunWithRecovery(ctx context.Context, logger *slog.Logger, name string, fn func(ctx context.Context)) {
	backoff := time.Second
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			logger.Info("goroutine stopped", "name", name)
			return
		default:
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("goroutine panicked",
						"name", name,
						"panic", r,
						"stack", string(debug.Stack()),
						"attempt", attempt,
					)
				}
			}()
			fn(ctx)
		}()

		select {
		case <-ctx.Done():
			return
		default:
		}

		logger.Warn("goroutine restarting", "name", name, "attempt", attempt+1, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxRestartBackoff {
			backoff = maxRestartBackoff
		}
	}
}

// SetupLogger creates a structured JSON logger on stdout.
func SetupLogger(level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
