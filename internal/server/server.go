package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/urlsentry/urlsentry-go/internal/handlers"
	urltls "github.com/urlsentry/urlsentry-go/internal/tls"
)

// Router builds the HTTP surface. The original Python service exposed
// the bare /predict, /feedback and /health paths; those stay, and each
// also gets an /api form alongside the endpoints that never existed in
// Python.
func (a *App) Router() http.Handler {
	api := handlers.NewAPIHandler(a, a.store, a.sink, a.wsManager, a.limiter, a.cfg.BatchLimit, a.logger)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(corsMiddleware)

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("pong"))
	})

	r.Post("/predict", api.Predict)
	r.Post("/api/predict", api.Predict)
	r.Post("/api/predict/batch", api.Batch)

	r.Post("/feedback", api.Feedback)
	r.Post("/api/feedback", api.Feedback)

	r.Get("/health", api.Health)
	r.Get("/api/health", api.Health)

	r.Get("/api/stats", api.Stats)
	r.Get("/api/verdicts/recent", api.Recent)

	r.Get("/ws/verdicts", a.wsManager.HandleWS)

	return r
}

// Run serves HTTP until ctx is cancelled or a shutdown signal arrives.
// When TLS domains are configured, certificates come from ACME and the
// server listens on the HTTPS port instead.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	router := a.Router()
	a.startReloader(ctx)
	a.logEndpoints()

	if len(a.cfg.TLSDomains) > 0 {
		cm := urltls.NewCertManager(a.cfg.TLSDomains, a.cfg.ACMEEmail, a.cfg.Production(), a.logger)
		return cm.ListenAndServe(router)
	}

	srv := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // WebSocket connections need unlimited write time
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
			a.logger.Info("shutdown signal received")
		case <-ctx.Done():
		}
		cancel() // stop the file watcher

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown failed", "err", err)
		}
	}()

	a.logger.Info("server starting", "port", a.cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}

// startReloader watches the rule and model files so edits take effect
// without a restart. Watching is best effort — a missing watcher just
// means reloads require a restart.
func (a *App) startReloader(ctx context.Context) {
	reloader, err := NewReloader(a, []string{a.cfg.RulesPath, a.cfg.ModelPath})
	if err != nil {
		a.logger.Warn("hot-reload disabled", "err", err)
		return
	}
	if len(reloader.paths) == 0 {
		return
	}
	a.logger.Info("hot-reload enabled", "paths", reloader.paths)
	go RunWithRecovery(ctx, a.logger, "hot-reload", func(ctx context.Context) {
		reloader.Run(ctx)
	})
}

// logEndpoints mirrors the startup banner the Python service printed.
func (a *App) logEndpoints() {
	a.logger.Info("endpoints registered",
		"predict", "POST /predict",
		"batch", "POST /api/predict/batch",
		"feedback", "POST /feedback",
		"health", "GET /health",
		"stats", "GET /api/stats",
		"recent", "GET /api/verdicts/recent",
		"live_verdicts", "GET /ws/verdicts",
	)
}

// corsMiddleware adds CORS headers matching the Python backend configuration.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
