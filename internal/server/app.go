package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/urlsentry/urlsentry-go/internal/classify"
	"github.com/urlsentry/urlsentry-go/internal/config"
	"github.com/urlsentry/urlsentry-go/internal/db"
	"github.com/urlsentry/urlsentry-go/internal/feedback"
	"github.com/urlsentry/urlsentry-go/internal/ratelimit"
	"github.com/urlsentry/urlsentry-go/internal/ws"
)

// App wires the classification pipeline, storage, feedback log and
// WebSocket feed into one unit the HTTP layer serves. The pipeline is
// swapped whole on reload; handlers fetch it per request through
// Pipeline, so in-flight evaluations keep the snapshot they started
// with.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	mu       sync.RWMutex
	pipeline *classify.Pipeline

	store     *db.Store
	sink      feedback.Sink
	wsManager *ws.Manager
	limiter   *ratelimit.Limiter
}

// NewApp assembles the service from configuration. The database is
// optional — no DATABASE_URL means verdicts are not persisted and the
// stats endpoints report unavailable. A configured database that cannot
// be reached is an error: the operator asked for persistence.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pipeline, err := buildPipeline(cfg, logger)
	if err != nil {
		return nil, err
	}

	var store *db.Store
	if cfg.DatabaseURL != "" {
		store, err = db.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
	}

	sink, err := feedback.Open(cfg.FeedbackPath)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, fmt.Errorf("open feedback log: %w", err)
	}

	app := &App{
		cfg:       cfg,
		logger:    logger,
		pipeline:  pipeline,
		store:     store,
		sink:      sink,
		wsManager: ws.NewManager(store, logger),
		limiter:   ratelimit.New(),
	}

	logger.Info("classifier ready",
		"safe_domains", pipeline.Engine().SafeCount(),
		"malicious_patterns", pipeline.Engine().MaliciousCount(),
		"model_loaded", pipeline.ModelLoaded(),
	)
	return app, nil
}

// Pipeline returns the current classification pipeline.
func (a *App) Pipeline() *classify.Pipeline {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pipeline
}

// Reload rebuilds the pipeline from the rule and model files on disk and
// swaps it in. Called by the file watcher; safe to call concurrently
// with request handling.
func (a *App) Reload() error {
	pipeline, err := buildPipeline(a.cfg, a.logger)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.pipeline = pipeline
	a.mu.Unlock()

	a.logger.Info("classification pipeline reloaded",
		"safe_domains", pipeline.Engine().SafeCount(),
		"malicious_patterns", pipeline.Engine().MaliciousCount(),
		"model_loaded", pipeline.ModelLoaded(),
	)
	return nil
}

// Close releases the feedback log and the database pool.
func (a *App) Close() {
	if err := a.sink.Close(); err != nil {
		a.logger.Warn("close feedback log", "err", err)
	}
	if a.store != nil {
		a.store.Close()
	}
}

// buildPipeline loads rule lists and picks a scorer. Scorer preference:
// local coefficient file, then the Anthropic API, then none — matching
// the original Python service, which ran rules-only when model.pkl was
// absent.
func buildPipeline(cfg *config.Config, logger *slog.Logger) (*classify.Pipeline, error) {
	lists, err := classify.LoadLists(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load rule lists: %w", err)
	}
	engine := classify.NewEngine(lists)

	scorer := buildScorer(cfg, logger)
	return classify.NewPipeline(engine, scorer, logger), nil
}

func buildScorer(cfg *config.Config, logger *slog.Logger) classify.Scorer {
	if cfg.ModelPath != "" {
		scorer, err := classify.LoadCoeffScorer(cfg.ModelPath)
		if err == nil {
			logger.Info("model loaded", "path", cfg.ModelPath)
			return scorer
		}
		// The Python service also kept serving with model=None when the
		// pickle failed to load.
		logger.Warn("model load failed, continuing without it", "path", cfg.ModelPath, "err", err)
	}

	if cfg.AnthropicAPIKey != "" {
		logger.Info("using Anthropic scorer", "model", cfg.AnthropicModel)
		return classify.NewSerialScorer(classify.NewAnthropicScorer(cfg.AnthropicAPIKey, cfg.AnthropicModel))
	}

	return nil
}
