package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader watches rule-list and model files for changes and triggers a
// pipeline rebuild.
type Reloader struct {
	watcher *fsnotify.Watcher
	app     *App
	logger  *slog.Logger
	paths   []string
}

// NewReloader creates a file watcher for the given paths. Empty and
// nonexistent paths are skipped; the caller checks how many survived.
func NewReloader(app *App, paths []string) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	var watched []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := watcher.Add(p); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch %q: %w", p, err)
		}
		watched = append(watched, p)
	}

	return &Reloader{
		watcher: watcher,
		app:     app,
		logger:  app.logger,
		paths:   watched,
	}, nil
}

// Run blocks until ctx is cancelled, reloading the pipeline after file
// changes. Rapid successive writes collapse into one reload.
func (r *Reloader) Run(ctx context.Context) {
	defer r.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					if err := r.app.Reload(); err != nil {
						r.logger.Error("hot-reload failed", "err", err)
					}
				})
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("file watcher error", "err", err)
		}
	}
}
