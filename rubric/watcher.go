package rubric

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long the watcher waits for more changes before
// reloading. Rubric edits usually touch several files in quick succession.
const defaultDebounce = 500 * time.Millisecond

// Watcher reloads a directory-backed Registry when rubric files change.
// A version bump picked up here changes cache keys downstream immediately;
// no cache purge is required.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	pendingMu sync.Mutex
	pending   bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce delay before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher creates a watcher for the registry's directory. The registry
// must be directory-backed.
func NewWatcher(registry *Registry, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		registry: registry,
		watcher:  fsw,
		logger:   slog.Default(),
		debounce: defaultDebounce,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start begins watching and reloading. It returns immediately; processing
// runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.registry.dir); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Rubric watcher started",
		"dir", w.registry.dir,
		"debounce", w.debounce)

	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// processEvents consumes fsnotify events and triggers debounced reloads.
func (w *Watcher) processEvents(ctx context.Context) {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isRubricFile(event.Name) {
				continue
			}
			w.pendingMu.Lock()
			if !w.pending {
				w.pending = true
				timer.Reset(w.debounce)
			}
			w.pendingMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Rubric watcher error", "error", err)

		case <-timer.C:
			w.pendingMu.Lock()
			w.pending = false
			w.pendingMu.Unlock()

			if err := w.registry.Reload(); err != nil {
				// Keep serving the previous index on a bad edit
				w.logger.Error("Rubric reload failed, keeping previous rubrics",
					"error", err)
				continue
			}
			w.logger.Info("Rubrics reloaded")
		}
	}
}

// isRubricFile reports whether a changed path is a rubric YAML file.
func isRubricFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}
