package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events one editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads the catalog when its files change.
type Watcher struct {
	path     string
	indexer  *Indexer
	debounce time.Duration
	logger   *slog.Logger
	onReload func(SyncResult, error)
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatchLogger sets the logger.
func WithWatchLogger(logger *slog.Logger) WatchOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithReloadHook is called after every reload attempt.
func WithReloadHook(fn func(SyncResult, error)) WatchOption {
	return func(w *Watcher) { w.onReload = fn }
}

// NewWatcher watches the catalog file or directory at path.
func NewWatcher(path string, indexer *Indexer, opts ...WatchOption) *Watcher {
	w := &Watcher{
		path:     path,
		indexer:  indexer,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx ends. A failed reload is logged and the stores
// keep serving the previous catalog.
func (w *Watcher) Run(ctx context.Context) error {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("resolve catalog path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("catalog not found: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	// editors replace files by rename, so a single file is watched through
	// its directory
	dir, only := abs, ""
	if !info.IsDir() {
		dir, only = filepath.Dir(abs), filepath.Base(abs)
	}
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	w.logger.Info("catalog_watch_started", slog.String("path", abs))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event, only) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("catalog_watch_error", slog.String("error", err.Error()))
		case <-timer.C:
			w.reload(ctx)
		}
	}
}

// relevant reports whether event touches a catalog file.
func (w *Watcher) relevant(event fsnotify.Event, only string) bool {
	if event.Op&fsnotify.Chmod == event.Op {
		return false
	}
	name := filepath.Base(event.Name)
	if only != "" {
		return name == only
	}
	return IsCatalogFile(name)
}

func (w *Watcher) reload(ctx context.Context) {
	result, err := w.indexer.LoadAndSync(ctx, w.path)
	if err != nil {
		w.logger.Warn("catalog_reload_failed",
			slog.String("path", w.path),
			slog.String("error", err.Error()))
	} else {
		w.logger.Info("catalog_reloaded",
			slog.Int("indexed", result.Indexed),
			slog.Int("removed", result.Removed))
	}
	if w.onReload != nil {
		w.onReload(result, err)
	}
}
