// Package watcher reloads the catalog when its artifact file changes on disk.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// ReloadFunc rebuilds and publishes the catalog. An error leaves the current catalog in place.
type ReloadFunc func(ctx context.Context) error

// Watcher watches one artifact file and invokes reload after writes settle.
// It watches the parent directory so that atomic replace-by-rename is seen too.
type Watcher struct {
	path     string
	reload   ReloadFunc
	debounce time.Duration
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timer    *time.Timer
	reloadMu sync.Mutex // held for the duration of each reload
	ctx      context.Context
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	logger   *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for watch events and reload failures.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long the file must stay quiet before reload runs.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for the artifact at path.
func NewWatcher(path string, reload ReloadFunc, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		reload:   reload,
		debounce: defaultDebounce,
		done:     make(chan struct{}),
		logger:   zap.NewNop(),
	}
	if abs, err := filepath.Abs(path); err == nil {
		w.path = abs
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the watched artifact path.
func (w *Watcher) Path() string {
	return w.path
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	dir := filepath.Dir(w.path)
	if _, err := os.Stat(dir); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return err
	}
	w.watcher = watcher
	w.ctx = ctx
	w.started = true
	w.logger.Debug("watcher starting", zap.String("artifact", w.path), zap.Duration("debounce", w.debounce))
	go w.run(ctx, watcher)
	return nil
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !w.matches(ev.Name) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
	// Remove and Rename leave no file to load; the Create that completes a replace triggers the reload.
	if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
		w.scheduleReload()
	}
}

// matches reports whether name is the artifact itself. SQLite sidecars (-wal, -shm,
// -journal) are ignored: readers may create them, and a writer's changes reach the main
// file when it checkpoints or closes.
func (w *Watcher) matches(name string) bool {
	clean := filepath.Clean(name)
	if abs, err := filepath.Abs(clean); err == nil {
		clean = abs
	}
	return clean == w.path
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	ctx := w.ctx
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.timer == t {
			w.timer = nil
		}
		w.mu.Unlock()
		w.reloadMu.Lock()
		defer w.reloadMu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.logger.Info("artifact changed, reloading catalog", zap.String("artifact", w.path))
		if err := w.reload(ctx); err != nil {
			w.logger.Warn("catalog reload failed, keeping previous catalog",
				zap.String("artifact", w.path), zap.Error(err))
		}
	})
	w.timer = t
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
