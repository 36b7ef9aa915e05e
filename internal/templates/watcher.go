package templates

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Watcher reloads a template directory into a Holder when its YAML files change.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	holder   *Holder
	dir      string
	debounce time.Duration
	pending  time.Time
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}

	reloads int
	failed  int
}

// NewWatcher creates a watcher for dir. Call Start to begin watching.
func NewWatcher(dir string, holder *Holder) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, eris.Wrap(err, "templates: create watcher")
	}
	return &Watcher{
		watcher:  fw,
		holder:   holder,
		dir:      dir,
		debounce: 250 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// SetDebounce changes how long the watcher waits after the last change.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	w.debounce = d
	w.mu.Unlock()
}

// Start watches the directory and its dishes/ subdirectory. Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		return eris.Wrapf(err, "templates: watch %s", w.dir)
	}
	dishes := filepath.Join(w.dir, "dishes")
	if info, err := os.Stat(dishes); err == nil && info.IsDir() {
		if err := w.watcher.Add(dishes); err != nil {
			zap.L().Warn("templates: watch dishes dir failed", zap.String("dir", dishes), zap.Error(err))
		}
	}

	zap.L().Info("templates: watching", zap.String("dir", w.dir))
	go w.run(ctx)
	return nil
}

// Stop ends the watch loop and releases the fsnotify watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		zap.L().Warn("templates: close watcher", zap.Error(err))
	}
}

// Stats returns the number of successful and failed reloads.
func (w *Watcher) Stats() (reloads, failed int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads, w.failed
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			zap.L().Warn("templates: watcher error", zap.Error(err))
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".yaml") && !strings.HasSuffix(event.Name, ".yml") {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.mu.Lock()
	w.pending = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if w.pending.IsZero() || time.Since(w.pending) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.pending = time.Time{}
	w.mu.Unlock()

	snap, err := w.holder.Reload(w.dir)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.failed++
		zap.L().Warn("templates: reload failed, keeping current snapshot",
			zap.String("dir", w.dir),
			zap.Error(err),
		)
		return
	}
	w.reloads++
	zap.L().Info("templates: reloaded", zap.String("dir", w.dir), zap.String("version", snap.Version))
}
