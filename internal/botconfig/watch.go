// watch.go implements hot reload detection for the bot config file.
//
// The bot itself reloads its config when the file changes; this
// watcher gives the operator the same view from outside the container,
// logging exactly which keys changed and optionally triggering a
// deployment restart. Editors replace files with rename+create rather
// than in-place writes, so the watcher monitors the parent directory
// and filters events by name.
package botconfig

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// defaultDebounce coalesces the bursts of events editors emit for a
// single save.
const defaultDebounce = 500 * time.Millisecond

// Change records a single configuration key change between two loads.
type Change struct {
	// Key is the dotted path of the changed value
	// (e.g. "COOLDOWN.RATE").
	Key string

	// Old and New are the stringified values before and after.
	Old string
	New string
}

// Watcher watches a bot config file for changes, reloading and
// revalidating on each write. An invalid interim state keeps the last
// good config; the watcher reports the error and waits for the next
// write.
type Watcher struct {
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	path     string
	logger   *zap.Logger
	debounce time.Duration
	current  *Loaded
	onChange func(old, new *Loaded, changes []Change)
	lastSeen time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewWatcher creates a Watcher for the config file at path. The
// initial load must succeed; a watcher with no known-good baseline
// cannot diff anything. onChange may be nil.
func NewWatcher(path string, logger *zap.Logger, onChange func(old, new *Loaded, changes []Change)) (*Watcher, error) {
	initial, err := Load(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		watcher:  fsWatcher,
		path:     initial.Path,
		logger:   logger,
		debounce: defaultDebounce,
		current:  initial,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Current returns the most recent valid config.
func (w *Watcher) Current() *Loaded {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start begins watching. Non-blocking; the event loop runs in its own
// goroutine until Stop is called or the context is cancelled.
//
// The watcher counts as running only once the directory watch is in
// place and the event loop is launched. A failed Start leaves the
// watcher stopped, so a later Stop returns immediately instead of
// waiting for an event loop that never started.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}
	w.running = true
	w.logger.Info("watching bot config", zap.String("path", w.path))

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
// Safe to call when the watcher was never started.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	_ = w.watcher.Close()
}

// run is the watcher event loop.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

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
			if !w.relevant(event) {
				continue
			}
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// relevant filters directory events down to debounced writes of the
// config file itself.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return false
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	if now.Sub(w.lastSeen) < w.debounce {
		return false
	}
	w.lastSeen = now
	return true
}

// reload re-reads the config file, diffs it against the current state,
// and publishes the new config if it is valid.
func (w *Watcher) reload() {
	loaded, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config changed but failed to load, keeping last good config",
			zap.String("path", w.path), zap.Error(err))
		return
	}
	if err := loaded.Validate(); err != nil {
		w.logger.Warn("config changed but failed validation, keeping last good config",
			zap.String("path", w.path), zap.Error(err))
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = loaded
	w.mu.Unlock()

	changes := Diff(&old.Config, &loaded.Config)
	if len(changes) == 0 {
		return
	}

	w.logger.Info("bot config updated", zap.String("path", w.path))
	for _, ch := range changes {
		w.logger.Info("config key changed",
			zap.String("key", ch.Key),
			zap.String("old", ch.Old),
			zap.String("new", ch.New))
	}

	if w.onChange != nil {
		w.onChange(old, loaded, changes)
	}
}
