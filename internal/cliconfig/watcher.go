package cliconfig

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/atalanta-labs/wikibatch/pkg/log"
)

// DefaultWatchDebounce is the delay after a file event before reloading.
// Editors replace config files with several rapid-fire writes.
const DefaultWatchDebounce = 100 * time.Millisecond

// Watcher monitors a config file and reapplies it over a baseline Config
// when it changes.
//
// The baseline is the flag- and environment-resolved configuration from
// startup; file values that a flag pinned stay pinned across reloads.
type Watcher struct {
	path     string
	base     Config
	changed  map[string]bool
	onReload func(Config)
	debounce time.Duration
	logger   log.Logger

	mu       sync.Mutex
	timer    *time.Timer
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher for the config file at path. onReload is
// invoked with each successfully reloaded and validated configuration.
func NewWatcher(path string, base Config, changed map[string]bool, onReload func(Config), logger log.Logger) *Watcher {
	if logger == nil {
		logger = log.NewNoop()
	}
	return &Watcher{
		path:     path,
		base:     base,
		changed:  changed,
		onReload: onReload,
		debounce: DefaultWatchDebounce,
		logger:   logger,
	}
}

// Start begins watching. It returns once the underlying filesystem watch is
// established; reloads are delivered from a background goroutine until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory, not the file: rename-and-replace saves would
	// otherwise drop the watch.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.watchLoop(watchCtx, watcher)

	w.logger.Info("config watcher started", log.String("path", w.path))
	return nil
}

// Stop terminates the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

func (w *Watcher) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer w.wg.Done()
	defer watcher.Close()

	target := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

// reload reads the file, layers it over the baseline, validates, and hands
// the result to the callback. A broken file keeps the previous configuration.
func (w *Watcher) reload() {
	fc, err := LoadFileConfig(w.path)
	if err != nil {
		w.logger.Error("config reload failed", log.Err(err))
		return
	}

	cfg := w.base
	if err := ApplyFileConfig(&cfg, fc, w.changed); err != nil {
		w.logger.Error("config reload failed", log.Err(err))
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Error("reloaded config invalid", log.Err(err))
		return
	}

	w.logger.Info("configuration reloaded", log.String("path", w.path))
	w.onReload(cfg)
}
