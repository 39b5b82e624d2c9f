package file

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/ragchat-cli/internal/logger"
)

// defaultDebounce coalesces the burst of events an editor save emits.
const defaultDebounce = 300 * time.Millisecond

// Watcher reloads the configuration when the file changes on disk and
// delivers each successfully parsed config to the callback.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func(*Config)

	mu      sync.Mutex
	pending *time.Timer
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for the config file in configDir.
// onChange runs on the watcher goroutine; keep it short.
func NewWatcher(configDir string, onChange func(*Config)) (*Watcher, error) {
	dir, err := Dir(configDir)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: editors and atomic saves
	// replace the file node.
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		dir:      dir,
		debounce: defaultDebounce,
		onChange: onChange,
		watcher:  fsw,
	}, nil
}

// Run consumes file events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != configFileName {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watcher: %v", err)
		}
	}
}

// schedule arms the debounce timer, resetting any pending reload.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
}

// reload parses the file and hands the result to the callback. A
// malformed file keeps the previous configuration active.
func (w *Watcher) reload() {
	cfg, err := Load(w.dir)
	if err != nil {
		logger.Warn("Config reload failed, keeping previous: %v", err)
		return
	}
	logger.Info("Configuration reloaded from %s", Path(w.dir))
	w.onChange(cfg)
}
