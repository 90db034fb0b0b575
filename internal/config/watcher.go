package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"varexplorer/domain/variant"
	"varexplorer/internal"
)

// PresetWatcher reloads a presets file into a PresetStore when it changes.
// A file that fails to parse leaves the current presets in place.
type PresetWatcher struct {
	file      string
	store     *PresetStore
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	logger    *internal.Logger

	onReload   func([]variant.Region)
	onReloadMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPresetWatcher creates a watcher for file feeding store
func NewPresetWatcher(file string, store *PresetStore) (*PresetWatcher, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve presets path: %w", err)
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file system watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &PresetWatcher{
		file:      abs,
		store:     store,
		fsWatcher: fsWatcher,
		debounce:  300 * time.Millisecond,
		logger:    internal.DefaultLogger.Named("presets"),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// OnReload registers a callback run after each successful reload
func (w *PresetWatcher) OnReload(fn func([]variant.Region)) {
	w.onReloadMu.Lock()
	defer w.onReloadMu.Unlock()
	w.onReload = fn
}

// Start watches the directory holding the file, so editors that replace
// the file on save are still picked up
func (w *PresetWatcher) Start() error {
	if err := w.fsWatcher.Add(filepath.Dir(w.file)); err != nil {
		return fmt.Errorf("failed to watch presets file: %w", err)
	}
	w.wg.Add(1)
	go w.watchLoop()
	return nil
}

// Stop stops watching and waits for the loop to exit
func (w *PresetWatcher) Stop() error {
	w.cancel()
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

// Reload reads the file into the store now
func (w *PresetWatcher) Reload() error {
	regions, err := LoadPresets(w.file)
	if err != nil {
		return err
	}
	w.store.Replace(regions)
	w.logger.Info("[Presets] reloaded %d regions from %s", len(regions), w.file)

	w.onReloadMu.RLock()
	fn := w.onReload
	w.onReloadMu.RUnlock()
	if fn != nil {
		fn(regions)
	}
	return nil
}

func (w *PresetWatcher) watchLoop() {
	defer w.wg.Done()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.file {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					w.logger.Warn("[Presets] %s was removed or renamed, keeping current presets", w.file)
				}
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				if w.ctx.Err() != nil {
					return
				}
				if err := w.Reload(); err != nil {
					w.logger.Warn("[Presets] reload failed: %v", err)
				}
			})

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("[Presets] watcher error: %v", err)
		}
	}
}
