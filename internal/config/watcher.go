package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ReloadCallback receives the freshly loaded configuration.
type ReloadCallback func(cfg *Config)

// Watcher reloads the config file when it changes on disk. Invalid
// edits are logged and skipped; the last good config stays active.
type Watcher struct {
	loader    *Loader
	validator *Validator
	onReload  ReloadCallback
	watcher   *fsnotify.Watcher
	done      chan struct{}
	stopOnce  sync.Once

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// debounce soaks up the editor save dance (truncate, write, rename).
const debounce = 200 * time.Millisecond

// NewWatcher creates a watcher over the loader's config path.
func NewWatcher(loader *Loader, onReload ReloadCallback) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		loader:    loader,
		validator: NewValidator(),
		onReload:  onReload,
		watcher:   fsw,
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching. The parent directory is watched rather than
// the file itself so atomic replaces keep firing events.
func (w *Watcher) Start() error {
	configPath := w.loader.GetConfigPath()
	if err := w.watcher.Add(filepath.Dir(configPath)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go w.eventLoop(configPath)
	log.Info().Str("path", configPath).Msg("config watcher started")
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()

	return w.watcher.Close()
}

func (w *Watcher) eventLoop(configPath string) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("config watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(debounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		w.reload()
	})
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err != nil {
		log.Error().Err(err).Msg("config reload failed, keeping previous config")
		return
	}
	if err := w.validator.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("config reload rejected, keeping previous config")
		return
	}

	log.Info().Msg("config reloaded")
	w.onReload(cfg)
}
