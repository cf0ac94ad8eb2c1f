package am

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/teranos/discograph/errors"
	"github.com/teranos/discograph/logger"
)

// ConfigWatcher watches a config file for changes and triggers reload callbacks
type ConfigWatcher struct {
	configPath     string
	watcher        *fsnotify.Watcher
	callbacks      []ReloadCallback
	mu             sync.Mutex
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	done           chan struct{}
	stopOnce       sync.Once
}

// ReloadCallback is called when config is reloaded
// Receives the new config and returns any error
type ReloadCallback func(*Config) error

// NewConfigWatcher creates a new config file watcher.
// The containing directory is watched so editors that replace the file
// (write to temp, then rename) are still observed.
func NewConfigWatcher(configPath string) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		watcher.Close()
		return nil, errors.Wrapf(err, "failed to watch config directory of %s", configPath)
	}

	return &ConfigWatcher{
		configPath:     filepath.Clean(configPath),
		watcher:        watcher,
		debouncePeriod: 500 * time.Millisecond,
		done:           make(chan struct{}),
	}, nil
}

// OnReload registers a callback to be called when config is reloaded
func (cw *ConfigWatcher) OnReload(callback ReloadCallback) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// SetDebounce overrides the reload debounce period
func (cw *ConfigWatcher) SetDebounce(d time.Duration) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.debouncePeriod = d
}

// Start begins watching for config file changes
func (cw *ConfigWatcher) Start() {
	go cw.watchLoop()
}

func (cw *ConfigWatcher) watchLoop() {
	for {
		select {
		case <-cw.done:
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.configPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			logger.Logger.Infow("Config watcher detected change",
				"file", event.Name,
				"op", event.Op.String())
			cw.scheduleReload()

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logger.Logger.Warnw("Config watcher error", "error", err)
		}
	}
}

// scheduleReload debounces rapid file changes and triggers reload
func (cw *ConfigWatcher) scheduleReload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}

	cw.debounceTimer = time.AfterFunc(cw.debouncePeriod, func() {
		if err := cw.reload(); err != nil {
			logger.Logger.Errorw("Config reload failed", "error", err)
		}
	})
}

// reload re-reads the layered configuration, validates it and runs callbacks.
// An invalid file leaves the running settings untouched.
func (cw *ConfigWatcher) reload() error {
	Reset()

	newConfig, err := Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := newConfig.Validate(); err != nil {
		return errors.Wrap(err, "reloaded config is invalid, keeping previous settings")
	}

	logger.Logger.Infow("Config reloaded successfully", "path", cw.configPath)

	cw.mu.Lock()
	callbacks := make([]ReloadCallback, len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mu.Unlock()

	for _, callback := range callbacks {
		if err := callback(newConfig); err != nil {
			// Continue calling other callbacks even if one fails
			logger.Logger.Warnw("Config reload callback error", "error", err)
		}
	}

	return nil
}

// Stop stops watching for config changes
func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.stopOnce.Do(func() {
		cw.mu.Lock()
		if cw.debounceTimer != nil {
			cw.debounceTimer.Stop()
		}
		cw.mu.Unlock()

		close(cw.done)
		err = cw.watcher.Close()
	})
	return err
}
