package config

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher holds the live WeightsConfig behind an atomic pointer and
// reloads it whenever the backing file changes (§4.12 hot-reload note).
// A Watcher with no backing file (path == "") never starts a watcher
// goroutine; Current always returns the embedded defaults in that case.
type Watcher struct {
	path    string
	current atomic.Pointer[WeightsConfig]
	watcher *fsnotify.Watcher
}

// NewWatcher loads path once and, if path is non-empty, begins watching
// its parent directory for writes. Reload failures are logged and leave
// the previously loaded config in place (Load's own fallback behavior
// means the very first load can never fail outright).
func NewWatcher(path string) *Watcher {
	w := &Watcher{path: path}
	w.current.Store(Load(path))

	if path == "" {
		return w
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		configLog.Printf("could not start config watcher for %s: %v", path, err)
		return w
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		configLog.Printf("could not watch directory for %s: %v", path, err)
		_ = fw.Close()
		return w
	}
	w.watcher = fw

	go w.loop()
	return w
}

// Current returns the most recently loaded configuration. Safe for
// concurrent use; never returns nil.
func (w *Watcher) Current() *WeightsConfig {
	return w.current.Load()
}

// Close stops the underlying filesystem watcher, if any.
func (w *Watcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			configLog.Printf("weights file changed, reloading %s", w.path)
			raw, err := os.ReadFile(w.path)
			if err != nil {
				configLog.Printf("could not read weights file %s: %v, keeping previous config", w.path, err)
				continue
			}
			cfg, err := parse(raw)
			if err != nil {
				configLog.Printf("invalid weights file %s: %v, keeping previous config", w.path, err)
				continue
			}
			w.current.Store(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			configLog.Printf("config watcher error: %v", err)
		}
	}
}
