// Package watcher provides optional hot-reload of the load balancer's
// configuration file. Grounded on the fsnotify event-loop shape shared
// by the retrieval pack's watcher implementations (fsnotify.Watcher +
// a goroutine selecting on Events/Errors), adapted here to reparse and
// revalidate the configuration file on every write and hand the
// caller a fresh *config.Config rather than a raw filesystem event.
package watcher

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/jeffgicharu/load-balancer/internal/config"
	"github.com/jeffgicharu/load-balancer/internal/logging"
)

// ReloadFunc is invoked with a newly parsed and validated configuration
// whenever the watched file changes. Returning an error does not stop
// the watcher; it is only logged.
type ReloadFunc func(*config.Config) error

// Watcher observes a configuration file's directory for writes and
// triggers a reload callback when the file itself changes. Watching
// the containing directory, rather than the file directly, survives
// editors that replace a file via rename instead of writing in place.
type Watcher struct {
	path     string
	onReload ReloadFunc
	logger   *logging.Logger

	fsw  *fsnotify.Watcher
	done chan struct{}
}

// New creates a Watcher for the config file at path. Call Start to
// begin watching.
func New(path string, onReload ReloadFunc, logger *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watcher: watch %s: %w", dir, err)
	}

	return &Watcher{
		path:     path,
		onReload: onReload,
		logger:   logger,
		fsw:      fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start launches the watch loop in a background goroutine.
func (w *Watcher) Start() {
	go w.run()
}

func (w *Watcher) run() {
	target := filepath.Clean(w.path)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Error("config watcher error", map[string]interface{}{"error": err.Error()})
			}

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := config.Load(w.path)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("config reload failed, keeping current config", map[string]interface{}{
				"path": w.path, "error": err.Error(),
			})
		}
		return
	}

	if err := w.onReload(cfg); err != nil {
		if w.logger != nil {
			w.logger.Error("config reload callback failed", map[string]interface{}{
				"path": w.path, "error": err.Error(),
			})
		}
		return
	}

	if w.logger != nil {
		w.logger.Info("config reloaded", map[string]interface{}{"path": w.path})
	}
}

// Stop ends the watch loop and releases the underlying inotify handle.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsw.Close()
}
