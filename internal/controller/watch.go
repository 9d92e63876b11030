package controller

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads a controller when its configuration file changes.
// Invalid files are logged and ignored; the running configuration stays.
type ConfigWatcher struct {
	path    string
	ctrl    *Controller
	watcher *fsnotify.Watcher
	logger  Logger

	reloads  atomic.Int64
	rejected atomic.Int64
}

// NewConfigWatcher starts watching path. The parent directory is watched so
// editors that replace the file on save are seen.
func NewConfigWatcher(path string, ctrl *Controller, logger Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close() //nolint:errcheck,gosec // setup failed
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	return &ConfigWatcher{path: abs, ctrl: ctrl, watcher: w, logger: logger}, nil
}

// Run handles file events until ctx is done, then closes the watcher.
func (w *ConfigWatcher) Run(ctx context.Context) {
	defer w.watcher.Close() //nolint:errcheck // shutdown

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.logger.Debug("controller config changed", "op", event.Op.String(), "file", event.Name)
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("fsnotify error", "error", err)
		}
	}
}

func (w *ConfigWatcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.rejected.Add(1)
		w.logger.Warn("ignoring invalid controller config", "file", w.path, "error", err)
		return
	}
	w.reloads.Add(1)
	w.ctrl.Reload(cfg)
}

// Reloads returns the number of accepted reloads.
func (w *ConfigWatcher) Reloads() int64 { return w.reloads.Load() }

// Rejected returns the number of ignored invalid files.
func (w *ConfigWatcher) Rejected() int64 { return w.rejected.Load() }
