package skills

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Loader whenever a file under one of its directories
// changes, so new/edited/removed skills take effect without a restart.
type Watcher struct {
	loader *Loader
	fsw    *fsnotify.Watcher
}

// NewWatcher builds a Watcher over loader's configured directories.
// Directories that don't exist yet are skipped (skills are optional, and
// an agent's workspace skills/ dir may not exist at startup).
func NewWatcher(loader *Loader) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range loader.dirs {
		if err := fsw.Add(dir); err != nil {
			slog.Debug("skills watcher: skip dir", "dir", dir, "error", err)
		}
	}

	return &Watcher{loader: loader, fsw: fsw}, nil
}

// Start runs the watch loop until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					if err := w.loader.Load(); err != nil {
						slog.Warn("skills watcher: reload failed", "error", err)
					}
				}
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				slog.Warn("skills watcher: fsnotify error", "error", err)
			}
		}
	}()
	return nil
}

// Stop closes the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	_ = w.fsw.Close()
}
