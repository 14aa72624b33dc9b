// Package watch reports changes to a single file by watching its directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events an editor or an atomic
// rename produces for one save.
const DefaultDebounce = 250 * time.Millisecond

// Watcher calls a function after the watched file has settled.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func()
	watcher  *fsnotify.Watcher
}

// New watches path. The parent directory must exist; the file itself may
// not. The directory is watched so that atomic replacements are seen.
func New(path string, debounce time.Duration, onChange func()) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		onChange: onChange,
		watcher:  w,
	}, nil
}

// Run delivers change callbacks until ctx is done. It closes the underlying
// watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			slog.Debug("config file event", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case <-timer.C:
			slog.Info("config file changed", "path", w.path)
			w.onChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}
