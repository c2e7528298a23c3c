package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/felixgeelhaar/adcompliance/infrastructure/logging"
)

// DefaultDebounce groups bursts of file events into one change.
const DefaultDebounce = 2 * time.Second

// Watcher calls OnChange once per burst of writes to text files under a
// directory tree.
type Watcher struct {
	Dir      string
	Debounce time.Duration
	OnChange func(ctx context.Context) error
}

// Run watches until ctx is done. Errors returned by OnChange are logged and
// watching goes on. New subdirectories are watched as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := addTree(watcher, w.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.Dir, err)
	}

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && isDir(ev.Name) {
				if err := addTree(watcher, ev.Name); err != nil {
					logging.Warn().Add(logging.File(ev.Name)).Add(logging.ErrorField(err)).Msg("failed to watch directory")
				}
				continue
			}
			if !IsText(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			logging.Debug().Add(logging.File(ev.Name)).Add(logging.Str("op", ev.Op.String())).Msg("legislation changed")
			fire = time.After(debounce)

		case <-fire:
			fire = nil
			if w.OnChange == nil {
				continue
			}
			if err := w.OnChange(ctx); err != nil {
				logging.Error().Add(logging.ErrorField(err)).Msg("re-index failed")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn().Add(logging.ErrorField(err)).Msg("watch error")
		}
	}
}

func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
