// Package watcher reports changes to external fact directories.
package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// ErrNothingToWatch is returned when none of the directories can be watched
var ErrNothingToWatch = errors.New("no watchable directories")

// DefaultDebounce is how long the watcher waits for changes to settle
const DefaultDebounce = 500 * time.Millisecond

// relevantOps are the events that can change the facts of a directory.
// Chmod matters because the execute bit selects executable sources.
const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename | fsnotify.Chmod

// Watcher watches fact directories and calls onChange once a burst of
// changes has settled, with the changed paths in sorted order
type Watcher struct {
	dirs     []string
	onChange func(paths []string)
	debounce time.Duration
	logger   *log.Logger
}

// New creates a new directory watcher
func New(dirs []string, onChange func(paths []string)) *Watcher {
	return &Watcher{
		dirs:     dirs,
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   log.Default().WithPrefix("watcher"),
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// WithLogger sets the watcher logger
func (w *Watcher) WithLogger(l *log.Logger) *Watcher {
	if l != nil {
		w.logger = l
	}
	return w
}

// Watch blocks until the context is cancelled or an error occurs.
// Directories that do not exist are skipped.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := 0
	for _, dir := range w.dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		if err := watcher.Add(abs); err != nil {
			w.logger.Debug("not watching directory", "dir", abs, "error", err)
			continue
		}
		w.logger.Info("watching fact directory", "dir", abs)
		watched++
	}
	if watched == 0 {
		return ErrNothingToWatch
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]bool)
		timer   *time.Timer
	)

	flush := func() {
		mu.Lock()
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		pending = make(map[string]bool)
		mu.Unlock()

		if len(paths) == 0 || ctx.Err() != nil {
			return
		}
		sort.Strings(paths)
		w.logger.Debug("fact directory changed", "paths", paths)
		w.onChange(paths)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&relevantOps == 0 {
				continue
			}

			mu.Lock()
			pending[event.Name] = true
			// Debounce rapid changes
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, flush)
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-ctx.Done():
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			return ctx.Err()
		}
	}
}
