// Package watcher observes the library roots for filesystem changes so
// cached directory listings can be invalidated between searches.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Config holds everything a Watcher needs to run.
type Config struct {
	// Roots are the directories to watch recursively. Roots that do not
	// exist are skipped with a warning.
	Roots []string

	// OnChange is invoked whenever a file under one of the roots is
	// created, written, renamed, or removed. It must be safe to call
	// from the watcher goroutine.
	OnChange func()

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Watcher tails filesystem events under the library roots and reports
// changes through the configured callback.
type Watcher struct {
	fsw      *fsnotify.Watcher
	onChange func()
	logger   *zap.Logger

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher begins watching the configured roots. Close releases the
// underlying filesystem watcher.
func NewWatcher(c *Config) (*Watcher, error) {
	if c.OnChange == nil {
		return nil, fmt.Errorf("watcher requires an OnChange callback")
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		onChange: c.OnChange,
		logger:   logger,
		done:     make(chan struct{}),
	}

	for _, root := range c.Roots {
		if root == "" {
			continue
		}
		if err := w.addRecursive(root); err != nil {
			logger.Warn("failed to watch directory",
				zap.String("path", root),
				zap.Error(err),
			)
		}
	}

	w.wg.Add(1)
	go w.run()

	return w, nil
}

// addRecursive registers root and every directory beneath it. fsnotify
// watches are not recursive, so each subdirectory needs its own watch.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			// New directories need their own watch before files inside
			// them produce events.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Debug("failed to watch new directory",
							zap.String("path", event.Name),
							zap.Error(err),
						)
					}
				}
			}

			w.logger.Debug("library change detected",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()),
			)
			w.onChange()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", zap.Error(err))
		}
	}
}

// Close stops the event loop and releases the filesystem watcher.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}
