// internal/watch/watcher.go
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultSettle is how long the watcher waits for a burst of events to end
// before reporting.
const DefaultSettle = 200 * time.Millisecond

// Watcher reports when something under a repository root changes. Events
// inside the marker directory only count when they touch the index or log.
type Watcher struct {
	root      string
	markerDir string
	settle    time.Duration
	watcher   *fsnotify.Watcher
	logger    *zap.Logger
}

// New watches root and every directory below it, except the marker
// directory's subdirectories.
func New(root, markerDir string, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		root:      root,
		markerDir: markerDir,
		settle:    DefaultSettle,
		watcher:   fsw,
		logger:    logger,
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, markerDir+"/") {
			return filepath.SkipDir
		}
		return w.add(path)
	})
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}
	return w, nil
}

func (w *Watcher) add(dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("adding directory to watcher: %w", err)
	}
	return nil
}

// Run blocks until ctx is done, calling onChange once per settled burst of
// relevant events with the relative paths involved.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	timer := time.NewTimer(w.settle)
	timer.Stop()
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleNewDir(event)
			rel, ok := w.relevant(event)
			if !ok {
				continue
			}
			pending[rel] = true
			timer.Reset(w.settle)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			onChange(paths)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

// handleNewDir starts watching directories created after New.
func (w *Watcher) handleNewDir(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.IsDir() {
		return
	}
	if rel, ok := w.relevant(event); ok && rel != w.markerDir {
		if err := w.add(event.Name); err != nil {
			w.logger.Warn("watching new directory", zap.String("path", event.Name), zap.Error(err))
		}
	}
}

// relevant maps an event to a root-relative path, filtering out chmod-only
// events and marker-directory internals.
func (w *Watcher) relevant(event fsnotify.Event) (string, bool) {
	if event.Op == fsnotify.Chmod {
		return "", false
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)

	if rel == w.markerDir {
		return "", false
	}
	if strings.HasPrefix(rel, w.markerDir+"/") {
		switch strings.TrimPrefix(rel, w.markerDir+"/") {
		case "index", "log":
			return rel, true
		}
		return "", false
	}
	return rel, true
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
