// Package watch reports repository changes so the graph can be rebuilt.
package watch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gitgraph-dev/gitgraph/internal/debounce"
)

const DefaultDelay = 350 * time.Millisecond

// Watcher calls OnChange once per burst of changes under the repository's
// git directory.
type Watcher struct {
	Root     string
	Delay    time.Duration
	OnChange func()
}

// Run watches until ctx is done. OnChange runs on the debouncer's goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() {
		if err := fw.Close(); err != nil {
			slog.Error("watcher close", slog.Any("error", err))
		}
	}()
	for path := range watchPaths(w.Root) {
		slog.Debug("adding path to FS watcher", slog.String("path", path))
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}

	delay := w.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	d := debounce.New(delay, w.OnChange)
	defer d.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			slog.Debug("fsnotify event",
				slog.String("op", ev.Op.String()),
				slog.String("path", ev.Name),
			)
			d.Trigger()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				d.Trigger()
				continue
			}
			slog.Error("fsnotify error", slog.Any("error", err))
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return !shouldIgnoreWatchPath(ev.Name)
}

// watchPaths yields the .git directory, or root itself when .git is a file
// (worktrees, submodules).
func watchPaths(root string) iter.Seq[string] {
	paths := map[string]struct{}{}
	if root == "" {
		return maps.Keys(paths)
	}
	gitDir := filepath.Join(root, ".git")
	if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
		paths[gitDir] = struct{}{}
		if refs := filepath.Join(gitDir, "refs", "heads"); isDir(refs) {
			paths[refs] = struct{}{}
		}
		return maps.Keys(paths)
	}
	paths[root] = struct{}{}
	return maps.Keys(paths)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func shouldIgnoreWatchPath(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".lock", ".ipc":
		return true
	}
	return false
}
