package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// nativeSource reports changes using OS filesystem notifications.
type nativeSource struct {
	root   string
	logger *slog.Logger

	// dirs holds every watched directory. A removed directory cannot be
	// stat'ed, so this is how its own Remove event is told apart from a
	// file's.
	dirs map[string]struct{}
}

func (s *nativeSource) run(ctx context.Context, out chan<- change) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, s.root); err != nil {
		return fmt.Errorf("%w: %v", ErrTargetUnavailable, err)
	}

	s.dirs = make(map[string]struct{})
	s.track(watcher)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			kind, ok := classify(event)
			if !ok {
				continue
			}

			if kind == Removed && event.Name == s.root {
				return fmt.Errorf("%w: %s was removed", ErrTargetUnavailable, s.root)
			}

			// Only files are reported; the files of a removed directory
			// arrive as their own events.
			if kind == Removed && s.wasDir(event.Name) {
				continue
			}

			// A new directory is watched too; files already inside it
			// were created before the watch existed and are reported here.
			if kind == Added {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if isHidden(info.Name()) {
						continue
					}

					if addErr := addRecursive(watcher, event.Name); addErr != nil {
						s.logger.Warn("watching new directory", slog.String("path", event.Name), slog.String("error", addErr.Error()))
					}

					s.track(watcher)

					if !s.emitTree(ctx, out, event.Name) {
						return nil
					}

					continue
				}

				// The path may have been a directory before.
				delete(s.dirs, event.Name)
			}

			if !emit(ctx, out, change{path: event.Name, kind: kind}) {
				return nil
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			s.logger.Warn("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// track records the directories currently on the watch list.
func (s *nativeSource) track(watcher *fsnotify.Watcher) {
	for _, dir := range watcher.WatchList() {
		s.dirs[dir] = struct{}{}
	}
}

// wasDir reports whether path is or was a watched directory. Entries are
// kept after removal because the parent and the directory itself both
// report the Remove.
func (s *nativeSource) wasDir(path string) bool {
	_, ok := s.dirs[path]
	return ok
}

// emitTree reports every file below dir as added.
func (s *nativeSource) emitTree(ctx context.Context, out chan<- change, dir string) bool {
	ok := true

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		if d.IsDir() {
			if path != dir && isHidden(d.Name()) {
				return filepath.SkipDir
			}

			return nil
		}

		if !emit(ctx, out, change{path: path, kind: Added}) {
			ok = false
			return filepath.SkipAll
		}

		return nil
	})

	return ok
}

// classify maps an fsnotify operation onto a ChangeKind. Chmod-only events
// are ignored.
func classify(event fsnotify.Event) (ChangeKind, bool) {
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return Removed, true
	case event.Has(fsnotify.Create):
		return Added, true
	case event.Has(fsnotify.Write):
		return Modified, true
	default:
		return 0, false
	}
}

// addRecursive walks root and adds all directories to the watcher.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			// Skip hidden directories (e.g., .git).
			if isHidden(d.Name()) && path != root {
				return filepath.SkipDir
			}

			return watcher.Add(path)
		}

		return nil
	})
}
