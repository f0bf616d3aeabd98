package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"time"
)

// fileState is the part of a file's metadata compared between polls.
type fileState struct {
	size    int64
	modTime time.Time
	mode    fs.FileMode
}

// snapshot maps absolute file paths to their state.
type snapshot map[string]fileState

// pollSource reports changes by diffing periodic directory snapshots. It
// works on filesystems where native notifications are missing or
// unreliable (network mounts, some container volumes).
type pollSource struct {
	root     string
	interval time.Duration
	logger   *slog.Logger
}

func (s *pollSource) run(ctx context.Context, out chan<- change) error {
	prev, err := takeSnapshot(s.root)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			if err := checkRoot(s.root); err != nil {
				return err
			}

			curr, err := takeSnapshot(s.root)
			if err != nil {
				// Retried on the next tick.
				s.logger.Warn("poll cycle failed", slog.String("path", s.root), slog.String("error", err.Error()))
				continue
			}

			for _, c := range diffSnapshots(prev, curr) {
				if !emit(ctx, out, c) {
					return nil
				}
			}

			prev = curr
		}
	}
}

// takeSnapshot walks root and records every non-directory entry. Entries
// that vanish mid-walk are skipped; only an unreadable root is an error.
func takeSnapshot(root string) (snapshot, error) {
	if err := checkRoot(root); err != nil {
		return nil, err
	}

	snap := make(snapshot)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("%w: %v", ErrTargetUnavailable, err)
			}

			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			if isHidden(d.Name()) && path != root {
				return filepath.SkipDir
			}

			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}

		snap[path] = fileState{
			size:    info.Size(),
			modTime: info.ModTime(),
			mode:    info.Mode(),
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// diffSnapshots returns the changes that turn prev into curr, sorted by path.
func diffSnapshots(prev, curr snapshot) []change {
	var changes []change

	for path, state := range curr {
		old, existed := prev[path]

		switch {
		case !existed:
			changes = append(changes, change{path: path, kind: Added})
		case old != state:
			changes = append(changes, change{path: path, kind: Modified})
		}
	}

	for path := range prev {
		if _, ok := curr[path]; !ok {
			changes = append(changes, change{path: path, kind: Removed})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].path < changes[j].path
	})

	return changes
}
