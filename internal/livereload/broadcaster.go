package livereload

import (
	"context"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/hupe1980/hoplareload/internal/watch"
)

// BroadcasterOptions configures a Broadcaster.
type BroadcasterOptions struct {
	// Root is the watched asset directory. Changed paths are reported
	// relative to it.
	Root string

	// URLPrefix is the URL path the asset directory is served under,
	// e.g. "/stylesheets".
	URLPrefix string

	// Logger is used for delivery diagnostics.
	Logger *slog.Logger
}

// Broadcaster sends refresh messages for changed assets to every
// registered session.
type Broadcaster struct {
	registry  *Registry
	root      string
	urlPrefix string
	logger    *slog.Logger
}

// NewBroadcaster creates a broadcaster delivering to registry.
func NewBroadcaster(registry *Registry, opts BroadcasterOptions) *Broadcaster {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	root := opts.Root
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}

	return &Broadcaster{
		registry:  registry,
		root:      root,
		urlPrefix: opts.URLPrefix,
		logger:    opts.Logger,
	}
}

// URLPath maps a changed file to the URL path the browser loaded it from.
// Files outside the root are reported by base name.
func (b *Broadcaster) URLPath(file string) string {
	rel := filepath.Base(file)

	if b.root != "" {
		if r, err := filepath.Rel(b.root, file); err == nil && r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator)) {
			rel = r
		}
	}

	return path.Join("/", b.urlPrefix, filepath.ToSlash(rel))
}

// Broadcast sends one refresh message per path to every session and
// returns the number of send attempts. A session that fails a send is
// closed and removed; delivery to the others continues.
func (b *Broadcaster) Broadcast(paths []string) int {
	if len(paths) == 0 {
		return 0
	}

	attempts := 0

	for _, file := range paths {
		msg := NewRefresh(b.URLPath(file))

		data, err := msg.Encode()
		if err != nil {
			b.logger.Error("encoding refresh message", slog.String("path", msg.Path), slog.String("error", err.Error()))
			continue
		}

		b.registry.ForEach(func(s *Session) {
			attempts++

			if err := s.Send(data); err != nil {
				b.logger.Error("dropping session",
					slog.String("session", s.ID()),
					slog.String("remote", s.RemoteAddr()),
					slog.String("error", err.Error()),
				)

				b.registry.Remove(s)
				_ = s.Close()
			}
		})

		b.logger.Info("refresh sent", slog.String("path", msg.Path), slog.Int("sessions", b.registry.Len()))
	}

	return attempts
}

// Handle adapts Broadcast to a watch.Handler. Removed files are not
// announced.
func (b *Broadcaster) Handle(_ context.Context, ev watch.ChangeEvent) {
	b.Broadcast(ev.Changed())
}
