package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/hupe1980/hoplareload/internal/config"
)

// ErrTargetUnavailable is returned when the watched directory does not
// exist, is not a directory, or disappears while being watched.
var ErrTargetUnavailable = errors.New("watch target unavailable")

// DefaultLatency is the debounce interval used when a Target leaves it unset.
const DefaultLatency = 250 * time.Millisecond

// minPollInterval bounds how often the polling source walks the tree.
const minPollInterval = 10 * time.Millisecond

// Target describes one directory tree under change monitoring.
type Target struct {
	// Path is the root directory, watched recursively.
	Path string

	// Latency is the quiet period that closes a debounce window.
	Latency time.Duration

	// ForcePolling walks the tree periodically instead of relying on
	// native filesystem notifications.
	ForcePolling bool
}

// TargetFromConfig converts the typed watch configuration into a Target.
func TargetFromConfig(c config.WatchConfig) Target {
	return Target{
		Path:         c.Path,
		Latency:      c.Latency(),
		ForcePolling: c.ForcePolling,
	}
}

// Handler consumes one ChangeEvent. Handlers run on the watcher goroutine;
// the next event is not delivered until the handler returns.
type Handler func(ctx context.Context, ev ChangeEvent)

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger used for watcher diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithRetryBaseDelay overrides the initial backoff used by Supervise.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(w *Watcher) {
		w.retryBase = d
	}
}

// Watcher monitors a single Target.
type Watcher struct {
	target    Target
	root      string
	logger    *slog.Logger
	retryBase time.Duration
}

// New creates a watcher for target. The target path is resolved to an
// absolute path; its existence is checked by Run.
func New(target Target, opts ...Option) (*Watcher, error) {
	if target.Path == "" {
		return nil, fmt.Errorf("watch target path is empty")
	}

	root, err := filepath.Abs(target.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving watch target %q: %w", target.Path, err)
	}

	if target.Latency <= 0 {
		target.Latency = DefaultLatency
	}

	w := &Watcher{
		target:    target,
		root:      root,
		logger:    slog.Default(),
		retryBase: restartBaseDelay,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Root returns the absolute watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Run watches the target and invokes handler once per debounce window.
// It blocks until ctx is cancelled (returning nil) or the target becomes
// unavailable (returning an error wrapping ErrTargetUnavailable).
func (w *Watcher) Run(ctx context.Context, handler Handler) error {
	if err := checkRoot(w.root); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)

	changes := make(chan change, 256)
	srcErr := make(chan error, 1)
	src := w.newSource()

	go func() {
		srcErr <- src.run(runCtx, changes)
	}()

	srcDone := false

	defer func() {
		cancel()

		if !srcDone {
			<-srcErr
		}
	}()

	debouncer := NewDebouncer(w.target.Latency)
	defer debouncer.Stop()

	w.logger.Info("watching",
		slog.String("path", w.root),
		slog.Duration("latency", w.target.Latency),
		slog.Bool("polling", w.target.ForcePolling),
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case c := <-changes:
			if !isRelevant(c.path) || w.inHiddenDir(c.path) {
				continue
			}

			debouncer.Trigger(c.path, c.kind)

		case <-debouncer.C():
			ev := debouncer.Flush()
			if ev.Empty() {
				continue
			}

			w.dispatch(ctx, handler, ev)

		case err := <-srcErr:
			srcDone = true

			if ctx.Err() != nil {
				return nil
			}

			if err == nil {
				return fmt.Errorf("%w: %s: change source stopped", ErrTargetUnavailable, w.root)
			}

			return err
		}
	}
}

// dispatch runs handler, containing any panic so that one bad event does
// not stop the watcher.
func (w *Watcher) dispatch(ctx context.Context, handler Handler, ev ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("change handler panicked",
				slog.Any("error", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	w.logger.Debug("change detected",
		slog.Int("modified", len(ev.Modified)),
		slog.Int("added", len(ev.Added)),
		slog.Int("removed", len(ev.Removed)),
	)

	handler(ctx, ev)
}

func (w *Watcher) newSource() source {
	if w.target.ForcePolling {
		interval := w.target.Latency / 2
		if interval < minPollInterval {
			interval = minPollInterval
		}

		return &pollSource{root: w.root, interval: interval, logger: w.logger}
	}

	return &nativeSource{root: w.root, logger: w.logger}
}

// change is a single raw filesystem change reported by a source.
type change struct {
	path string
	kind ChangeKind
}

// source produces raw changes for a root until ctx is cancelled.
type source interface {
	run(ctx context.Context, out chan<- change) error
}

// emit sends c unless ctx is cancelled first.
func emit(ctx context.Context, out chan<- change, c change) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

func checkRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTargetUnavailable, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrTargetUnavailable, root)
	}

	return nil
}

// inHiddenDir reports whether path lies below a hidden directory of the
// watched tree, such as .sass-cache or .git.
func (w *Watcher) inHiddenDir(path string) bool {
	rel, err := filepath.Rel(w.root, filepath.Dir(path))
	if err != nil || rel == "." {
		return false
	}

	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if isHidden(part) && part != ".." {
			return true
		}
	}

	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// isRelevant filters out editor temporary and hidden files.
func isRelevant(path string) bool {
	name := filepath.Base(path)

	if isHidden(name) || strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") || strings.HasPrefix(name, "#") {
		return false
	}

	return true
}
