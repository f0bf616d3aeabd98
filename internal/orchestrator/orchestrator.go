// Package orchestrator wires the watchers, the notification hub and the
// asset server into one running task.
package orchestrator

import (
	"context"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hupe1980/hoplareload/internal/assetserver"
	"github.com/hupe1980/hoplareload/internal/livereload"
	"github.com/hupe1980/hoplareload/internal/logging"
	"github.com/hupe1980/hoplareload/internal/watch"
)

// Watch pairs a directory with the handler its change events go to.
type Watch struct {
	Target  watch.Target
	Handler watch.Handler
}

// Options configures Run.
type Options struct {
	// Hub is the notification hub. Nil runs without one.
	Hub *livereload.Hub

	// Watches are started under watch.Supervise, one goroutine each.
	Watches []Watch

	// Server runs on the calling goroutine. Nil waits for shutdown.
	Server assetserver.Server

	Logger *slog.Logger

	// WatchOptions are passed to every watcher.
	WatchOptions []watch.Option
}

// Run starts every component and blocks until a SIGINT/SIGTERM signal is
// received or ctx is cancelled. It fails only when the hub cannot bind its
// port; all later failures are logged.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	if opts.Hub != nil {
		ln, err := opts.Hub.Listen()
		if err != nil {
			return err
		}

		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := opts.Hub.Serve(sigCtx, ln); err != nil {
				logger.Error("livereload hub stopped", slog.String("error", err.Error()))
			}
		}()
	}

	watchOpts := append([]watch.Option{watch.WithLogger(logging.Component(logger, "watch"))}, opts.WatchOptions...)

	for _, w := range opts.Watches {
		wg.Add(1)

		go func(w Watch) {
			defer wg.Done()

			if err := watch.Supervise(sigCtx, w.Target, w.Handler, watchOpts...); err != nil {
				logger.Error("watcher stopped",
					slog.String("path", w.Target.Path),
					slog.String("error", err.Error()),
				)
			}
		}(w)
	}

	if opts.Server != nil {
		if err := opts.Server.Serve(sigCtx); err != nil {
			logger.Error("asset server failed", slog.String("error", err.Error()))
		}
	}

	<-sigCtx.Done()
	logger.Info("shutting down")

	wg.Wait()

	return nil
}
