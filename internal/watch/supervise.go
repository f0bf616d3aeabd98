package watch

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	restartBaseDelay = 500 * time.Millisecond
	maxRestartDelay  = 30 * time.Second
)

// restartDelay doubles the base delay per attempt, capped at maxRestartDelay.
func restartDelay(base time.Duration, attempt int) time.Duration {
	if attempt > 16 {
		return maxRestartDelay
	}

	d := base * time.Duration(1<<attempt)
	if d > maxRestartDelay || d <= 0 {
		return maxRestartDelay
	}

	return d
}

// Supervise runs a watcher for target and restarts it with exponential
// backoff whenever the target becomes unavailable. It returns nil once ctx
// is cancelled; any other error is returned immediately.
func Supervise(ctx context.Context, target Target, handler Handler, opts ...Option) error {
	w, err := New(target, opts...)
	if err != nil {
		return err
	}

	attempt := 0

	for {
		started := time.Now()

		err := w.Run(ctx, handler)
		if ctx.Err() != nil || err == nil {
			return nil
		}

		if !errors.Is(err, ErrTargetUnavailable) {
			return err
		}

		// A watcher that stayed healthy for a while starts over.
		if time.Since(started) > maxRestartDelay {
			attempt = 0
		}

		delay := restartDelay(w.retryBase, attempt)
		attempt++

		w.logger.Error("watch target unavailable",
			slog.String("path", w.root),
			slog.String("error", err.Error()),
			slog.Duration("retryIn", delay),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}
