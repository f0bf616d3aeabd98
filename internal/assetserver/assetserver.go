// Package assetserver runs the application's asset server alongside the
// watchers.
package assetserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/hupe1980/hoplareload/internal/logging"
)

// ErrServerExited is returned when the server command fails before the
// context is cancelled.
var ErrServerExited = errors.New("asset server exited")

// stopGrace is how long the command may take to exit after an interrupt.
const stopGrace = 5 * time.Second

// Server blocks serving assets until ctx is cancelled.
type Server interface {
	Serve(ctx context.Context) error
}

// ServerFunc adapts a function to the Server interface.
type ServerFunc func(ctx context.Context) error

// Serve calls f(ctx).
func (f ServerFunc) Serve(ctx context.Context) error { return f(ctx) }

// Command runs an external server process. An empty Argv serves nothing
// and waits for ctx. A nil Stdout or Stderr sends that stream to Logger
// line by line.
type Command struct {
	Argv   []string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// NewCommand creates a Command with stdout and stderr passed through.
func NewCommand(argv []string, logger *slog.Logger) *Command {
	return &Command{
		Argv:   argv,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: logger,
	}
}

// String returns the command line.
func (c *Command) String() string {
	return strings.Join(c.Argv, " ")
}

// Serve starts the command and waits for it. Cancelling ctx interrupts the
// process; an exit caused by cancellation is not an error.
func (c *Command) Serve(ctx context.Context) error {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if len(c.Argv) == 0 {
		logger.Debug("no asset server configured")
		<-ctx.Done()

		return nil
	}

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...) //nolint:gosec // command comes from local config
	cmd.Dir = c.Dir
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	if c.Stdout == nil {
		w := logging.NewLineWriter(logger, slog.LevelInfo)
		defer w.Close() //nolint:errcheck // flush only

		cmd.Stdout = w
	}

	if c.Stderr == nil {
		w := logging.NewLineWriter(logger, slog.LevelWarn)
		defer w.Close() //nolint:errcheck // flush only

		cmd.Stderr = w
	}
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = stopGrace

	logger.Info("starting asset server", slog.String("command", c.String()))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return fmt.Errorf("%w: %s: %v", ErrServerExited, c.String(), err)
	}

	logger.Info("asset server stopped", slog.String("command", c.String()))

	return nil
}
