package assetserver

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func skipOnWindows(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestServerFunc(t *testing.T) {
	called := false

	var s Server = ServerFunc(func(context.Context) error {
		called = true
		return nil
	})

	require.NoError(t, s.Serve(context.Background()))
	assert.True(t, called)
}

func TestCommand_EmptyWaitsForContext(t *testing.T) {
	c := NewCommand(nil, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.NoError(t, c.Serve(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestCommand_PassesOutputThrough(t *testing.T) {
	skipOnWindows(t)

	var out bytes.Buffer

	c := &Command{
		Argv:   []string{"sh", "-c", "echo serving"},
		Stdout: &out,
		Logger: discardLogger(),
	}

	require.NoError(t, c.Serve(context.Background()))
	assert.Equal(t, "serving\n", out.String())
	assert.Equal(t, "sh -c echo serving", c.String())
}

func TestCommand_RunsInDir(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()

	var out bytes.Buffer

	c := &Command{
		Argv:   []string{"sh", "-c", "ls"},
		Dir:    dir,
		Stdout: &out,
		Logger: discardLogger(),
	}

	require.NoError(t, c.Serve(context.Background()))
	assert.Empty(t, out.String())
}

func TestCommand_FailureReported(t *testing.T) {
	skipOnWindows(t)

	c := &Command{Argv: []string{"sh", "-c", "exit 4"}, Logger: discardLogger()}

	err := c.Serve(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerExited)
	assert.Contains(t, err.Error(), "exit status 4")
}

func TestCommand_MissingExecutable(t *testing.T) {
	c := &Command{Argv: []string{"hoplareload-no-such-server"}, Logger: discardLogger()}

	err := c.Serve(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerExited)
}

func TestCommand_CancelStopsProcess(t *testing.T) {
	skipOnWindows(t)

	c := &Command{Argv: []string{"sleep", "30"}, Logger: discardLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- c.Serve(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestCommand_NilStreamsAreLogged(t *testing.T) {
	skipOnWindows(t)

	var logs bytes.Buffer

	c := &Command{
		Argv:   []string{"sh", "-c", "echo '  listening on 9292'; echo oops >&2"},
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
	}

	require.NoError(t, c.Serve(context.Background()))
	assert.Contains(t, logs.String(), `level=INFO msg="listening on 9292"`)
	assert.Contains(t, logs.String(), "level=WARN msg=oops")
}
