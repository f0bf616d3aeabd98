package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/hoplareload/internal/config"
)

// executeCommand is a test helper that runs the CLI with the given args and
// captures both stdout and stderr.
func executeCommand(args ...string) (stdout, stderr string, err error) {
	cmd := NewRootCommand()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()

	return outBuf.String(), errBuf.String(), err
}

// ---------------------------------------------------------------------------
// Help output
// ---------------------------------------------------------------------------

func TestRootCommand_Help(t *testing.T) {
	stdout, _, err := executeCommand("--help")
	require.NoError(t, err)

	for _, sub := range []string{"livereload", "templates", "config", "version", "completion"} {
		assert.Contains(t, stdout, sub, "help should mention %q subcommand", sub)
	}

	for _, flag := range []string{"--config", "--log-level", "--log-format", "--quiet"} {
		assert.Contains(t, stdout, flag, "help should mention %q flag", flag)
	}
}

func TestTaskCommands_Help(t *testing.T) {
	stdout, _, err := executeCommand("livereload", "--help")
	require.NoError(t, err)

	for _, flag := range []string{"--styles-dir", "--port", "--host", "--protocol-version", "--url-prefix", "--latency", "--force-polling", "--server-cmd"} {
		assert.Contains(t, stdout, flag)
	}

	stdout, _, err = executeCommand("templates", "--help")
	require.NoError(t, err)

	for _, flag := range []string{"--templates-dir", "--scripts-dir", "--compiler", "--namespace", "--latency", "--server-cmd"} {
		assert.Contains(t, stdout, flag)
	}

	assert.Contains(t, stdout, "haml-coffee -i . -o")
}

// ---------------------------------------------------------------------------
// Unknown flags → exit code 2
// ---------------------------------------------------------------------------

func TestRootCommand_UnknownFlag(t *testing.T) {
	_, _, err := executeCommand("--nonexistent")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestRootCommand_NoColorFlagRemoved(t *testing.T) {
	stdout, _, err := executeCommand("--help")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "--no-color", "no output is colored")

	_, _, err = executeCommand("--no-color", "version")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

// ---------------------------------------------------------------------------
// SilenceErrors – cobra must not print errors itself
// ---------------------------------------------------------------------------

func TestRootCommand_SilenceErrors(t *testing.T) {
	_, stderr, err := executeCommand("--nonexistent")
	require.Error(t, err)
	assert.Empty(t, stderr, "cobra should not print errors to stderr (SilenceErrors)")
}

// ---------------------------------------------------------------------------
// Config errors → exit code 2
// ---------------------------------------------------------------------------

func TestRootCommand_InvalidConfig(t *testing.T) {
	_, _, err := executeCommand("--config", "/nonexistent/path.yaml", "config")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestRootCommand_InvalidLogLevel(t *testing.T) {
	_, _, err := executeCommand("--log-level", "trace", "config")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestRootCommand_InvalidLogFormat(t *testing.T) {
	_, _, err := executeCommand("--log-format", "xml", "config")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), "invalid log format")
}

func TestLivereload_InvalidPort(t *testing.T) {
	_, _, err := executeCommand("livereload", "--port", "70000")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), "invalid port")
}

func TestLivereload_InvalidProtocolVersion(t *testing.T) {
	_, _, err := executeCommand("livereload", "--protocol-version", "one.six")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid protocol version")
}

func TestLivereload_RejectsArgs(t *testing.T) {
	_, _, err := executeCommand("livereload", "extra")
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// templates preflight → exit code 3
// ---------------------------------------------------------------------------

func TestTemplates_MissingCompiler(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, _, err := executeCommand("templates", "--server-cmd", "")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, err.Error(), "haml-coffee")
}

func TestExecute_MissingCompilerPrintsInstructions(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	var stdout, stderr bytes.Buffer

	code := execute([]string{"templates", "--server-cmd", ""}, &stdout, &stderr)

	assert.Equal(t, 3, code)
	assert.Contains(t, stderr.String(), "$ npm install -g haml-coffee")
	assert.Empty(t, stdout.String())
}

func TestTemplates_CustomCompilerHasNoInstallHint(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	var stderr bytes.Buffer

	code := execute([]string{"templates", "--compiler", "my-hamlc", "--server-cmd", ""}, new(bytes.Buffer), &stderr)

	assert.Equal(t, 3, code)
	assert.Contains(t, stderr.String(), "my-hamlc")
	assert.NotContains(t, stderr.String(), "npm install")
}

func TestTemplates_CompilesOnChange(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	dir := t.TempDir()
	jst := filepath.Join(dir, "templates", "jst")
	scripts := filepath.Join(dir, "scripts")
	require.NoError(t, os.MkdirAll(jst, 0o755))

	compiler := filepath.Join(dir, "haml-coffee")
	script := "#!/bin/sh\nwhile [ $# -gt 0 ]; do\n  if [ \"$1\" = \"-o\" ]; then out=\"$2\"; fi\n  shift\ndone\necho compiled > \"$out\"\n"
	require.NoError(t, os.WriteFile(compiler, []byte(script), 0o755))

	cmd := NewRootCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{
		"templates",
		"--templates-dir", filepath.Join(dir, "templates"),
		"--scripts-dir", scripts,
		"--compiler", compiler,
		"--latency", "0.05",
		"--server-cmd", "",
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- cmd.ExecuteContext(ctx) }()

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(jst, "item.jst.hamlc"), []byte("%li= @name"), 0o644))

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(scripts, "templates.js"))
		return err == nil && string(data) == "compiled\n"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("templates task did not stop")
	}
}

// ---------------------------------------------------------------------------
// config command
// ---------------------------------------------------------------------------

func TestConfigCommand_PrintsEffectiveYAML(t *testing.T) {
	t.Setenv("HOPLARELOAD_URL_PREFIX", "/css")

	stdout, _, err := executeCommand("config", "--port", "4000", "--latency", "0.5")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &cfg))

	assert.Equal(t, 4000, cfg.Port)
	assert.InDelta(t, 0.5, cfg.Latency, 1e-9)
	assert.Equal(t, "/css", cfg.URLPrefix)
	assert.Equal(t, config.DefaultCompiler, cfg.Compiler)
	assert.Equal(t, config.DefaultServerCommand, cfg.ServerCommand)
	assert.True(t, cfg.ForcePolling)
}

func TestConfigCommand_ReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hoplareload.yaml")
	require.NoError(t, os.WriteFile(path, []byte("styles-dir: public/css\nforce-polling: false\nserver-cmd: \"\"\n"), 0o644))

	stdout, _, err := executeCommand("--config", path, "config")
	require.NoError(t, err)

	assert.Contains(t, stdout, "styles-dir: public/css")
	assert.Contains(t, stdout, "force-polling: false")
	assert.Contains(t, stdout, `server-cmd: ""`)
}

// ---------------------------------------------------------------------------
// Execute helper
// ---------------------------------------------------------------------------

func TestExecute_HelpReturnsZero(t *testing.T) {
	var stdout bytes.Buffer

	code := execute(nil, &stdout, new(bytes.Buffer))

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "hoplareload")
}

func TestExecute_UsageErrorPrintsError(t *testing.T) {
	var stderr bytes.Buffer

	code := execute([]string{"--nonexistent"}, new(bytes.Buffer), &stderr)

	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "Error:")
}

func TestExecute_VersionSubcommand(t *testing.T) {
	code := execute([]string{"version"}, new(bytes.Buffer), new(bytes.Buffer))
	assert.Equal(t, 0, code)
}

// ---------------------------------------------------------------------------
// ExitError
// ---------------------------------------------------------------------------

func TestExitError_ErrorWithMessage(t *testing.T) {
	err := &ExitError{Code: 1, Err: assert.AnError}
	assert.Contains(t, err.Error(), assert.AnError.Error())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestExitError_ErrorWithoutMessage(t *testing.T) {
	err := &ExitError{Code: 42}
	assert.Equal(t, "exit code 42", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestConfigCommand_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".hoplareload.yaml")

	stdout, _, err := executeCommand("config", "--port", "4000", "-o", path)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	// The written file loads back as the same configuration.
	stdout, _, err = executeCommand("--config", path, "config")
	require.NoError(t, err)
	assert.Contains(t, stdout, "port: 4000")

	_, _, err = executeCommand("config", "-o", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file already exists")

	_, _, err = executeCommand("config", "-o", path, "--force")
	require.NoError(t, err)
}
