// Package build regenerates the compiled template bundle whenever the
// template sources change.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/hupe1980/hoplareload/internal/logging"
	"github.com/hupe1980/hoplareload/internal/watch"
)

// ErrCompilerFailed is returned when the compiler cannot be started or
// exits with a non-zero status.
var ErrCompilerFailed = errors.New("template compiler failed")

// Options configures a Trigger.
type Options struct {
	// Compiler is the compiler executable (name on PATH or a path).
	Compiler string

	// TemplateRoot is the directory compiled as input "." so that
	// template names are relative to it.
	TemplateRoot string

	// Output is the aggregate artifact written by the compiler.
	Output string

	// Namespace is the JavaScript object the templates attach to.
	Namespace string

	// Logger is used for compiler output and errors.
	Logger *slog.Logger
}

// Trigger invokes the template compiler for change events.
type Trigger struct {
	compiler  string
	root      string
	output    string
	namespace string
	logger    *slog.Logger
}

// NewTrigger validates opts and resolves the output to an absolute path,
// since the compiler runs with TemplateRoot as its working directory.
func NewTrigger(opts Options) (*Trigger, error) {
	if opts.Compiler == "" {
		return nil, fmt.Errorf("compiler is required")
	}

	if opts.TemplateRoot == "" {
		return nil, fmt.Errorf("template root is required")
	}

	output, err := filepath.Abs(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("resolving output %q: %w", opts.Output, err)
	}

	root, err := filepath.Abs(opts.TemplateRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving template root %q: %w", opts.TemplateRoot, err)
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Trigger{
		compiler:  opts.Compiler,
		root:      root,
		output:    output,
		namespace: opts.Namespace,
		logger:    opts.Logger,
	}, nil
}

// Output returns the absolute artifact path.
func (t *Trigger) Output() string {
	return t.output
}

// Args returns the compiler arguments.
func (t *Trigger) Args() []string {
	args := []string{"-i", ".", "-o", t.output}
	if t.namespace != "" {
		args = append(args, "-n", t.namespace)
	}

	return args
}

// Compile runs the compiler once and blocks until it exits. Every line of
// its combined output is logged.
func (t *Trigger) Compile(ctx context.Context) error {
	previous, _ := os.ReadFile(t.output)

	if err := os.MkdirAll(filepath.Dir(t.output), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.compiler, t.Args()...) //nolint:gosec
	cmd.Dir = t.root

	out, err := cmd.CombinedOutput()
	logging.LogLines(ctx, t.logger, slog.LevelInfo, string(out))

	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCompilerFailed, t.compiler, err)
	}

	current, readErr := os.ReadFile(t.output)
	if readErr != nil {
		t.logger.Warn("compiler produced no output", slog.String("output", t.output))
		return nil
	}

	t.logger.Debug("artifact updated",
		slog.String("output", t.output),
		slog.Int("bytes", len(current)),
		slog.Int("changedLines", changedLines(previous, current)),
	)

	return nil
}

// Handle adapts Compile to a watch.Handler. Failures are logged so that
// the watcher keeps processing later events.
func (t *Trigger) Handle(ctx context.Context, ev watch.ChangeEvent) {
	t.logger.Info("compiling templates",
		slog.String("root", t.root),
		slog.Int("changes", len(ev.Modified)+len(ev.Added)+len(ev.Removed)),
	)

	if err := t.Compile(ctx); err != nil {
		t.logger.Error("template compilation failed", slog.String("error", err.Error()))
	}
}

// changedLines counts inserted and deleted lines between two artifacts.
func changedLines(previous, current []byte) int {
	if bytes.Equal(previous, current) {
		return 0
	}

	matcher := difflib.NewMatcher(
		difflib.SplitLines(string(previous)),
		difflib.SplitLines(string(current)),
	)

	n := 0

	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'r':
			n += max(op.I2-op.I1, op.J2-op.J1)
		case 'd':
			n += op.I2 - op.I1
		case 'i':
			n += op.J2 - op.J1
		}
	}

	return n
}

// String describes the compiler invocation for logs.
func (t *Trigger) String() string {
	return t.compiler + " " + strings.Join(t.Args(), " ")
}
