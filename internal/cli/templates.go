package cli

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hupe1980/hoplareload/internal/build"
	"github.com/hupe1980/hoplareload/internal/config"
	"github.com/hupe1980/hoplareload/internal/logging"
	"github.com/hupe1980/hoplareload/internal/orchestrator"
	"github.com/hupe1980/hoplareload/internal/preflight"
	"github.com/hupe1980/hoplareload/internal/watch"
)

const compilerInstallHint = "npm install -g haml-coffee"

func newTemplatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Recompile haml-coffee templates on change",
		Long: `Templates watches <templates-dir>/jst and runs the template compiler on
every change, writing <scripts-dir>/templates.js. The compiler runs inside
the jst directory so template names are relative to it:

  haml-coffee -i . -o <scripts-dir>/templates.js -n window.JST

The asset server command runs alongside until the task is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTemplates(cmd.Context())
		},
	}

	registerCompilerFlags(cmd)
	registerWatchFlags(cmd)
	registerServerFlags(cmd)

	return cmd
}

func runTemplates(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	install := ""
	if filepath.Base(cfg.Compiler) == config.DefaultCompiler {
		install = compilerInstallHint
	}

	compiler, err := preflight.RequireExecutable(cfg.Compiler, install)
	if err != nil {
		return &ExitError{Code: exitMissingDependency, Err: err}
	}

	trigger, err := build.NewTrigger(build.Options{
		Compiler:     compiler,
		TemplateRoot: cfg.JSTDir(),
		Output:       cfg.TemplatesOutput(),
		Namespace:    cfg.Namespace,
		Logger:       logging.Component(logger, "build"),
	})
	if err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}

	return orchestrator.Run(ctx, orchestrator.Options{
		Watches: []orchestrator.Watch{{
			Target:  watch.TargetFromConfig(cfg.WatchConfig(cfg.JSTDir())),
			Handler: trigger.Handle,
		}},
		Server: newAssetServer(cfg, logger),
		Logger: logger,
	})
}
