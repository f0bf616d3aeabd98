package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/hoplareload/internal/assetserver"
	"github.com/hupe1980/hoplareload/internal/config"
	"github.com/hupe1980/hoplareload/internal/livereload"
	"github.com/hupe1980/hoplareload/internal/logging"
	"github.com/hupe1980/hoplareload/internal/orchestrator"
	"github.com/hupe1980/hoplareload/internal/watch"
)

func newLivereloadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "livereload",
		Short: "Reload stylesheets in connected browsers on change",
		Long: `Livereload serves the LiveReload protocol on port 35729 and watches the
stylesheet directory. Every changed or added stylesheet is announced to all
connected browsers, which apply it without a full page reload.

The asset server command runs alongside until the task is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLivereload(cmd.Context())
		},
	}

	registerHubFlags(cmd)
	registerWatchFlags(cmd)
	registerServerFlags(cmd)

	return cmd
}

func runLivereload(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	registry := livereload.NewRegistry()
	hub := livereload.NewHub(cfg.HubConfig(), registry, logging.Component(logger, "hub"))
	broadcaster := livereload.NewBroadcaster(registry, livereload.BroadcasterOptions{
		Root:      cfg.StylesDir,
		URLPrefix: cfg.URLPrefix,
		Logger:    logging.Component(logger, "broadcast"),
	})

	return orchestrator.Run(ctx, orchestrator.Options{
		Hub: hub,
		Watches: []orchestrator.Watch{{
			Target:  watch.TargetFromConfig(cfg.WatchConfig(cfg.StylesDir)),
			Handler: broadcaster.Handle,
		}},
		Server: newAssetServer(cfg, logger),
		Logger: logger,
	})
}

// newAssetServer passes server output through unless logs are JSON, in
// which case every line becomes a log record.
func newAssetServer(cfg *config.Config, logger *slog.Logger) *assetserver.Command {
	srv := assetserver.NewCommand(cfg.ServerArgv(), logging.Component(logger, "assetserver"))

	if cfg.LogFormat == config.LogFormatJSON {
		srv.Stdout, srv.Stderr = nil, nil
	}

	return srv
}
