package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/hoplareload/internal/config"
	"github.com/hupe1980/hoplareload/internal/logging"
	"github.com/hupe1980/hoplareload/internal/output"
)

type configOptions struct {
	output string
	force  bool
}

func newConfigCommand() *cobra.Command {
	opts := &configOptions{}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Config prints the configuration after merging defaults, the config file,
HOPLARELOAD_ environment variables and flags, as YAML.

Use --output to save it, for example as .hoplareload.yaml. An existing
file is only replaced with --force.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfig(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "write the configuration to a file instead of stdout")
	f.BoolVar(&opts.force, "force", false, "replace an existing output file")

	registerHubFlags(cmd)
	registerCompilerFlags(cmd)
	registerWatchFlags(cmd)
	registerServerFlags(cmd)

	return cmd
}

func runConfig(cmd *cobra.Command, opts *configOptions) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	var w output.Writer = output.NewStdoutWriter(cmd.OutOrStdout())
	if opts.output != "" {
		w = output.NewFileWriter(opts.output, output.WithForce(opts.force), output.WithLogger(logger))
	}

	if err := w.Write(data); err != nil {
		return err
	}

	if opts.output != "" {
		logger.Info("configuration written", slog.String("path", opts.output))
	}

	return nil
}
