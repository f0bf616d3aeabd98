package cli

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/hoplareload/internal/config"
)

// Flag names match the config keys so that config.Load binds them.

// registerWatchFlags adds the debounce and polling flags.
func registerWatchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64("latency", config.DefaultLatency, "debounce interval in seconds")
	f.Bool("force-polling", true, "poll the filesystem instead of using native notifications")
}

// registerHubFlags adds the LiveReload hub flags.
func registerHubFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("styles-dir", config.Default().StylesDir, "stylesheet directory to watch")
	f.String("host", config.DefaultHost, "address the LiveReload hub binds to")
	f.Int("port", config.DefaultPort, "port the LiveReload hub listens on")
	f.String("protocol-version", config.DefaultProtocolVersion, "LiveReload protocol version announced to browsers")
	f.String("url-prefix", config.DefaultURLPrefix, "URL path the stylesheet directory is served under")
}

// registerCompilerFlags adds the template compiler flags.
func registerCompilerFlags(cmd *cobra.Command) {
	d := config.Default()

	f := cmd.Flags()
	f.String("templates-dir", d.TemplatesDir, "template directory; sources are read from its jst subdirectory")
	f.String("scripts-dir", d.ScriptsDir, "directory receiving templates.js")
	f.String("compiler", config.DefaultCompiler, "template compiler executable")
	f.String("namespace", config.DefaultNamespace, "JavaScript namespace for compiled templates")
}

// registerServerFlags adds the asset server flag.
func registerServerFlags(cmd *cobra.Command) {
	cmd.Flags().String("server-cmd", config.DefaultServerCommand, `asset server command; "" runs none`)
}
