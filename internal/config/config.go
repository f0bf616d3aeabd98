// Package config provides configuration management for hoplareload.
//
// Configuration is loaded from three sources with the following precedence
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (HOPLARELOAD_ prefix)
//  3. Config file (.hoplareload.yaml)
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Supported log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Defaults for the live-reload pipeline.
const (
	DefaultLatency         = 0.25
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 35729
	DefaultProtocolVersion = "1.6"
	DefaultURLPrefix       = "/stylesheets"
	DefaultCompiler        = "haml-coffee"
	DefaultNamespace       = "window.JST"
	DefaultServerCommand   = "rake hopla:run"
)

// Config represents the global configuration for hoplareload.
type Config struct {
	// LogLevel controls the verbosity of log output.
	// Valid values: debug, info, warn, error.
	LogLevel string `mapstructure:"log-level" json:"logLevel" yaml:"log-level"`

	// LogFormat controls the format of log output.
	// Valid values: text, json.
	LogFormat string `mapstructure:"log-format" json:"logFormat" yaml:"log-format"`

	// Quiet suppresses all log output below error level.
	Quiet bool `mapstructure:"quiet" json:"quiet" yaml:"quiet"`

	// StylesDir is the stylesheet tree watched by the livereload task.
	StylesDir string `mapstructure:"styles-dir" json:"stylesDir" yaml:"styles-dir"`

	// TemplatesDir holds the template sources; compiled templates live in
	// its "jst" subdirectory.
	TemplatesDir string `mapstructure:"templates-dir" json:"templatesDir" yaml:"templates-dir"`

	// ScriptsDir receives the compiled templates.js bundle.
	ScriptsDir string `mapstructure:"scripts-dir" json:"scriptsDir" yaml:"scripts-dir"`

	// Latency is the debounce interval in seconds.
	Latency float64 `mapstructure:"latency" json:"latency" yaml:"latency"`

	// ForcePolling disables native filesystem notifications.
	ForcePolling bool `mapstructure:"force-polling" json:"forcePolling" yaml:"force-polling"`

	// Host and Port are the notification hub bind address.
	Host string `mapstructure:"host" json:"host" yaml:"host"`
	Port int    `mapstructure:"port" json:"port" yaml:"port"`

	// ProtocolVersion is announced in the hub greeting ("!!ver:<version>").
	ProtocolVersion string `mapstructure:"protocol-version" json:"protocolVersion" yaml:"protocol-version"`

	// URLPrefix is prepended to changed paths in refresh messages.
	URLPrefix string `mapstructure:"url-prefix" json:"urlPrefix" yaml:"url-prefix"`

	// Compiler is the template compiler executable.
	Compiler string `mapstructure:"compiler" json:"compiler" yaml:"compiler"`

	// Namespace is the JavaScript namespace the compiled templates attach to.
	Namespace string `mapstructure:"namespace" json:"namespace" yaml:"namespace"`

	// ServerCommand starts the underlying asset server. Empty disables it.
	ServerCommand string `mapstructure:"server-cmd" json:"serverCmd" yaml:"server-cmd"`

	// ConfigFile is the resolved path to the config file used.
	// Set after Load(), not read from config itself.
	ConfigFile string `mapstructure:"-" json:"-" yaml:"-"`
}

// WatchConfig enumerates the recognized watch settings for one directory.
type WatchConfig struct {
	Path           string
	LatencySeconds float64
	ForcePolling   bool
}

// Latency converts LatencySeconds to a duration.
func (w WatchConfig) Latency() time.Duration {
	return time.Duration(w.LatencySeconds * float64(time.Second))
}

// HubConfig enumerates the recognized notification hub settings.
type HubConfig struct {
	Host     string
	Port     int
	Greeting string
}

// Addr returns the host:port listen address.
func (h HubConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:        LogLevelInfo,
		LogFormat:       LogFormatText,
		Quiet:           false,
		StylesDir:       filepath.Join("assets", "stylesheets"),
		TemplatesDir:    filepath.Join("assets", "templates"),
		ScriptsDir:      filepath.Join("assets", "javascripts"),
		Latency:         DefaultLatency,
		ForcePolling:    true,
		Host:            DefaultHost,
		Port:            DefaultPort,
		ProtocolVersion: DefaultProtocolVersion,
		URLPrefix:       DefaultURLPrefix,
		Compiler:        DefaultCompiler,
		Namespace:       DefaultNamespace,
		ServerCommand:   DefaultServerCommand,
	}
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		// valid
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", c.LogFormat)
	}

	if c.Latency <= 0 {
		return fmt.Errorf("invalid latency %v: must be greater than zero", c.Latency)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port)
	}

	if _, err := semver.NewVersion(c.ProtocolVersion); err != nil {
		return fmt.Errorf("invalid protocol version %q: %w", c.ProtocolVersion, err)
	}

	return nil
}

// EffectiveLogLevel returns the log level to use. When Quiet is true the log
// level is overridden to "error" regardless of the configured LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Quiet {
		return LogLevelError
	}

	return c.LogLevel
}

// WatchConfig returns the watch settings for dir using the configured
// latency and polling mode.
func (c *Config) WatchConfig(dir string) WatchConfig {
	return WatchConfig{
		Path:           dir,
		LatencySeconds: c.Latency,
		ForcePolling:   c.ForcePolling,
	}
}

// HubConfig returns the notification hub settings.
func (c *Config) HubConfig() HubConfig {
	return HubConfig{
		Host:     c.Host,
		Port:     c.Port,
		Greeting: "!!ver:" + c.ProtocolVersion,
	}
}

// JSTDir is the directory holding the compiled-template sources.
func (c *Config) JSTDir() string {
	return filepath.Join(c.TemplatesDir, "jst")
}

// TemplatesOutput is the aggregate compiled-template artifact.
func (c *Config) TemplatesOutput() string {
	return filepath.Join(c.ScriptsDir, "templates.js")
}

// ServerArgv splits ServerCommand into an argument vector.
func (c *Config) ServerArgv() []string {
	return strings.Fields(c.ServerCommand)
}

// Load initialises configuration from flags, environment variables, and an
// optional config file. A fresh viper instance is used on every call so that
// Load is safe for concurrent tests.
func Load(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	configureEnv(v)

	if err := configureFile(v, configFile); err != nil {
		return nil, err
	}

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Store the resolved config file path so downstream code can locate it.
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
	v.SetDefault("quiet", d.Quiet)
	v.SetDefault("styles-dir", d.StylesDir)
	v.SetDefault("templates-dir", d.TemplatesDir)
	v.SetDefault("scripts-dir", d.ScriptsDir)
	v.SetDefault("latency", d.Latency)
	v.SetDefault("force-polling", d.ForcePolling)
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("protocol-version", d.ProtocolVersion)
	v.SetDefault("url-prefix", d.URLPrefix)
	v.SetDefault("compiler", d.Compiler)
	v.SetDefault("namespace", d.Namespace)
	v.SetDefault("server-cmd", d.ServerCommand)
}

// configureEnv sets up environment variable support.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("HOPLARELOAD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

// configureFile sets up the config file source.
func configureFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %q: %w", configFile, err)
		}

		return nil
	}

	// Auto-discovery mode.
	v.SetConfigName(".hoplareload")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "hoplareload"))
	}

	if err := v.ReadInConfig(); err != nil {
		// No config file found → perfectly fine in auto-discovery.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}

		// Found a file but it was malformed.
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// bindFlags walks from cmd up to the root and binds all PersistentFlags.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	// Bind the current command's own flags.
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	// Walk up to root and bind all persistent flags at each level.
	for c := cmd; c != nil; c = c.Parent() {
		if err := v.BindPFlags(c.PersistentFlags()); err != nil {
			return fmt.Errorf("binding persistent flags: %w", err)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKey struct{}

// NewContext returns a child context carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext extracts a Config from ctx, falling back to Default().
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}

	return Default()
}
