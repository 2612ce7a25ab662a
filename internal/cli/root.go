// Package cli implements the fanout command tree.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fanout/internal/config"
)

// Config carries flag state shared across subcommands.
type Config struct {
	SettingsPath string
	LogLvl       string
	Logger       zerolog.Logger
}

// buildRootCmd constructs the cobra command tree.
func buildRootCmd(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "fanout",
		Short:         "Fan a prompt out to many model possibilities and stream them back",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfg.SettingsPath, "settings", defaultSettingsPath(), "Settings file (toml/yaml/json)")
	root.PersistentFlags().StringVar(&cfg.LogLvl, "log-level", "info", "Log level: debug|info|warn|error")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cfg.Logger = newLogger(cfg.LogLvl)
	}

	root.AddCommand(buildRunCmd(cfg))
	root.AddCommand(buildModelsCmd(cfg))
	root.AddCommand(buildMockCmd(cfg))
	return root
}

func defaultSettingsPath() string {
	if v := os.Getenv("FANOUT_SETTINGS"); v != "" {
		return v
	}
	return "~/.config/fanout/settings.toml"
}

// loadSettings reads and defaults the settings file, with a pointed
// error when it does not exist.
func loadSettings(cfg *Config) (config.Settings, error) {
	expanded, err := config.ExpandHome(cfg.SettingsPath)
	if err != nil {
		return config.Settings{}, err
	}
	if !config.PathExists(expanded) {
		return config.Settings{}, fmt.Errorf("settings file not found: %s (pass --settings or set FANOUT_SETTINGS)", cfg.SettingsPath)
	}
	settings, err := config.Load(cfg.SettingsPath)
	if err != nil {
		return config.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings.ApplyDefaults()
	return settings, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}

// Main parses arguments and runs the command tree; it returns the
// process exit code.
func Main(args []string) int {
	cfg := &Config{}
	root := buildRootCmd(cfg)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
