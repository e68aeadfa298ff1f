// Package cmd implements the fingergun command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/fingergun/internal/config"
	"github.com/ayusman/fingergun/internal/logger"
	"github.com/ayusman/fingergun/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides log.level from the configuration file.
	logLevel string

	// rootCmd represents the base command.
	rootCmd = &cobra.Command{
		Use:   "fingergun",
		Short: "Turn a finger-gun hand pose into game controls.",
		Long: `Fingergun watches a camera for a hand held like a gun, tracks the index
finger as a cursor and fires when the hand flicks up or down.

Control samples are relayed to game clients over a websocket.`,
		SilenceUsage: true,
	}
)

// Execute runs the fingergun CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")

	rootCmd.AddCommand(serveCmd, replayCmd)
}

// loadConfig reads the configuration file, falling back to defaults when it
// does not exist, and applies the global log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	level, ok := logger.ParseLogLevel(cfg.Log.Level)
	if !ok {
		return nil, fmt.Errorf("invalid log level %q", cfg.Log.Level)
	}
	logger.SetLevel(level)

	return cfg, nil
}
