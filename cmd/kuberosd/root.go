package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kuberos-io/kuberos/internal/config"
	"github.com/kuberos-io/kuberos/internal/logging"
)

// cfg is shared by every sub-command.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "kuberosd",
	Short: "kuberos control plane: HTTP API, task worker and schema migrations",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Nothing to do. Use a sub-command: serve, worker, migrate.")
	},
}

func init() {
	config.AddFlags(rootCmd.PersistentFlags(), &cfg)
	logging.AddFlags(rootCmd.PersistentFlags())
}

// loadConfig overlays the environment on top of flag defaults and validates the result -
// every sub-command needs this same sequence before it can dial the database.
func loadConfig() error {
	if err := cfg.LoadFromEnv(); err != nil {
		return fmt.Errorf("loading environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}
	return nil
}

// buildLogger reads the logging flags off cmd and builds the process-wide logger, the same
// Builder every other package in this module uses.
func buildLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level, err := cmd.Flags().GetString(logging.LevelFlagName)
	if err != nil {
		return nil, err
	}
	file, err := cmd.Flags().GetString(logging.FileFlagName)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger().SetLevel(level).SetFile(file).Build()
}

// fatal logs err through logger (falling back to the default slog logger when logger
// couldn't be built yet) and exits 1.
func fatal(logger *slog.Logger, msg string, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error(msg, "error", err)
	os.Exit(1)
}
