package main

import (
	"github.com/spf13/cobra"

	"github.com/kuberos-io/kuberos/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations to the state store",
	Run:   runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) {
	logger, err := buildLogger(cmd)
	if err != nil {
		fatal(nil, "failed to build logger", err)
	}
	if err := loadConfig(); err != nil {
		fatal(logger, "failed to load configuration", err)
	}

	src, err := db.MigrationSource()
	if err != nil {
		fatal(logger, "failed to open embedded migrations", err)
	}
	handler, err := db.NewMigrationHandler(cfg.PgConfig(), src, logger)
	if err != nil {
		fatal(logger, "failed to build migration handler", err)
	}
	if err := handler.Up(); err != nil {
		fatal(logger, "failed to apply migrations", err)
	}
	logger.Info("schema migrations applied")
}
