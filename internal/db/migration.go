package db

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
)

// MigrationsTable is the table golang-migrate uses to track applied migrations.
const MigrationsTable = "schema_migrations"

// MigrationHandler wraps a migrate.Migrate instance and routes its log output through slog,
// following the teacher's db.MigrationHandler.
type MigrationHandler struct {
	Migrate *migrate.Migrate
	logger  *slog.Logger
}

func (h *MigrationHandler) Printf(format string, v ...interface{}) {
	h.logger.Debug(fmt.Sprintf(format, v...))
}

func (h *MigrationHandler) Verbose() bool {
	return true
}

// NewMigrationHandler builds a migration runner reading migrations from src and applying them
// to the database described by cfg.
func NewMigrationHandler(cfg PgConfig, src source.Driver, logger *slog.Logger) (*MigrationHandler, error) {
	connStr := fmt.Sprintf("pgx5://%s:%s@%s:%s/%s?sslmode=disable&x-migrations-table=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, MigrationsTable)

	m, err := migrate.NewWithSourceInstance("iofs", src, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	h := &MigrationHandler{Migrate: m, logger: logger}
	m.Log = h
	return h, nil
}

// Up applies every pending migration; a fully up-to-date database is not an error.
func (h *MigrationHandler) Up() error {
	if err := h.Migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
