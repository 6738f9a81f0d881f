package db

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MigrationSource opens the embedded schema migrations as a golang-migrate source, the same
// iofs.New(migrations, "db/migrations") wiring the teacher's per-service StartXMigration
// functions use.
func MigrationSource() (source.Driver, error) {
	driver, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return driver, nil
}
