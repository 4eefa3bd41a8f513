package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending schema migrations for the SQL-backed store.
func Migrate(ctx context.Context, db *sqlx.DB, logger *zap.SugaredLogger) error {
	var dialect goose.Dialect
	switch db.DriverName() {
	case DriverPostgres:
		dialect = goose.DialectPostgres
	case DriverSQLite:
		dialect = goose.DialectSQLite3
	default:
		return fmt.Errorf("migrate: unsupported driver %q", db.DriverName())
	}

	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	provider, err := goose.NewProvider(dialect, db.DB, sub)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	if logger != nil {
		for _, r := range results {
			logger.Infow("migration applied", "source", r.Source.Path, "duration", r.Duration)
		}
	}
	return nil
}
