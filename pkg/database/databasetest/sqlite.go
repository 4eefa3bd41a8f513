// Package databasetest provides migrated throwaway databases for tests.
package databasetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/MohamedNusaif/Loan-Management/pkg/database"
)

// NewSQLite returns a migrated SQLite database living in t.TempDir().
func NewSQLite(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := database.Connect(database.Config{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "loanapp.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}
