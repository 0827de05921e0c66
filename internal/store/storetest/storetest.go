// Package storetest builds a throwaway SQLite-backed store.DB for package
// tests, migrated and ready to use.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chkdhq/chkd/internal/config"
	"github.com/chkdhq/chkd/internal/store"
)

// Open creates a fresh SQLite database under t.TempDir(), applies all
// migrations, and registers a cleanup to close it.
func Open(t *testing.T) store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.NewSQLite(config.DatabaseConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("storetest.Open: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("storetest.Open: migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
