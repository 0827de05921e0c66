// Package store implements the persistence layer: a thin reflection-based
// mapping between Go structs and SQL rows, backed by either SQLite (default,
// single-process) or MySQL.
package store

import (
	"context"
	"fmt"

	"github.com/chkdhq/chkd/internal/config"
)

// DB is the storage interface every component in the engine depends on.
// Implementations exist for SQLite (default) and MySQL.
type DB interface {
	// Select executes a query and scans all rows into dest (pointer to slice).
	Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error

	// Get executes a query expected to return a single row and scans into dest.
	// dest's struct fields are scanned in declaration order, so Get should only
	// be used for narrow, single-purpose queries — full entity reads go
	// through Select and take the first row.
	Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...interface{}) error

	// Insert inserts a struct-tagged record into table and returns the new row ID.
	Insert(ctx context.Context, table string, record interface{}) (int64, error)

	// Update updates rows matching the where clause with values from record.
	Update(ctx context.Context, table string, record interface{}, where string, args ...interface{}) error

	// Upsert inserts or updates based on conflictCols.
	Upsert(ctx context.Context, table string, record interface{}, conflictCols []string) error

	// WithTx runs fn inside a single transaction. The DB passed to fn shares
	// the transaction; any error returned by fn rolls it back. Used by
	// operations that must commit several rows atomically (merge completion
	// plus history, subtree deletes).
	WithTx(ctx context.Context, fn func(tx DB) error) error

	// Migrate applies pending schema migrations in order.
	Migrate(ctx context.Context) error

	// Ping verifies the database connection is alive.
	Ping(ctx context.Context) error

	// Close releases the database connection.
	Close() error

	// Driver returns the backend name: "sqlite" or "mysql".
	Driver() string
}

// New returns a DB implementation matching cfg.Driver. SQLite is the default
// when Driver is empty; an unrecognised driver is an error.
func New(cfg config.DatabaseConfig) (DB, error) {
	switch cfg.Driver {
	case "mysql":
		return NewMySQL(cfg)
	case "sqlite", "sqlite3", "":
		return NewSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q (supported: sqlite, mysql)", cfg.Driver)
	}
}
