// Package settings implements the process-wide key/value store: a flat
// table of operator-tunable knobs that live in the database rather than the
// on-disk config file, so they can be changed without a restart and are
// visible to the gateway and the CLI the same way.
package settings

import (
	"context"
	"fmt"

	"github.com/chkdhq/chkd/internal/chkderr"
	"github.com/chkdhq/chkd/internal/store"
	"github.com/chkdhq/chkd/models"
)

// Store provides get/set/list access to the settings table.
type Store struct {
	db store.DB
}

// New returns a settings Store backed by db.
func New(db store.DB) *Store {
	return &Store{db: db}
}

// Get returns the value for key and whether it was present.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var rows []models.Setting
	if err := s.db.Select(ctx, &rows, `SELECT * FROM settings WHERE key = ?`, key); err != nil {
		return "", false, store.Classify("settings.Get", err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Value, true, nil
}

// Set upserts key=value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return chkderr.New(chkderr.Validation, "settings.Set", fmt.Errorf("key must not be empty"))
	}
	row := models.Setting{Key: key, Value: value}
	if err := s.db.Upsert(ctx, "settings", &row, []string{"key"}); err != nil {
		return store.Classify("settings.Set", err)
	}
	return nil
}

// All returns every key/value pair, ordered by key.
func (s *Store) All(ctx context.Context) ([]models.Setting, error) {
	var rows []models.Setting
	if err := s.db.Select(ctx, &rows, `SELECT * FROM settings ORDER BY key`); err != nil {
		return nil, store.Classify("settings.All", err)
	}
	return rows, nil
}

// Delete removes key, if present. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.db.Exec(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return store.Classify("settings.Delete", err)
	}
	return nil
}
