// Package models holds the entity types shared across chkd's storage,
// engine, and transport layers. Every type here carries both `db` tags
// (scanned by internal/store's reflection helpers) and `json` tags (the
// wire format for internal/gateway).
package models

import "time"

// Repository is a tracked git checkout the coordination engine can spawn
// workers against.
type Repository struct {
	ID            int64     `json:"id"             db:"id"`
	AbsolutePath  string    `json:"absolute_path"  db:"absolute_path"`
	DisplayName   string    `json:"display_name"   db:"display_name"`
	DefaultBranch string    `json:"default_branch" db:"default_branch"`
	// FetchSchedule is an optional cron expression for periodically running
	// `git fetch` against this repo's default branch. Empty disables it.
	FetchSchedule string    `json:"fetch_schedule" db:"fetch_schedule"`
	Enabled       bool      `json:"enabled"        db:"enabled"`
	CreatedAt     time.Time `json:"created_at"     db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"     db:"updated_at"`
}
