package migrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chkdhq/chkd/internal/clock"
	"github.com/chkdhq/chkd/internal/items"
	"github.com/chkdhq/chkd/internal/store/storetest"
	"github.com/chkdhq/chkd/models"
)

const sampleChecklist = `## SD - Site Design

- [x] [P1] **Feature A** #urgent - desc
- [ ] **Feature B**
`

func newTestMigrator(t *testing.T) (*Migrator, string) {
	t.Helper()
	db := storetest.Open(t)
	repo := models.Repository{
		AbsolutePath:  "/tmp/repo",
		DisplayName:   "repo",
		DefaultBranch: "main",
		Enabled:       true,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if _, err := db.Insert(context.Background(), "repositories", &repo); err != nil {
		t.Fatalf("insert repo: %v", err)
	}
	it := items.New(db, clock.Real{})

	dir := t.TempDir()
	docsDir := filepath.Join(dir, "docs")
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docsDir, "chkd-spec.md"), []byte(sampleChecklist), 0o644); err != nil {
		t.Fatal(err)
	}

	return New(it, "docs/chkd-spec.md"), dir
}

func TestImportFirstRun(t *testing.T) {
	m, repoPath := newTestMigrator(t)

	result, err := m.Import(context.Background(), 1, repoPath)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.ItemsImported != 2 || result.ItemsUpdated != 0 || result.ItemsSkipped != 0 {
		t.Fatalf("unexpected first-run result: %+v", result)
	}

	a, err := m.items.GetByDisplayID(context.Background(), 1, "SD.1")
	if err != nil || a == nil {
		t.Fatalf("expected SD.1 to exist: %v", err)
	}
	if a.Status != "done" || a.Priority != "critical" {
		t.Fatalf("unexpected SD.1 fields: %+v", a)
	}
	tags, err := m.items.ItemTags(context.Background(), a.ID)
	if err != nil || len(tags) != 1 || tags[0] != "urgent" {
		t.Fatalf("unexpected SD.1 tags: %v, %v", tags, err)
	}

	b, err := m.items.GetByDisplayID(context.Background(), 1, "SD.2")
	if err != nil || b == nil {
		t.Fatalf("expected SD.2 to exist: %v", err)
	}
	if b.Status != "open" || b.Priority != "medium" {
		t.Fatalf("unexpected SD.2 fields: %+v", b)
	}
}

func TestImportSecondRunIsIdempotent(t *testing.T) {
	m, repoPath := newTestMigrator(t)

	if _, err := m.Import(context.Background(), 1, repoPath); err != nil {
		t.Fatalf("first import: %v", err)
	}
	result, err := m.Import(context.Background(), 1, repoPath)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if result.ItemsImported != 0 || result.ItemsUpdated != 0 || result.ItemsSkipped != 2 {
		t.Fatalf("unexpected second-run result: %+v", result)
	}
}
