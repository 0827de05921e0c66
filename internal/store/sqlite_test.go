package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chkdhq/chkd/internal/store"
	"github.com/chkdhq/chkd/internal/store/storetest"
	"github.com/chkdhq/chkd/models"
)

func TestInsertAssignsIncrementingID(t *testing.T) {
	db := storetest.Open(t)
	ctx := context.Background()

	first := models.Repository{AbsolutePath: "/tmp/a", DisplayName: "a", DefaultBranch: "main", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	second := models.Repository{AbsolutePath: "/tmp/b", DisplayName: "b", DefaultBranch: "main", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}

	id1, err := db.Insert(ctx, "repositories", &first)
	if err != nil {
		t.Fatalf("insert first: %v", err)
	}
	id2, err := db.Insert(ctx, "repositories", &second)
	if err != nil {
		t.Fatalf("insert second: %v", err)
	}
	if id2 <= id1 {
		t.Fatalf("want id2 > id1, got %d, %d", id2, id1)
	}
}

func TestSelectScansAllMatchingRows(t *testing.T) {
	db := storetest.Open(t)
	ctx := context.Background()

	for _, path := range []string{"/tmp/a", "/tmp/b", "/tmp/c"} {
		r := models.Repository{AbsolutePath: path, DisplayName: path, DefaultBranch: "main", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
		if _, err := db.Insert(ctx, "repositories", &r); err != nil {
			t.Fatalf("insert %s: %v", path, err)
		}
	}

	var rows []models.Repository
	if err := db.Select(ctx, &rows, `SELECT * FROM repositories ORDER BY absolute_path`); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("want 3 rows, got %d", len(rows))
	}
	if rows[0].AbsolutePath != "/tmp/a" {
		t.Fatalf("want /tmp/a first, got %s", rows[0].AbsolutePath)
	}
}

func TestUpdateAppliesWhereClause(t *testing.T) {
	db := storetest.Open(t)
	ctx := context.Background()

	r := models.Repository{AbsolutePath: "/tmp/a", DisplayName: "a", DefaultBranch: "main", Enabled: true, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	id, err := db.Insert(ctx, "repositories", &r)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	r.ID = id
	r.Enabled = false
	r.DisplayName = "renamed"
	if err := db.Update(ctx, "repositories", &r, "id = ?", id); err != nil {
		t.Fatalf("update: %v", err)
	}

	var rows []models.Repository
	if err := db.Select(ctx, &rows, `SELECT * FROM repositories WHERE id = ?`, id); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 1 || rows[0].DisplayName != "renamed" || rows[0].Enabled {
		t.Fatalf("update did not apply: %+v", rows)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := storetest.Open(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithTx(ctx, func(tx store.DB) error {
		r := models.Repository{AbsolutePath: "/tmp/rolled-back", DisplayName: "x", DefaultBranch: "main", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
		if _, ierr := tx.Insert(ctx, "repositories", &r); ierr != nil {
			t.Fatalf("insert inside tx: %v", ierr)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom propagated, got %v", err)
	}

	var rows []models.Repository
	if err := db.Select(ctx, &rows, `SELECT * FROM repositories WHERE absolute_path = ?`, "/tmp/rolled-back"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("want rollback to discard the insert, found %d rows", len(rows))
	}
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	db := storetest.Open(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx store.DB) error {
		r := models.Repository{AbsolutePath: "/tmp/committed", DisplayName: "x", DefaultBranch: "main", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
		_, ierr := tx.Insert(ctx, "repositories", &r)
		return ierr
	})
	if err != nil {
		t.Fatalf("with tx: %v", err)
	}

	var rows []models.Repository
	if err := db.Select(ctx, &rows, `SELECT * FROM repositories WHERE absolute_path = ?`, "/tmp/committed"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("want 1 row after commit, got %d", len(rows))
	}
}

func TestDriverReportsSQLite(t *testing.T) {
	db := storetest.Open(t)
	if db.Driver() != "sqlite" {
		t.Fatalf("want sqlite, got %q", db.Driver())
	}
}
