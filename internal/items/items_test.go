package items

import (
	"context"
	"testing"
	"time"

	"github.com/chkdhq/chkd/internal/chkderr"
	"github.com/chkdhq/chkd/internal/clock"
	"github.com/chkdhq/chkd/internal/store/storetest"
	"github.com/chkdhq/chkd/models"
)

func newTestStore(t *testing.T) (*Store, int64) {
	t.Helper()
	db := storetest.Open(t)
	var repoID int64
	repo := models.Repository{
		AbsolutePath:  "/tmp/repo",
		DisplayName:   "repo",
		DefaultBranch: "main",
		Enabled:       true,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	id, err := db.Insert(context.Background(), "repositories", &repo)
	if err != nil {
		t.Fatalf("insert repo: %v", err)
	}
	repoID = id
	return New(db, clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}), repoID
}

func TestCreateRejectsInvalidAreaCode(t *testing.T) {
	s, repoID := newTestStore(t)
	_, err := s.Create(context.Background(), CreateInput{RepoID: repoID, DisplayID: "SD.1", AreaCode: "NOPE"})
	if !chkderr.Is(err, chkderr.Validation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestCreateDefaultsPriorityToMedium(t *testing.T) {
	s, repoID := newTestStore(t)
	it, err := s.Create(context.Background(), CreateInput{RepoID: repoID, DisplayID: "SD.1", AreaCode: models.AreaSD})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if it.Priority != models.PriorityMedium {
		t.Fatalf("want medium priority, got %q", it.Priority)
	}
}

func TestCreateRejectsDuplicateDisplayID(t *testing.T) {
	s, repoID := newTestStore(t)
	in := CreateInput{RepoID: repoID, DisplayID: "SD.1", AreaCode: models.AreaSD}
	if _, err := s.Create(context.Background(), in); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := s.Create(context.Background(), in)
	if !chkderr.Is(err, chkderr.Conflict) {
		t.Fatalf("want conflict error, got %v", err)
	}
}

func TestUpdateRejectsInvalidStatus(t *testing.T) {
	s, repoID := newTestStore(t)
	it, err := s.Create(context.Background(), CreateInput{RepoID: repoID, DisplayID: "SD.1", AreaCode: models.AreaSD})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	bad := models.ItemStatus("bogus")
	_, err = s.Update(context.Background(), it.ID, UpdateInput{Status: &bad})
	if !chkderr.Is(err, chkderr.Validation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestDeleteRemovesSubtree(t *testing.T) {
	s, repoID := newTestStore(t)
	parent, err := s.Create(context.Background(), CreateInput{RepoID: repoID, DisplayID: "SD.1", AreaCode: models.AreaSD})
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child, err := s.Create(context.Background(), CreateInput{
		RepoID: repoID, DisplayID: "SD.1.1", AreaCode: models.AreaSD, ParentID: &parent.ID,
	})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	if err := s.Delete(context.Background(), parent.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(context.Background(), parent.ID); !chkderr.Is(err, chkderr.NotFound) {
		t.Fatalf("want parent gone, got %v", err)
	}
	if _, err := s.Get(context.Background(), child.ID); !chkderr.Is(err, chkderr.NotFound) {
		t.Fatalf("want child gone, got %v", err)
	}
}

func TestProgressIgnoresSkipped(t *testing.T) {
	s, repoID := newTestStore(t)
	ctx := context.Background()
	a, _ := s.Create(ctx, CreateInput{RepoID: repoID, DisplayID: "SD.1", AreaCode: models.AreaSD})
	b, _ := s.Create(ctx, CreateInput{RepoID: repoID, DisplayID: "SD.2", AreaCode: models.AreaSD})
	c, _ := s.Create(ctx, CreateInput{RepoID: repoID, DisplayID: "SD.3", AreaCode: models.AreaSD})

	done := models.ItemDone
	skipped := models.ItemSkipped
	if _, err := s.Update(ctx, a.ID, UpdateInput{Status: &done}); err != nil {
		t.Fatalf("update a: %v", err)
	}
	if _, err := s.Update(ctx, b.ID, UpdateInput{Status: &skipped}); err != nil {
		t.Fatalf("update b: %v", err)
	}
	_ = c

	p, err := s.Progress(ctx, repoID, models.AreaSD)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.Total != 2 || p.Done != 1 {
		t.Fatalf("want total=2 done=1, got total=%d done=%d", p.Total, p.Done)
	}
	if p.Percent != 50 {
		t.Fatalf("want 50%%, got %v", p.Percent)
	}
}

func TestFindOneMatchesByDisplayID(t *testing.T) {
	s, repoID := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, CreateInput{RepoID: repoID, DisplayID: "SD.37", AreaCode: models.AreaSD, Title: "Widget"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	it, err := s.FindOne(ctx, repoID, "sd.37")
	if err != nil {
		t.Fatalf("find by display id: %v", err)
	}
	if it.DisplayID != "SD.37" {
		t.Fatalf("want SD.37, got %s", it.DisplayID)
	}

	it, err = s.FindOne(ctx, repoID, "sd37")
	if err != nil {
		t.Fatalf("find by normalized id: %v", err)
	}
	if it.DisplayID != "SD.37" {
		t.Fatalf("want SD.37, got %s", it.DisplayID)
	}

	it, err = s.FindOne(ctx, repoID, "widget")
	if err != nil {
		t.Fatalf("find by title: %v", err)
	}
	if it.DisplayID != "SD.37" {
		t.Fatalf("want SD.37, got %s", it.DisplayID)
	}
}

func TestSetTagsReplacesExisting(t *testing.T) {
	s, repoID := newTestStore(t)
	ctx := context.Background()
	it, _ := s.Create(ctx, CreateInput{RepoID: repoID, DisplayID: "SD.1", AreaCode: models.AreaSD})

	if err := s.SetTags(ctx, it.ID, []string{"Alpha", "beta", "alpha"}); err != nil {
		t.Fatalf("set tags: %v", err)
	}
	tags, err := s.ItemTags(ctx, it.ID)
	if err != nil {
		t.Fatalf("item tags: %v", err)
	}
	if len(tags) != 2 || tags[0] != "alpha" || tags[1] != "beta" {
		t.Fatalf("want [alpha beta], got %v", tags)
	}

	if err := s.SetTags(ctx, it.ID, []string{"gamma"}); err != nil {
		t.Fatalf("set tags again: %v", err)
	}
	tags, err = s.ItemTags(ctx, it.ID)
	if err != nil {
		t.Fatalf("item tags: %v", err)
	}
	if len(tags) != 1 || tags[0] != "gamma" {
		t.Fatalf("want [gamma], got %v", tags)
	}
}

func TestAddTagRejectsInvalidFormat(t *testing.T) {
	s, repoID := newTestStore(t)
	ctx := context.Background()
	it, _ := s.Create(ctx, CreateInput{RepoID: repoID, DisplayID: "SD.1", AreaCode: models.AreaSD})

	if err := s.AddTag(ctx, it.ID, "not a tag"); !chkderr.Is(err, chkderr.Validation) {
		t.Fatalf("want validation error, got %v", err)
	}
}
