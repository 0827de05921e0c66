package workers

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
	repo := models.Repository{
		AbsolutePath:  "/tmp/repo",
		DisplayName:   "repo",
		DefaultBranch: "main",
		Enabled:       true,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	repoID, err := db.Insert(context.Background(), "repositories", &repo)
	if err != nil {
		t.Fatalf("insert repo: %v", err)
	}
	return New(db, clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}), repoID
}

func TestCreateRejectsSecondActiveWorkerOnSameTask(t *testing.T) {
	s, repoID := newTestStore(t)
	ctx := context.Background()
	in := CreateInput{RepoID: repoID, Username: "agent", TaskID: "SD.1", TaskTitle: "Widget"}
	if _, err := s.Create(ctx, in); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := s.Create(ctx, in)
	if !chkderr.Is(err, chkderr.Conflict) {
		t.Fatalf("want conflict error, got %v", err)
	}
}

func TestCreateAllowsNewWorkerAfterTerminal(t *testing.T) {
	s, repoID := newTestStore(t)
	ctx := context.Background()
	in := CreateInput{RepoID: repoID, Username: "agent", TaskID: "SD.1", TaskTitle: "Widget"}
	w, err := s.Create(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	canceled := models.WorkerCanceled
	if _, err := s.Update(ctx, w.ID, UpdateInput{Status: &canceled}); err != nil {
		t.Fatalf("update to canceled: %v", err)
	}

	if _, err := s.Create(ctx, in); err != nil {
		t.Fatalf("want create to succeed once prior worker is terminal, got %v", err)
	}
}

func TestUpdateRejectsArbiterOnlyStatuses(t *testing.T) {
	s, repoID := newTestStore(t)
	ctx := context.Background()
	w, err := s.Create(ctx, CreateInput{RepoID: repoID, Username: "agent", TaskID: "SD.1", TaskTitle: "Widget"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	merging := models.WorkerMerging
	_, err = s.Update(ctx, w.ID, UpdateInput{Status: &merging})
	if !chkderr.Is(err, chkderr.Conflict) {
		t.Fatalf("want conflict error for merging via Update, got %v", err)
	}
}

func TestUpdateRejectsIllegalTransition(t *testing.T) {
	s, repoID := newTestStore(t)
	ctx := context.Background()
	w, err := s.Create(ctx, CreateInput{RepoID: repoID, Username: "agent", TaskID: "SD.1", TaskTitle: "Widget"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	working := models.WorkerWorking
	_, err = s.Update(ctx, w.ID, UpdateInput{Status: &working})
	if !chkderr.Is(err, chkderr.Conflict) {
		t.Fatalf("want conflict error moving pending->working directly, got %v", err)
	}
}

func TestUpdateSetsStartedAtOnceEnteringWorking(t *testing.T) {
	s, repoID := newTestStore(t)
	ctx := context.Background()
	w, err := s.Create(ctx, CreateInput{RepoID: repoID, Username: "agent", TaskID: "SD.1", TaskTitle: "Widget"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	waiting := models.WorkerWaiting
	w, err = s.Update(ctx, w.ID, UpdateInput{Status: &waiting})
	if err != nil {
		t.Fatalf("pending->waiting: %v", err)
	}
	working := models.WorkerWorking
	w, err = s.Update(ctx, w.ID, UpdateInput{Status: &working})
	if err != nil {
		t.Fatalf("waiting->working: %v", err)
	}
	if w.StartedAt == nil {
		t.Fatalf("want startedAt set on entering working")
	}
}

func TestTransitionToMergingRequiresWorkingOrPaused(t *testing.T) {
	s, repoID := newTestStore(t)
	ctx := context.Background()
	w, err := s.Create(ctx, CreateInput{RepoID: repoID, Username: "agent", TaskID: "SD.1", TaskTitle: "Widget"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = s.TransitionToMerging(ctx, w.ID)
	if !chkderr.Is(err, chkderr.Conflict) {
		t.Fatalf("want conflict moving pending straight into merging, got %v", err)
	}
}

func TestFinalizeTerminalRejectsIneligibleState(t *testing.T) {
	s, repoID := newTestStore(t)
	ctx := context.Background()
	w, err := s.Create(ctx, CreateInput{RepoID: repoID, Username: "agent", TaskID: "SD.1", TaskTitle: "Widget"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = s.FinalizeTerminal(ctx, s.db, w.ID, []models.WorkerStatus{models.WorkerMerging}, models.WorkerMerged)
	if !chkderr.Is(err, chkderr.Conflict) {
		t.Fatalf("want conflict finalizing a pending worker as merged, got %v", err)
	}
}

func TestDeleteRequiresForceForNonTerminal(t *testing.T) {
	s, repoID := newTestStore(t)
	ctx := context.Background()
	w, err := s.Create(ctx, CreateInput{RepoID: repoID, Username: "agent", TaskID: "SD.1", TaskTitle: "Widget"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.Delete(ctx, w.ID, false); !chkderr.Is(err, chkderr.Conflict) {
		t.Fatalf("want conflict deleting non-terminal worker without force, got %v", err)
	}
	if err := s.Delete(ctx, w.ID, true); err != nil {
		t.Fatalf("force delete: %v", err)
	}
	if _, err := s.Get(ctx, w.ID); !chkderr.Is(err, chkderr.NotFound) {
		t.Fatalf("want worker gone after force delete, got %v", err)
	}
}

func TestCountActiveExcludesTerminalWorkers(t *testing.T) {
	s, repoID := newTestStore(t)
	ctx := context.Background()
	a, err := s.Create(ctx, CreateInput{RepoID: repoID, Username: "agent", TaskID: "SD.1", TaskTitle: "Widget"})
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	if _, err := s.Create(ctx, CreateInput{RepoID: repoID, Username: "agent", TaskID: "SD.2", TaskTitle: "Gadget"}); err != nil {
		t.Fatalf("create b: %v", err)
	}

	canceled := models.WorkerCanceled
	if _, err := s.Update(ctx, a.ID, UpdateInput{Status: &canceled}); err != nil {
		t.Fatalf("cancel a: %v", err)
	}

	n, err := s.CountActive(ctx, repoID)
	if err != nil {
		t.Fatalf("count active: %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1 active worker, got %d", n)
	}
}
