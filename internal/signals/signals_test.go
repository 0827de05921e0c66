package signals

import (
	"context"
	"testing"
	"time"

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

func TestEmitHydratesDetailsAndOptions(t *testing.T) {
	s, repoID := newTestStore(t)
	sig, err := s.Emit(context.Background(), EmitInput{
		RepoID:         repoID,
		WorkerID:       "agent-1",
		Type:           models.SignalDecision,
		Message:        "pick a merge strategy",
		Details:        map[string]any{"conflict_files": []any{"a.go"}},
		ActionRequired: true,
		ActionOptions:  []string{"ours", "theirs"},
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if sig.ID == "" {
		t.Fatalf("want non-empty id")
	}
	if len(sig.ActionOptions) != 2 || sig.ActionOptions[0] != "ours" {
		t.Fatalf("want hydrated action options, got %v", sig.ActionOptions)
	}
	if sig.Details["conflict_files"] == nil {
		t.Fatalf("want hydrated details, got %v", sig.Details)
	}
}

func TestActiveExcludesDismissed(t *testing.T) {
	s, repoID := newTestStore(t)
	ctx := context.Background()
	a, err := s.Emit(ctx, EmitInput{RepoID: repoID, Type: models.SignalInfo, Message: "a"})
	if err != nil {
		t.Fatalf("emit a: %v", err)
	}
	if _, err := s.Emit(ctx, EmitInput{RepoID: repoID, Type: models.SignalInfo, Message: "b"}); err != nil {
		t.Fatalf("emit b: %v", err)
	}

	if err := s.Dismiss(ctx, a.ID); err != nil {
		t.Fatalf("dismiss: %v", err)
	}

	active, err := s.Active(ctx, repoID)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 || active[0].Message != "b" {
		t.Fatalf("want only 'b' active, got %v", active)
	}
}

func TestDismissIsIdempotent(t *testing.T) {
	s, repoID := newTestStore(t)
	ctx := context.Background()
	sig, err := s.Emit(ctx, EmitInput{RepoID: repoID, Type: models.SignalWarning, Message: "x"})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if err := s.Dismiss(ctx, sig.ID); err != nil {
		t.Fatalf("first dismiss: %v", err)
	}
	if err := s.Dismiss(ctx, sig.ID); err != nil {
		t.Fatalf("second dismiss should be a no-op, got %v", err)
	}
}

func TestDismissAllReturnsAffectedCount(t *testing.T) {
	s, repoID := newTestStore(t)
	ctx := context.Background()
	for _, msg := range []string{"a", "b", "c"} {
		if _, err := s.Emit(ctx, EmitInput{RepoID: repoID, Type: models.SignalInfo, Message: msg}); err != nil {
			t.Fatalf("emit %s: %v", msg, err)
		}
	}

	n, err := s.DismissAll(ctx, repoID)
	if err != nil {
		t.Fatalf("dismiss all: %v", err)
	}
	if n != 3 {
		t.Fatalf("want 3 dismissed, got %d", n)
	}

	active, err := s.Active(ctx, repoID)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("want no active signals left, got %v", active)
	}
}

func TestActiveForWorkerDetectsExistingUndismissedSignal(t *testing.T) {
	s, repoID := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Emit(ctx, EmitInput{RepoID: repoID, WorkerID: "agent-1", Type: models.SignalHelp, Message: "stuck"}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	has, err := s.ActiveForWorker(ctx, "agent-1", models.SignalHelp)
	if err != nil {
		t.Fatalf("active for worker: %v", err)
	}
	if !has {
		t.Fatalf("want true, got false")
	}

	has, err = s.ActiveForWorker(ctx, "agent-2", models.SignalHelp)
	if err != nil {
		t.Fatalf("active for worker: %v", err)
	}
	if has {
		t.Fatalf("want false for unrelated worker, got true")
	}
}
