package engine

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/chkdhq/chkd/internal/clock"
	"github.com/chkdhq/chkd/internal/config"
	"github.com/chkdhq/chkd/internal/items"
	"github.com/chkdhq/chkd/internal/store/storetest"
	"github.com/chkdhq/chkd/internal/workers"
	"github.com/chkdhq/chkd/models"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db := storetest.Open(t)
	return New(&config.Config{}, db, clock.Real{})
}

func runOK(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
}

func newTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runOK(t, dir, "init", "-b", "main")
	runOK(t, dir, "config", "user.email", "test@example.com")
	runOK(t, dir, "config", "user.name", "test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runOK(t, dir, "add", ".")
	runOK(t, dir, "commit", "-m", "init")
	return dir
}

func TestRepositoryCRUD(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	repo, err := e.AddRepository(ctx, "/tmp/proj", "Proj", "", "")
	if err != nil {
		t.Fatalf("AddRepository: %v", err)
	}
	if repo.DefaultBranch != "main" {
		t.Fatalf("expected default branch fallback to main, got %q", repo.DefaultBranch)
	}

	if _, err := e.AddRepository(ctx, "/tmp/proj", "Proj", "", ""); err == nil {
		t.Fatal("expected conflict on duplicate absolutePath")
	}

	newName := "Project One"
	updated, err := e.UpdateRepository(ctx, repo.ID, UpdateRepositoryInput{DisplayName: &newName})
	if err != nil || updated.DisplayName != newName {
		t.Fatalf("UpdateRepository: %v, %+v", err, updated)
	}

	list, err := e.ListRepositories(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListRepositories: %v, %v", err, list)
	}

	if err := e.DeleteRepository(ctx, repo.ID); err != nil {
		t.Fatalf("DeleteRepository: %v", err)
	}
	if _, err := e.GetRepository(ctx, repo.ID); err == nil {
		t.Fatal("expected repository to be gone")
	}
}

func TestDeleteRepositoryRefusesWithActiveWorker(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	repo, err := e.AddRepository(ctx, "/tmp/proj2", "Proj2", "main", "")
	if err != nil {
		t.Fatalf("AddRepository: %v", err)
	}
	if _, err := e.Workers.Create(ctx, workers.CreateInput{
		RepoID: repo.ID, Username: "alice", TaskID: "SD.1", TaskTitle: "Do it",
	}); err != nil {
		t.Fatalf("Workers.Create: %v", err)
	}

	if err := e.DeleteRepository(ctx, repo.ID); err == nil {
		t.Fatal("expected DeleteRepository to refuse with an active worker")
	}
}

func TestCreateTopLevelItemAndAddChild(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.AddRepository(ctx, "/tmp/proj", "Proj", "", ""); err != nil {
		t.Fatalf("AddRepository: %v", err)
	}

	a, err := e.CreateTopLevelItem(ctx, items.CreateInput{
		RepoID: 1, Title: "Feature A", AreaCode: models.AreaSD,
	})
	if err != nil || a.DisplayID != "SD.1" {
		t.Fatalf("CreateTopLevelItem: %v, %+v", err, a)
	}
	b, err := e.CreateTopLevelItem(ctx, items.CreateInput{
		RepoID: 1, Title: "Feature B", AreaCode: models.AreaSD,
	})
	if err != nil || b.DisplayID != "SD.2" {
		t.Fatalf("CreateTopLevelItem: %v, %+v", err, b)
	}

	child, err := e.AddChild(ctx, a.ID, "Sub one", "desc", models.PriorityHigh)
	if err != nil || child.DisplayID != "SD.1.1" {
		t.Fatalf("AddChild: %v, %+v", err, child)
	}
	grandchild, err := e.AddChild(ctx, child.ID, "Sub sub one", "", models.PriorityMedium)
	if err != nil || grandchild.DisplayID != "SD.1.1.1" {
		t.Fatalf("AddChild nested: %v, %+v", err, grandchild)
	}
}

func TestMoveItemRenumbersSubtree(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.AddRepository(ctx, "/tmp/proj", "Proj", "", ""); err != nil {
		t.Fatalf("AddRepository: %v", err)
	}

	a, err := e.CreateTopLevelItem(ctx, items.CreateInput{
		RepoID: 1, Title: "Feature A", AreaCode: models.AreaSD,
	})
	if err != nil {
		t.Fatalf("CreateTopLevelItem: %v", err)
	}
	child, err := e.AddChild(ctx, a.ID, "Sub one", "", models.PriorityMedium)
	if err != nil {
		t.Fatalf("AddChild: %v", err)
	}

	moved, err := e.MoveItem(ctx, a.ID, models.AreaFE)
	if err != nil {
		t.Fatalf("MoveItem: %v", err)
	}
	if moved.DisplayID != "FE.1" || moved.AreaCode != models.AreaFE {
		t.Fatalf("unexpected moved root: %+v", moved)
	}

	movedChild, err := e.Items.Get(ctx, child.ID)
	if err != nil {
		t.Fatalf("Get child: %v", err)
	}
	if movedChild.DisplayID != "FE.1.1" || movedChild.AreaCode != models.AreaFE {
		t.Fatalf("unexpected moved child: %+v", movedChild)
	}
}

func TestMoveItemRejectsNonTopLevel(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.AddRepository(ctx, "/tmp/proj", "Proj", "", ""); err != nil {
		t.Fatalf("AddRepository: %v", err)
	}

	a, err := e.CreateTopLevelItem(ctx, items.CreateInput{
		RepoID: 1, Title: "Feature A", AreaCode: models.AreaSD,
	})
	if err != nil {
		t.Fatalf("CreateTopLevelItem: %v", err)
	}
	child, err := e.AddChild(ctx, a.ID, "Sub one", "", models.PriorityMedium)
	if err != nil {
		t.Fatalf("AddChild: %v", err)
	}

	if _, err := e.MoveItem(ctx, child.ID, models.AreaFE); err == nil {
		t.Fatal("expected MoveItem to reject a non-top-level item")
	}
}

func TestSessionQueue(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.AddRepository(ctx, "/tmp/proj", "Proj", "", ""); err != nil {
		t.Fatalf("AddRepository: %v", err)
	}

	if err := e.QueueAdd(ctx, 1, "write docs"); err != nil {
		t.Fatalf("QueueAdd: %v", err)
	}
	if err := e.QueueAdd(ctx, 1, "fix bug"); err != nil {
		t.Fatalf("QueueAdd: %v", err)
	}
	titles, err := e.QueueGet(ctx, 1)
	if err != nil || len(titles) != 2 {
		t.Fatalf("QueueGet: %v, %v", err, titles)
	}

	if err := e.QueueRemove(ctx, 1, "write docs"); err != nil {
		t.Fatalf("QueueRemove: %v", err)
	}
	titles, err = e.QueueGet(ctx, 1)
	if err != nil || len(titles) != 1 || titles[0] != "fix bug" {
		t.Fatalf("unexpected queue after remove: %v, %v", err, titles)
	}
}

func TestSpawnWorkerProvisionsWorktree(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	repoPath := newTestRepo(t)

	repo, err := e.AddRepository(ctx, repoPath, "proj", "main", "")
	if err != nil {
		t.Fatalf("AddRepository: %v", err)
	}

	w, err := e.SpawnWorker(ctx, *repo, workers.CreateInput{
		RepoID: repo.ID, Username: "alice", TaskID: "SD.1", TaskTitle: "Add login form",
	})
	if err != nil {
		t.Fatalf("SpawnWorker: %v", err)
	}
	if w.Status != models.WorkerWaiting {
		t.Fatalf("expected status waiting, got %s", w.Status)
	}
	if w.WorktreePath == "" || w.BranchName == "" {
		t.Fatalf("expected worktree path and branch to be set: %+v", w)
	}
	if _, err := os.Stat(w.WorktreePath); err != nil {
		t.Fatalf("expected worktree dir to exist: %v", err)
	}

	signalsList, err := e.Signals.Active(ctx, repo.ID)
	if err != nil || len(signalsList) != 1 {
		t.Fatalf("expected one info signal: %v, %v", err, signalsList)
	}
}
