package mergearbiter

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/chkdhq/chkd/internal/chkderr"
	"github.com/chkdhq/chkd/internal/clock"
	"github.com/chkdhq/chkd/internal/signals"
	"github.com/chkdhq/chkd/internal/store/storetest"
	"github.com/chkdhq/chkd/internal/workers"
	"github.com/chkdhq/chkd/internal/worktree"
	"github.com/chkdhq/chkd/models"
)

func runOK(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// newTestRepo initializes a git repo on "main" with one commit.
func newTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runOK(t, dir, "init", "-b", "main")
	runOK(t, dir, "config", "user.email", "test@example.com")
	runOK(t, dir, "config", "user.name", "test")
	writeFile(t, dir, "README.md", "hello\n")
	runOK(t, dir, "add", ".")
	runOK(t, dir, "commit", "-m", "init")
	return dir
}

// setup wires an Arbiter over a real git repo, a migrated in-memory store,
// and a worker already moved to "working" with a feature branch checked out
// in a worktree.
func setup(t *testing.T) (*Arbiter, *workers.Store, int64, *models.Worker, string, string) {
	t.Helper()
	repoDir := newTestRepo(t)
	clk := clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	db := storetest.Open(t)
	repoRow := models.Repository{
		AbsolutePath:  repoDir,
		DisplayName:   "repo",
		DefaultBranch: "main",
		Enabled:       true,
		CreatedAt:     clk.Now(),
		UpdatedAt:     clk.Now(),
	}
	repoID, err := db.Insert(context.Background(), "repositories", &repoRow)
	if err != nil {
		t.Fatalf("insert repo: %v", err)
	}

	w := workers.New(db, clk)
	sig := signals.New(db, clk)
	driver := worktree.New(2)

	worker, err := w.Create(context.Background(), workers.CreateInput{
		RepoID: repoID, Username: "alice", TaskID: "SD.1", TaskTitle: "Add feature",
	})
	if err != nil {
		t.Fatalf("create worker: %v", err)
	}
	path, branch, err := driver.CreateWorktree(context.Background(), models.Repository{AbsolutePath: repoDir, DefaultBranch: "main"}, "alice", "SD.1", "Add feature")
	if err != nil {
		t.Fatalf("create worktree: %v", err)
	}
	worker.WorktreePath = path
	worker.BranchName = branch

	waiting := models.WorkerWaiting
	worker, err = w.Update(context.Background(), worker.ID, workers.UpdateInput{Status: &waiting})
	if err != nil {
		t.Fatalf("worker->waiting: %v", err)
	}
	working := models.WorkerWorking
	worker, err = w.Update(context.Background(), worker.ID, workers.UpdateInput{Status: &working})
	if err != nil {
		t.Fatalf("worker->working: %v", err)
	}
	worker.WorktreePath = path
	worker.BranchName = branch
	if err := db.Update(context.Background(), "workers", worker, "id = ?", worker.ID); err != nil {
		t.Fatalf("persist worktree path: %v", err)
	}

	a := New(db, w, driver, sig, clk, 2*time.Second)
	return a, w, repoID, worker, path, repoDir
}

func TestCompleteWorkerMergesCleanly(t *testing.T) {
	a, w, _, worker, worktreePath, _ := setup(t)

	writeFile(t, worktreePath, "feature.txt", "new feature\n")
	runOK(t, worktreePath, "add", ".")
	runOK(t, worktreePath, "commit", "-m", "add feature")

	result, err := a.CompleteWorker(context.Background(), worker.ID, true)
	if err != nil {
		t.Fatalf("complete worker: %v", err)
	}
	if result.MergeStatus != "merged" {
		t.Fatalf("want merged, got %q", result.MergeStatus)
	}
	if result.Worker.Status != models.WorkerMerged {
		t.Fatalf("want worker status merged, got %q", result.Worker.Status)
	}

	refetched, err := w.Get(context.Background(), worker.ID)
	if err != nil {
		t.Fatalf("get worker: %v", err)
	}
	if refetched.Status != models.WorkerMerged {
		t.Fatalf("want persisted status merged, got %q", refetched.Status)
	}

	var history []models.WorkerHistory
	if err := a.db.Select(context.Background(), &history, `SELECT * FROM worker_history WHERE worker_id = ?`, worker.ID); err != nil {
		t.Fatalf("select worker_history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("want 1 worker_history row, got %d", len(history))
	}
	// feature.txt is a new one-line file added on the branch: the merge
	// must diff against into's pre-merge commit, not the just-committed
	// merge result, or this comes back zeroed out.
	if history[0].FilesChanged != 1 || history[0].Insertions != 1 || history[0].Deletions != 0 {
		t.Fatalf("want 1 file changed / 1 insertion / 0 deletions, got %+v", history[0])
	}
}

func TestCompleteWorkerSurfacesConflictsWithoutAutoMerge(t *testing.T) {
	a, _, _, worker, worktreePath, repoDir := setup(t)

	writeFile(t, worktreePath, "README.md", "branch version\n")
	runOK(t, worktreePath, "add", ".")
	runOK(t, worktreePath, "commit", "-m", "edit readme on branch")

	writeFile(t, repoDir, "README.md", "main version\n")
	runOK(t, repoDir, "add", ".")
	runOK(t, repoDir, "commit", "-m", "edit readme on main")

	result, err := a.CompleteWorker(context.Background(), worker.ID, false)
	if err != nil {
		t.Fatalf("complete worker: %v", err)
	}
	if result.MergeStatus != "conflicts" {
		t.Fatalf("want conflicts, got %q", result.MergeStatus)
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0].File != "README.md" {
		t.Fatalf("unexpected conflicts: %+v", result.Conflicts)
	}
	if result.Worker.Status != models.WorkerMerging {
		t.Fatalf("want worker left in merging, got %q", result.Worker.Status)
	}
}

func TestCompleteWorkerRejectsNonWorkingWorker(t *testing.T) {
	a, w, _, worker, _, _ := setup(t)

	canceled := models.WorkerCanceled
	if _, err := w.Update(context.Background(), worker.ID, workers.UpdateInput{Status: &canceled}); err != nil {
		t.Fatalf("cancel worker: %v", err)
	}

	_, err := a.CompleteWorker(context.Background(), worker.ID, true)
	if !chkderr.Is(err, chkderr.Conflict) {
		t.Fatalf("want conflict completing a cancelled worker, got %v", err)
	}
}

func TestResolveWorkerRejectsWhenNotMerging(t *testing.T) {
	a, _, _, worker, _, _ := setup(t)

	_, err := a.ResolveWorker(context.Background(), worker.ID, "ours", nil)
	if !chkderr.Is(err, chkderr.Conflict) {
		t.Fatalf("want conflict resolving a non-merging worker, got %v", err)
	}
}

func TestResolveWorkerOursAfterConflict(t *testing.T) {
	a, _, _, worker, worktreePath, repoDir := setup(t)

	writeFile(t, worktreePath, "README.md", "branch version\n")
	runOK(t, worktreePath, "add", ".")
	runOK(t, worktreePath, "commit", "-m", "edit readme on branch")

	writeFile(t, repoDir, "README.md", "main version\n")
	runOK(t, repoDir, "add", ".")
	runOK(t, repoDir, "commit", "-m", "edit readme on main")

	if _, err := a.CompleteWorker(context.Background(), worker.ID, true); err != nil {
		t.Fatalf("complete worker: %v", err)
	}

	result, err := a.ResolveWorker(context.Background(), worker.ID, "ours", nil)
	if err != nil {
		t.Fatalf("resolve worker: %v", err)
	}
	if result.MergeStatus != "merged" {
		t.Fatalf("want merged, got %q", result.MergeStatus)
	}
	if result.Worker.Status != models.WorkerMerged {
		t.Fatalf("want worker status merged, got %q", result.Worker.Status)
	}
}
