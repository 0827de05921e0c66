package worktree

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

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

// newTestRepo initializes a bare-minimum git repo on "main" with one commit.
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

func TestCreateAndRemoveWorktree(t *testing.T) {
	ctx := context.Background()
	repoDir := newTestRepo(t)
	d := New(2)

	repo := models.Repository{AbsolutePath: repoDir, DefaultBranch: "main"}
	path, branch, err := d.CreateWorktree(ctx, repo, "alice", "SD.1", "Add feature")
	if err != nil {
		t.Fatalf("CreateWorktree: %v", err)
	}
	if branch != "feature/alice/sd1-add-feature" {
		t.Fatalf("unexpected branch %q", branch)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected worktree dir to exist: %v", err)
	}

	if err := d.RemoveWorktree(ctx, repoDir, path, false); err != nil {
		t.Fatalf("RemoveWorktree: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected worktree dir to be gone, stat err = %v", err)
	}
}

func TestDryRunMergeCleanAndStats(t *testing.T) {
	ctx := context.Background()
	repoDir := newTestRepo(t)
	d := New(2)

	repo := models.Repository{AbsolutePath: repoDir, DefaultBranch: "main"}
	path, branch, err := d.CreateWorktree(ctx, repo, "bob", "SD.2", "Touch other file")
	if err != nil {
		t.Fatalf("CreateWorktree: %v", err)
	}
	writeFile(t, path, "other.txt", "from branch\n")
	runOK(t, path, "add", ".")
	runOK(t, path, "commit", "-m", "add other.txt")

	result, err := d.DryRunMerge(ctx, repoDir, branch, "main")
	if err != nil {
		t.Fatalf("DryRunMerge: %v", err)
	}
	if !result.Clean {
		t.Fatalf("expected clean merge, got conflicts: %+v", result.Conflicts)
	}

	stats, err := d.Stats(repoDir, branch, "main")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.FilesChanged != 1 || stats.Insertions == 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestDryRunMergeConflictingEdits(t *testing.T) {
	ctx := context.Background()
	repoDir := newTestRepo(t)
	d := New(2)

	repo := models.Repository{AbsolutePath: repoDir, DefaultBranch: "main"}
	path, branch, err := d.CreateWorktree(ctx, repo, "carol", "SD.3", "Edit readme")
	if err != nil {
		t.Fatalf("CreateWorktree: %v", err)
	}
	writeFile(t, path, "README.md", "branch version\n")
	runOK(t, path, "add", ".")
	runOK(t, path, "commit", "-m", "edit readme on branch")

	writeFile(t, repoDir, "README.md", "main version\n")
	runOK(t, repoDir, "add", ".")
	runOK(t, repoDir, "commit", "-m", "edit readme on main")

	result, err := d.DryRunMerge(ctx, repoDir, branch, "main")
	if err != nil {
		t.Fatalf("DryRunMerge: %v", err)
	}
	if result.Clean {
		t.Fatalf("expected conflicts, got clean merge")
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0].File != "README.md" {
		t.Fatalf("unexpected conflicts: %+v", result.Conflicts)
	}
}

func TestApplyMergeClean(t *testing.T) {
	ctx := context.Background()
	repoDir := newTestRepo(t)
	d := New(2)

	repo := models.Repository{AbsolutePath: repoDir, DefaultBranch: "main"}
	path, branch, err := d.CreateWorktree(ctx, repo, "dave", "SD.4", "Add file")
	if err != nil {
		t.Fatalf("CreateWorktree: %v", err)
	}
	writeFile(t, path, "added.txt", "content\n")
	runOK(t, path, "add", ".")
	runOK(t, path, "commit", "-m", "add added.txt")

	if err := d.ApplyMerge(ctx, repoDir, branch, "main", StrategyClean); err != nil {
		t.Fatalf("ApplyMerge: %v", err)
	}
	if _, err := os.Stat(filepath.Join(repoDir, "added.txt")); err != nil {
		t.Fatalf("expected added.txt on main after merge: %v", err)
	}
}
