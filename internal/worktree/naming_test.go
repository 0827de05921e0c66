package worktree

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Add login form":     "add-login-form",
		"Fix SD.37 bug!!":    "fix-sd-37-bug",
		"  leading/trailing ": "leading-trailing",
	}
	for in, want := range cases {
		if got := slug(in); got != want {
			t.Fatalf("slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlugTruncatesLongTitles(t *testing.T) {
	in := "Refactor the entire authentication and authorization subsystem end to end"
	got := slug(in)
	if len(got) > 30 {
		t.Fatalf("slug(%q) = %q (%d chars), want <= 30", in, got, len(got))
	}
	if strings.HasSuffix(got, "-") {
		t.Fatalf("slug(%q) = %q, want no trailing hyphen after truncation", in, got)
	}
	want := "refactor-the-entire-authentica"
	if got != want {
		t.Fatalf("slug(%q) = %q, want %q", in, got, want)
	}
}

func TestBranchName(t *testing.T) {
	got := branchName("alice", "SD.37", "Add login form")
	want := "feature/alice/sd37-add-login-form"
	if got != want {
		t.Fatalf("branchName = %q, want %q", got, want)
	}
}

func TestNextWorktreePathSkipsExisting(t *testing.T) {
	parent := t.TempDir()
	repoPath := filepath.Join(parent, "myrepo")
	if err := os.MkdirAll(repoPath, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(parent, "myrepo-alice-1"), 0o755); err != nil {
		t.Fatal(err)
	}

	path, err := nextWorktreePath(repoPath, "alice")
	if err != nil {
		t.Fatalf("nextWorktreePath: %v", err)
	}
	want := filepath.Join(parent, "myrepo-alice-2")
	if path != want {
		t.Fatalf("nextWorktreePath = %q, want %q", path, want)
	}
}

func TestParseConflictedPaths(t *testing.T) {
	out := "abc123def\x00src/foo.go\x00src/bar.go\x00"
	paths := parseConflictedPaths(out)
	if len(paths) != 2 || paths[0] != "src/foo.go" || paths[1] != "src/bar.go" {
		t.Fatalf("unexpected paths: %#v", paths)
	}
}

func TestParseConflictedPathsNoConflicts(t *testing.T) {
	out := "abc123def\x00"
	if paths := parseConflictedPaths(out); len(paths) != 0 {
		t.Fatalf("expected no paths, got %#v", paths)
	}
}
