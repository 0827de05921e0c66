// Package worktree is the only chkd component that shells out to git. It
// creates and tears down per-worker worktrees, dry-runs merges in an
// ephemeral index, applies resolved merges, and computes diff stats — all
// funneled through a bounded subprocess pool.
package worktree

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/chkdhq/chkd/models"
)

// MergeStrategy selects how applyMerge resolves conflicts.
type MergeStrategy string

const (
	StrategyClean  MergeStrategy = "clean"
	StrategyOurs   MergeStrategy = "ours"
	StrategyTheirs MergeStrategy = "theirs"
)

// Conflict describes one path in contention during a dry-run merge.
type Conflict struct {
	File string `json:"file"`
	Kind string `json:"kind"`
}

const (
	ConflictModifyModify = "modify/modify"
	ConflictAddAdd       = "add/add"
	ConflictDeleteModify = "delete/modify"
	ConflictModifyDelete = "modify/delete"
	ConflictRename       = "rename"
	ConflictUnknown      = "unknown"
)

// MergeResult is dryRunMerge's answer.
type MergeResult struct {
	Clean     bool       `json:"clean"`
	Conflicts []Conflict `json:"conflicts"`
}

// Stats summarizes a merge's diff for WorkerHistory.
type Stats struct {
	FilesChanged int `json:"files_changed"`
	Insertions   int `json:"insertions"`
	Deletions    int `json:"deletions"`
}

// Driver is the worktree and merge engine bound to no particular repo; each
// method takes the repository/paths it needs explicitly.
type Driver struct {
	pool *pool
}

// New returns a Driver whose git subprocesses are capped at concurrency
// simultaneous invocations.
func New(concurrency int) *Driver {
	return &Driver{pool: newPool(concurrency)}
}

// CreateWorktree creates a new branch off repo.DefaultBranch and a linked
// worktree for worker, returning the worktree path and branch name per the
// driver's naming contract.
func (d *Driver) CreateWorktree(ctx context.Context, repo models.Repository, username, displayID, title string) (worktreePath, branch string, err error) {
	path, err := nextWorktreePath(repo.AbsolutePath, username)
	if err != nil {
		return "", "", fmt.Errorf("worktree.CreateWorktree: %w", err)
	}
	branch = branchName(username, displayID, title)

	base := repo.DefaultBranch
	if base == "" {
		base = "main"
	}
	if _, err := d.runGit(ctx, repo.AbsolutePath, "worktree", "add", "-b", branch, path, base); err != nil {
		return "", "", err
	}
	return path, branch, nil
}

// RemoveWorktree detaches and deletes the worktree at path. force passes
// --force, required when the worktree has uncommitted changes.
func (d *Driver) RemoveWorktree(ctx context.Context, repoPath, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := d.runGit(ctx, repoPath, args...)
	return err
}

// DryRunMerge performs an ephemeral-index merge of branch into into without
// touching the working tree, via `git merge-tree`, and reports whether it
// is clean plus the conflicted paths if not.
func (d *Driver) DryRunMerge(ctx context.Context, repoPath, branch, into string) (*MergeResult, error) {
	out, code, err := d.runGitTolerant(ctx, repoPath, []int{0, 1}, "merge-tree", "--write-tree", "--name-only", "-z", into, branch)
	if err != nil {
		return nil, err
	}
	if code == 0 {
		return &MergeResult{Clean: true}, nil
	}

	paths := parseConflictedPaths(out)
	conflicts := make([]Conflict, 0, len(paths))
	for _, p := range paths {
		conflicts = append(conflicts, Conflict{
			File: p,
			Kind: d.classifyConflict(ctx, repoPath, into, branch, p),
		})
	}
	return &MergeResult{Clean: false, Conflicts: conflicts}, nil
}

// parseConflictedPaths extracts file paths out of `git merge-tree
// --name-only -z`'s NUL-delimited output: the first token is the written
// tree's oid, the remainder (when present) are conflicted paths.
func parseConflictedPaths(out string) []string {
	tokens := strings.Split(strings.Trim(out, "\x00"), "\x00")
	var paths []string
	for i, t := range tokens {
		if i == 0 || t == "" {
			continue
		}
		paths = append(paths, t)
	}
	return paths
}

// classifyConflict inspects whether path exists on each side of the merge
// to approximate the conflict kind. Best-effort: a path present on both
// sides is reported as modify/modify, the common case; one-sided presence
// is reported as delete/modify or modify/delete (into side first).
func (d *Driver) classifyConflict(ctx context.Context, repoPath, into, branch, path string) string {
	intoHas := d.pathExistsAt(ctx, repoPath, into, path)
	branchHas := d.pathExistsAt(ctx, repoPath, branch, path)
	switch {
	case intoHas && branchHas:
		return ConflictModifyModify
	case !intoHas && branchHas:
		return ConflictDeleteModify
	case intoHas && !branchHas:
		return ConflictModifyDelete
	default:
		return ConflictUnknown
	}
}

func (d *Driver) pathExistsAt(ctx context.Context, repoPath, ref, path string) bool {
	_, err := d.runGit(ctx, repoPath, "cat-file", "-e", ref+":"+path)
	return err == nil
}

// ApplyMerge commits a merge of branch into into under the repository
// checked out at repoPath, using strategy to resolve conflicts. With
// strategy=clean it fails if any conflict remains.
func (d *Driver) ApplyMerge(ctx context.Context, repoPath, branch, into string, strategy MergeStrategy) error {
	if _, err := d.runGit(ctx, repoPath, "checkout", into); err != nil {
		return err
	}

	args := []string{"merge", "--no-commit", "--no-ff"}
	switch strategy {
	case StrategyOurs:
		args = append(args, "-X", "ours")
	case StrategyTheirs:
		args = append(args, "-X", "theirs")
	case StrategyClean:
	default:
		return &GitError{Stage: "merge_apply", ExitCode: -1, Message: fmt.Sprintf("unknown strategy %q", strategy)}
	}
	args = append(args, branch)

	if _, err := d.runGit(ctx, repoPath, args...); err != nil {
		if strategy == StrategyClean {
			_, _ = d.runGit(ctx, repoPath, "merge", "--abort")
			return err
		}
		return err
	}

	if _, err := d.runGit(ctx, repoPath, "commit", "-m", fmt.Sprintf("Merge branch '%s' into %s", branch, into)); err != nil {
		return err
	}
	return nil
}

// AbortMerge discards any in-progress merge at path.
func (d *Driver) AbortMerge(ctx context.Context, path string) error {
	_, err := d.runGit(ctx, path, "merge", "--abort")
	return err
}

// Stats computes the diff summary between into and branch via go-git's
// commit patch machinery. into may be a branch name or a raw commit hash, so a caller
// can pass a ResolveCommit snapshot taken before into was advanced.
func (d *Driver) Stats(repoPath, branch, into string) (*Stats, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("worktree.Stats: open: %w", err)
	}

	intoHash, err := resolveRef(repo, into)
	if err != nil {
		return nil, fmt.Errorf("worktree.Stats: resolve %s: %w", into, err)
	}
	branchHash, err := resolveRef(repo, branch)
	if err != nil {
		return nil, fmt.Errorf("worktree.Stats: resolve %s: %w", branch, err)
	}

	intoCommit, err := repo.CommitObject(intoHash)
	if err != nil {
		return nil, fmt.Errorf("worktree.Stats: commit %s: %w", into, err)
	}
	branchCommit, err := repo.CommitObject(branchHash)
	if err != nil {
		return nil, fmt.Errorf("worktree.Stats: commit %s: %w", branch, err)
	}

	patch, err := intoCommit.Patch(branchCommit)
	if err != nil {
		return nil, fmt.Errorf("worktree.Stats: patch: %w", err)
	}

	stats := &Stats{}
	for _, fs := range patch.Stats() {
		stats.FilesChanged++
		stats.Insertions += fs.Addition
		stats.Deletions += fs.Deletion
	}
	return stats, nil
}

// ResolveCommit returns the hex commit hash ref currently points to, so a
// caller can snapshot a branch before mutating it (e.g. before ApplyMerge
// moves into forward) and later diff against the pre-mutation state.
func (d *Driver) ResolveCommit(repoPath, ref string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("worktree.ResolveCommit: open: %w", err)
	}
	hash, err := resolveRef(repo, ref)
	if err != nil {
		return "", fmt.Errorf("worktree.ResolveCommit: resolve %s: %w", ref, err)
	}
	return hash.String(), nil
}

func resolveRef(repo *git.Repository, name string) (plumbing.Hash, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if err == nil {
		return ref.Hash(), nil
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(name))
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return *hash, nil
}
