package worktree

import (
	"context"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ConflictDiff is a short textual diff of one conflicting file's two sides,
// attached to a help signal's details so the operator can see what's in
// contention without opening an editor.
type ConflictDiff struct {
	File string `json:"file"`
	Diff string `json:"diff"`
}

// ConflictDiffs computes a word-level diff for each conflict's two sides,
// reading both blobs via `git show <ref>:<path>`.
func (d *Driver) ConflictDiffs(ctx context.Context, repoPath, into, branch string, conflicts []Conflict) []ConflictDiff {
	dmp := diffmatchpatch.New()
	out := make([]ConflictDiff, 0, len(conflicts))
	for _, c := range conflicts {
		intoBlob, _ := d.runGit(ctx, repoPath, "show", into+":"+c.File)
		branchBlob, _ := d.runGit(ctx, repoPath, "show", branch+":"+c.File)

		diffs := dmp.DiffMain(intoBlob, branchBlob, false)
		out = append(out, ConflictDiff{
			File: c.File,
			Diff: dmp.DiffPrettyText(diffs),
		})
	}
	return out
}
