package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

const slugMaxLen = 30

// slug lowercases s, collapses runs of non-alphanumeric characters to a
// single hyphen, trims leading/trailing hyphens, and caps the result at
// slugMaxLen characters so branch names stay bounded regardless of title
// length.
func slug(s string) string {
	lowered := strings.ToLower(s)
	dashed := nonAlnum.ReplaceAllString(lowered, "-")
	trimmed := strings.Trim(dashed, "-")
	if len(trimmed) > slugMaxLen {
		trimmed = strings.TrimRight(trimmed[:slugMaxLen], "-")
	}
	return trimmed
}

// branchName builds "feature/<username>/<displayId-slug>-<title-slug>" per
// the worktree driver's naming contract.
func branchName(username, displayID, title string) string {
	idPart := nonAlnum.ReplaceAllString(strings.ToLower(displayID), "")
	return fmt.Sprintf("feature/%s/%s-%s", username, idPart, slug(title))
}

// nextWorktreePath finds the smallest N >= 1 for which
// "<repoDir's parent>/<repoName>-<username>-<N>" does not yet exist.
func nextWorktreePath(repoPath, username string) (string, error) {
	parent := filepath.Dir(repoPath)
	repoName := filepath.Base(repoPath)
	for n := 1; ; n++ {
		candidate := filepath.Join(parent, fmt.Sprintf("%s-%s-%d", repoName, username, n))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
}
