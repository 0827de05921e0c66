package worktree

import "fmt"

// GitError is the typed failure surfaced by every driver operation: a git
// subprocess's exit code and stderr, tagged with the stage that failed. The
// Merge Arbiter maps these onto worker transitions; the driver itself never
// touches worker state.
type GitError struct {
	Stage    string
	ExitCode int
	Message  string
}

func (e *GitError) Error() string {
	return fmt.Sprintf("git %s: exit %d: %s", e.Stage, e.ExitCode, e.Message)
}
