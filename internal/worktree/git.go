package worktree

import (
	"context"
	"os/exec"
	"strings"
)

// runGit executes `git <args...>` with cwd dir, bounded by d's concurrency
// pool and cancellable via ctx, mirroring the teacher's runGit/runCmd
// pattern but context-aware so a cancelled request actually kills the
// subprocess instead of leaking it.
//
//nolint:gosec // G204: args are built internally from validated inputs, never from raw user text.
func (d *Driver) runGit(ctx context.Context, dir string, args ...string) (string, error) {
	out, code, err := d.runGitRaw(ctx, dir, args...)
	if err != nil {
		return out, &GitError{Stage: args[0], ExitCode: -1, Message: err.Error()}
	}
	if code != 0 {
		return out, &GitError{Stage: args[0], ExitCode: code, Message: strings.TrimSpace(out)}
	}
	return out, nil
}

// runGitTolerant behaves like runGit but treats any exit code in okCodes as
// success, returning the exit code to the caller for further dispatch. Used
// by dryRunMerge, where `git merge-tree` exits 1 to report conflicts rather
// than to signal failure.
func (d *Driver) runGitTolerant(ctx context.Context, dir string, okCodes []int, args ...string) (string, int, error) {
	out, code, err := d.runGitRaw(ctx, dir, args...)
	if err != nil {
		return out, code, &GitError{Stage: args[0], ExitCode: -1, Message: err.Error()}
	}
	for _, ok := range okCodes {
		if code == ok {
			return out, code, nil
		}
	}
	return out, code, &GitError{Stage: args[0], ExitCode: code, Message: strings.TrimSpace(out)}
}

func (d *Driver) runGitRaw(ctx context.Context, dir string, args ...string) (string, int, error) {
	d.pool.acquire()
	defer d.pool.release()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err == nil {
		return string(out), 0, nil
	}
	var exitErr *exec.ExitError
	if asExitError(err, &exitErr) {
		return string(out), exitErr.ExitCode(), nil
	}
	return string(out), -1, err
}

func asExitError(err error, target **exec.ExitError) bool {
	if e, ok := err.(*exec.ExitError); ok {
		*target = e
		return true
	}
	return false
}
