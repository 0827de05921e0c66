// Package mergearbiter is the only component allowed to transition a worker
// into merging, merged, or error. It drives the worktree driver's dry-run/
// apply/abort operations and commits the resulting worker+history state in
// one transaction, per spec §4.6.
package mergearbiter

import (
	"context"
	"fmt"
	"time"

	"github.com/chkdhq/chkd/internal/chkderr"
	"github.com/chkdhq/chkd/internal/clock"
	"github.com/chkdhq/chkd/internal/signals"
	"github.com/chkdhq/chkd/internal/store"
	"github.com/chkdhq/chkd/internal/workers"
	"github.com/chkdhq/chkd/internal/worktree"
	"github.com/chkdhq/chkd/models"
)

// Arbiter owns the worker-merge protocol: completeWorker / resolveWorker.
type Arbiter struct {
	db      store.DB
	workers *workers.Store
	driver  *worktree.Driver
	signals *signals.Store
	clock   clock.Clock
	locks   *lockTable

	lockTimeout time.Duration
}

// New returns an Arbiter composing the registry, driver, and signal bus over
// db, bounding merge-lock acquisition by lockTimeout.
func New(db store.DB, w *workers.Store, d *worktree.Driver, sig *signals.Store, clk clock.Clock, lockTimeout time.Duration) *Arbiter {
	return &Arbiter{
		db:          db,
		workers:     w,
		driver:      d,
		signals:     sig,
		clock:       clk,
		locks:       newLockTable(),
		lockTimeout: lockTimeout,
	}
}

// CompleteResult is completeWorker's outcome.
type CompleteResult struct {
	MergeStatus string            `json:"merge_status"` // "merged" | "conflicts" | "error"
	Worker      *models.Worker    `json:"worker"`
	Conflicts   []worktree.Conflict `json:"conflicts,omitempty"`
}

func (a *Arbiter) loadRepo(ctx context.Context, repoID int64) (*models.Repository, error) {
	var rows []models.Repository
	if err := a.db.Select(ctx, &rows, `SELECT * FROM repositories WHERE id = ?`, repoID); err != nil {
		return nil, store.Classify("mergearbiter.loadRepo", err)
	}
	if len(rows) == 0 {
		return nil, chkderr.New(chkderr.NotFound, "mergearbiter.loadRepo", fmt.Errorf("repository %d not found", repoID))
	}
	return &rows[0], nil
}

// CompleteWorker runs the completeWorker protocol from spec §4.6: dry-run
// merge, then either apply cleanly or surface a help signal with the
// conflict set, depending on autoMerge.
func (a *Arbiter) CompleteWorker(ctx context.Context, workerID string, autoMerge bool) (*CompleteResult, error) {
	w, err := a.workers.Get(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if w.Status != models.WorkerWorking && w.Status != models.WorkerPaused {
		return nil, chkderr.New(chkderr.Conflict, "mergearbiter.CompleteWorker",
			fmt.Errorf("worker %s is not working or paused (status %s)", workerID, w.Status))
	}

	repo, err := a.loadRepo(ctx, w.RepoID)
	if err != nil {
		return nil, err
	}

	lock := a.locks.forRepo(repo.ID)
	lockCtx, cancel := context.WithTimeout(ctx, a.lockTimeout)
	defer cancel()
	if err := lock.tryLock(lockCtx); err != nil {
		return nil, chkderr.New(chkderr.Timeout, "mergearbiter.CompleteWorker",
			fmt.Errorf("could not acquire merge lock for repo %d: %w", repo.ID, err))
	}
	defer lock.unlock()

	if w, err = a.workers.TransitionToMerging(ctx, workerID); err != nil {
		return nil, err
	}

	result, err := a.driver.DryRunMerge(ctx, repo.AbsolutePath, w.BranchName, repo.DefaultBranch)
	if err != nil {
		return a.finalizeError(ctx, w, err)
	}

	if result.Clean {
		return a.applyAndFinalize(ctx, w, repo, worktree.StrategyClean, 0)
	}

	if !autoMerge {
		return &CompleteResult{MergeStatus: "conflicts", Worker: w, Conflicts: result.Conflicts}, nil
	}

	diffs := a.driver.ConflictDiffs(ctx, repo.AbsolutePath, repo.DefaultBranch, w.BranchName, result.Conflicts)
	_, _ = a.signals.Emit(ctx, signals.EmitInput{
		RepoID:         repo.ID,
		WorkerID:       w.ID,
		Type:           models.SignalHelp,
		Message:        fmt.Sprintf("worker %s has merge conflicts", w.ID),
		ActionRequired: true,
		ActionOptions:  []string{"ours", "theirs", "abort"},
		Details: map[string]any{
			"conflicts":     result.Conflicts,
			"conflictDiffs": diffs,
			"branchName":    w.BranchName,
			"targetBranch":  repo.DefaultBranch,
		},
	})

	return &CompleteResult{MergeStatus: "conflicts", Worker: w, Conflicts: result.Conflicts}, nil
}

// ResolveWorker implements resolveWorker: ours/theirs finish the merge with
// the requested resolution, abort discards it and returns the worker to
// paused.
func (a *Arbiter) ResolveWorker(ctx context.Context, workerID, strategy string, files []string) (*CompleteResult, error) {
	w, err := a.workers.Get(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if w.Status != models.WorkerMerging {
		return nil, chkderr.New(chkderr.Conflict, "mergearbiter.ResolveWorker",
			fmt.Errorf("worker %s is not awaiting merge resolution (status %s)", workerID, w.Status))
	}
	repo, err := a.loadRepo(ctx, w.RepoID)
	if err != nil {
		return nil, err
	}

	lock := a.locks.forRepo(repo.ID)
	lockCtx, cancel := context.WithTimeout(ctx, a.lockTimeout)
	defer cancel()
	if err := lock.tryLock(lockCtx); err != nil {
		return nil, chkderr.New(chkderr.Timeout, "mergearbiter.ResolveWorker",
			fmt.Errorf("could not acquire merge lock for repo %d: %w", repo.ID, err))
	}
	defer lock.unlock()

	if strategy == "abort" {
		if err := a.driver.AbortMerge(ctx, repo.AbsolutePath); err != nil {
			return a.finalizeError(ctx, w, err)
		}
		w, err := a.workers.TransitionToPaused(ctx, workerID)
		if err != nil {
			return nil, err
		}
		a.recordHistory(ctx, a.db, repo, w, models.OutcomeAborted, 0, 0, 0, 0)
		return &CompleteResult{MergeStatus: "aborted", Worker: w}, nil
	}

	result, err := a.driver.DryRunMerge(ctx, repo.AbsolutePath, w.BranchName, repo.DefaultBranch)
	if err != nil {
		return a.finalizeError(ctx, w, err)
	}
	if len(files) > 0 && !supersetOf(files, conflictFiles(result.Conflicts)) {
		return nil, chkderr.New(chkderr.Conflict, "mergearbiter.ResolveWorker",
			fmt.Errorf("files subset does not cover all conflicting paths"))
	}

	var mergeStrategy worktree.MergeStrategy
	switch strategy {
	case "ours":
		mergeStrategy = worktree.StrategyOurs
	case "theirs":
		mergeStrategy = worktree.StrategyTheirs
	default:
		return nil, chkderr.New(chkderr.Validation, "mergearbiter.ResolveWorker",
			fmt.Errorf("unknown resolution strategy %q", strategy))
	}

	return a.applyAndFinalize(ctx, w, repo, mergeStrategy, len(result.Conflicts))
}

func conflictFiles(conflicts []worktree.Conflict) []string {
	out := make([]string, len(conflicts))
	for i, c := range conflicts {
		out[i] = c.File
	}
	return out
}

func supersetOf(files, conflicting []string) bool {
	set := make(map[string]bool, len(files))
	for _, f := range files {
		set[f] = true
	}
	for _, c := range conflicting {
		if !set[c] {
			return false
		}
	}
	return true
}

func (a *Arbiter) applyAndFinalize(ctx context.Context, w *models.Worker, repo *models.Repository, strategy worktree.MergeStrategy, mergeConflicts int) (*CompleteResult, error) {
	// Snapshot into's commit before ApplyMerge advances it, so Stats diffs
	// against the tree as it was prior to the merge rather than the
	// just-committed merge result (which would always look like a no-op).
	preMergeInto, err := a.driver.ResolveCommit(repo.AbsolutePath, repo.DefaultBranch)
	if err != nil {
		return a.finalizeError(ctx, w, err)
	}

	if err := a.driver.ApplyMerge(ctx, repo.AbsolutePath, w.BranchName, repo.DefaultBranch, strategy); err != nil {
		return a.finalizeError(ctx, w, err)
	}
	stats, err := a.driver.Stats(repo.AbsolutePath, w.BranchName, preMergeInto)
	if err != nil {
		return a.finalizeError(ctx, w, err)
	}
	_ = a.driver.RemoveWorktree(ctx, repo.AbsolutePath, w.WorktreePath, true)

	var finalized *models.Worker
	err = a.db.WithTx(ctx, func(tx store.DB) error {
		fw, ferr := a.workers.FinalizeTerminal(ctx, tx, w.ID, []models.WorkerStatus{models.WorkerMerging}, models.WorkerMerged)
		if ferr != nil {
			return ferr
		}
		finalized = fw
		history := buildHistory(repo.ID, fw, models.OutcomeMerged, mergeConflicts, stats.FilesChanged, stats.Insertions, stats.Deletions)
		if _, ierr := tx.Insert(ctx, "worker_history", &history); ierr != nil {
			return store.Classify("mergearbiter.applyAndFinalize", ierr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_, _ = a.signals.Emit(ctx, signals.EmitInput{
		RepoID:   repo.ID,
		WorkerID: finalized.ID,
		Type:     models.SignalInfo,
		Message:  fmt.Sprintf("worker %s merged cleanly", finalized.ID),
	})
	return &CompleteResult{MergeStatus: "merged", Worker: finalized}, nil
}

func (a *Arbiter) finalizeError(ctx context.Context, w *models.Worker, cause error) (*CompleteResult, error) {
	var finalized *models.Worker
	err := a.db.WithTx(ctx, func(tx store.DB) error {
		fw, ferr := a.workers.FinalizeTerminal(ctx, tx, w.ID,
			[]models.WorkerStatus{models.WorkerMerging, models.WorkerWorking, models.WorkerPaused}, models.WorkerError)
		if ferr != nil {
			return ferr
		}
		finalized = fw
		history := buildHistory(w.RepoID, fw, models.OutcomeError, 0, 0, 0, 0)
		if _, ierr := tx.Insert(ctx, "worker_history", &history); ierr != nil {
			return store.Classify("mergearbiter.finalizeError", ierr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_, _ = a.signals.Emit(ctx, signals.EmitInput{
		RepoID:   w.RepoID,
		WorkerID: finalized.ID,
		Type:     models.SignalWarning,
		Message:  fmt.Sprintf("worker %s failed: %v", finalized.ID, cause),
	})
	return nil, chkderr.New(chkderr.Git, "mergearbiter", cause)
}

func (a *Arbiter) recordHistory(ctx context.Context, db store.DB, repo *models.Repository, w *models.Worker, outcome models.WorkerOutcome, conflicts, filesChanged, insertions, deletions int) {
	history := buildHistory(repo.ID, w, outcome, conflicts, filesChanged, insertions, deletions)
	if history.CompletedAt.IsZero() {
		history.CompletedAt = a.clock.Now()
	}
	_, _ = db.Insert(ctx, "worker_history", &history)
}

func buildHistory(repoID int64, w *models.Worker, outcome models.WorkerOutcome, mergeConflicts, filesChanged, insertions, deletions int) models.WorkerHistory {
	h := models.WorkerHistory{
		RepoID:         repoID,
		WorkerID:       w.ID,
		TaskID:         w.TaskID,
		TaskTitle:      w.TaskTitle,
		BranchName:     w.BranchName,
		Outcome:        outcome,
		MergeConflicts: mergeConflicts,
		FilesChanged:   filesChanged,
		Insertions:     insertions,
		Deletions:      deletions,
		StartedAt:      w.StartedAt,
	}
	if w.CompletedAt != nil {
		h.CompletedAt = *w.CompletedAt
	}
	if w.StartedAt != nil && w.CompletedAt != nil {
		d := w.CompletedAt.Sub(*w.StartedAt).Milliseconds()
		h.DurationMs = &d
	}
	return h
}
