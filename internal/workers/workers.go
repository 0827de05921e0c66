// Package workers implements the worker registry: record CRUD, the §4.4
// state machine, heartbeat refresh, and the liveness sweeper.
package workers

import (
	"context"
	"fmt"

	"github.com/chkdhq/chkd/internal/chkderr"
	"github.com/chkdhq/chkd/internal/clock"
	"github.com/chkdhq/chkd/internal/idgen"
	"github.com/chkdhq/chkd/internal/store"
	"github.com/chkdhq/chkd/models"
)

// Store provides worker registry operations over a backing store.DB.
type Store struct {
	db    store.DB
	clock clock.Clock
}

// New returns a worker Store backed by db, using clk for timestamps and id
// generation.
func New(db store.DB, clk clock.Clock) *Store {
	return &Store{db: db, clock: clk}
}

// CreateInput describes a new worker, registered in status "pending".
type CreateInput struct {
	RepoID        int64
	Username      string
	TaskID        string
	TaskTitle     string
	NextTaskID    string
	NextTaskTitle string
}

// Create registers a new pending worker, rejecting a clash with an existing
// non-terminal worker on the same (repoId, taskId).
func (s *Store) Create(ctx context.Context, in CreateInput) (*models.Worker, error) {
	active, err := s.activeForTask(ctx, in.RepoID, in.TaskID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, chkderr.New(chkderr.Conflict, "workers.Create",
			fmt.Errorf("task %s already has an active worker %s", in.TaskID, active.ID))
	}

	now := s.clock.Now()
	w := models.Worker{
		ID:            idgen.WorkerID(in.Username, now.UnixMilli()),
		RepoID:        in.RepoID,
		Username:      in.Username,
		TaskID:        in.TaskID,
		TaskTitle:     in.TaskTitle,
		Status:        models.WorkerPending,
		Progress:      0,
		CreatedAt:     now,
		NextTaskID:    in.NextTaskID,
		NextTaskTitle: in.NextTaskTitle,
	}
	if _, err := s.db.Insert(ctx, "workers", &w); err != nil {
		return nil, store.Classify("workers.Create", err)
	}
	return &w, nil
}

func (s *Store) activeForTask(ctx context.Context, repoID int64, taskID string) (*models.Worker, error) {
	var rows []models.Worker
	err := s.db.Select(ctx, &rows,
		`SELECT * FROM workers WHERE repo_id = ? AND task_id = ?
		 AND status NOT IN ('merged','error','cancelled')`, repoID, taskID)
	if err != nil {
		return nil, store.Classify("workers.activeForTask", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Get fetches one worker by id.
func (s *Store) Get(ctx context.Context, id string) (*models.Worker, error) {
	var rows []models.Worker
	if err := s.db.Select(ctx, &rows, `SELECT * FROM workers WHERE id = ?`, id); err != nil {
		return nil, store.Classify("workers.Get", err)
	}
	if len(rows) == 0 {
		return nil, chkderr.New(chkderr.NotFound, "workers.Get", fmt.Errorf("worker %s not found", id))
	}
	return &rows[0], nil
}

// ByRepo lists repo's workers, newest first.
func (s *Store) ByRepo(ctx context.Context, repoID int64) ([]models.Worker, error) {
	var rows []models.Worker
	err := s.db.Select(ctx, &rows, `SELECT * FROM workers WHERE repo_id = ? ORDER BY created_at DESC`, repoID)
	if err != nil {
		return nil, store.Classify("workers.ByRepo", err)
	}
	return rows, nil
}

// CountActive counts repo's non-terminal workers.
func (s *Store) CountActive(ctx context.Context, repoID int64) (int, error) {
	var rows []models.Worker
	err := s.db.Select(ctx, &rows,
		`SELECT id FROM workers WHERE repo_id = ? AND status NOT IN ('merged','error','cancelled')`, repoID)
	if err != nil {
		return 0, store.Classify("workers.CountActive", err)
	}
	return len(rows), nil
}

// transition applies a read-modify-write under the row's current status: it
// only succeeds if the worker is still in one of fromAny, enforcing the
// state machine's strict ordering even under concurrent writers.
func (s *Store) transition(ctx context.Context, id string, fromAny []models.WorkerStatus, next models.WorkerStatus, mutate func(w *models.Worker)) (*models.Worker, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, f := range fromAny {
		if w.Status == f {
			allowed = true
			break
		}
	}
	if !allowed || !w.Status.CanTransition(next) {
		return nil, chkderr.New(chkderr.Conflict, "workers.transition",
			fmt.Errorf("worker %s cannot move from %s to %s", id, w.Status, next))
	}

	now := s.clock.Now()
	w.Status = next
	if next == models.WorkerWorking && w.StartedAt == nil {
		w.StartedAt = &now
	}
	w.HeartbeatAt = &now
	if mutate != nil {
		mutate(w)
	}

	if err := s.updateWhere(ctx, w, id, fromAny); err != nil {
		return nil, err
	}
	return w, nil
}

// updateWhere writes w back, guarded by the row still being in one of
// fromAny — a defensive re-check against the race between Get and Update.
func (s *Store) updateWhere(ctx context.Context, w *models.Worker, id string, fromAny []models.WorkerStatus) error {
	placeholders := make([]interface{}, 0, len(fromAny)+1)
	clause := "id = ? AND status IN ("
	placeholders = append(placeholders, id)
	for i, f := range fromAny {
		if i > 0 {
			clause += ", "
		}
		clause += "?"
		placeholders = append(placeholders, f)
	}
	clause += ")"
	if err := s.db.Update(ctx, "workers", w, clause, placeholders...); err != nil {
		return store.Classify("workers.updateWhere", err)
	}
	return nil
}

// UpdateInput carries fields an operator or agent may mutate directly
// (status transitions the operator is allowed to drive, not the Arbiter's
// merging/merged/error transitions).
type UpdateInput struct {
	Status   *models.WorkerStatus
	Message  *string
	Progress *int
}

// Update applies in to worker id, refreshing its heartbeat. Status changes
// into merging/merged/error are rejected here — only the Merge Arbiter may
// drive those.
func (s *Store) Update(ctx context.Context, id string, in UpdateInput) (*models.Worker, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next := w.Status
	if in.Status != nil {
		next = *in.Status
		if next == models.WorkerMerging || next == models.WorkerMerged || next == models.WorkerError {
			return nil, chkderr.New(chkderr.Conflict, "workers.Update",
				fmt.Errorf("status %s may only be set by the merge arbiter", next))
		}
		if next != w.Status && !w.Status.CanTransition(next) {
			return nil, chkderr.New(chkderr.Conflict, "workers.Update",
				fmt.Errorf("worker %s cannot move from %s to %s", id, w.Status, next))
		}
	}

	now := s.clock.Now()
	w.Status = next
	if next == models.WorkerWorking && w.StartedAt == nil {
		w.StartedAt = &now
	}
	w.HeartbeatAt = &now
	if in.Message != nil {
		w.Message = *in.Message
	}
	if in.Progress != nil {
		w.Progress = *in.Progress
	}

	if err := s.db.Update(ctx, "workers", w, "id = ?", id); err != nil {
		return nil, store.Classify("workers.Update", err)
	}
	return w, nil
}

// Heartbeat refreshes worker id's heartbeatAt without changing status.
func (s *Store) Heartbeat(ctx context.Context, id string) (*models.Worker, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	w.HeartbeatAt = &now
	if err := s.db.Update(ctx, "workers", w, "id = ?", id); err != nil {
		return nil, store.Classify("workers.Heartbeat", err)
	}
	return w, nil
}

// TransitionToMerging is used exclusively by the Merge Arbiter to move a
// worker from working/paused into merging.
func (s *Store) TransitionToMerging(ctx context.Context, id string) (*models.Worker, error) {
	return s.transition(ctx, id, []models.WorkerStatus{models.WorkerWorking, models.WorkerPaused}, models.WorkerMerging, nil)
}

// TransitionToPaused is used by the Merge Arbiter when a merge is aborted.
func (s *Store) TransitionToPaused(ctx context.Context, id string) (*models.Worker, error) {
	return s.transition(ctx, id, []models.WorkerStatus{models.WorkerMerging}, models.WorkerPaused, nil)
}

// FinalizeTerminal moves a worker in fromAny into a terminal state
// (merged/error/cancelled), setting completedAt. Called inside the same
// store.DB transaction that writes the WorkerHistory row, per the
// invariant that both happen atomically.
func (s *Store) FinalizeTerminal(ctx context.Context, db store.DB, id string, fromAny []models.WorkerStatus, next models.WorkerStatus) (*models.Worker, error) {
	var rows []models.Worker
	if err := db.Select(ctx, &rows, `SELECT * FROM workers WHERE id = ?`, id); err != nil {
		return nil, store.Classify("workers.FinalizeTerminal", err)
	}
	if len(rows) == 0 {
		return nil, chkderr.New(chkderr.NotFound, "workers.FinalizeTerminal", fmt.Errorf("worker %s not found", id))
	}
	w := rows[0]
	allowed := false
	for _, f := range fromAny {
		if w.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, chkderr.New(chkderr.Conflict, "workers.FinalizeTerminal",
			fmt.Errorf("worker %s not in an eligible state (is %s)", id, w.Status))
	}
	now := s.clock.Now()
	w.Status = next
	w.CompletedAt = &now
	w.HeartbeatAt = &now
	if err := db.Update(ctx, "workers", &w, "id = ?", id); err != nil {
		return nil, store.Classify("workers.FinalizeTerminal", err)
	}
	return &w, nil
}

// Delete removes worker id. Non-terminal workers require force=true.
func (s *Store) Delete(ctx context.Context, id string, force bool) error {
	w, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !w.Status.Terminal() && !force {
		return chkderr.New(chkderr.Conflict, "workers.Delete",
			fmt.Errorf("worker %s is not terminal (status %s); pass force to delete anyway", id, w.Status))
	}
	if err := s.db.Exec(ctx, `DELETE FROM workers WHERE id = ?`, id); err != nil {
		return store.Classify("workers.Delete", err)
	}
	return nil
}
