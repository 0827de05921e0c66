package models

import "time"

// WorkerStatus is the lifecycle state of a worker.
type WorkerStatus string

const (
	WorkerPending  WorkerStatus = "pending"
	WorkerWaiting  WorkerStatus = "waiting"
	WorkerWorking  WorkerStatus = "working"
	WorkerPaused   WorkerStatus = "paused"
	WorkerMerging  WorkerStatus = "merging"
	WorkerMerged   WorkerStatus = "merged"
	WorkerError    WorkerStatus = "error"
	WorkerCanceled WorkerStatus = "cancelled"
)

// Valid reports whether s is a recognized worker status.
func (s WorkerStatus) Valid() bool {
	switch s {
	case WorkerPending, WorkerWaiting, WorkerWorking, WorkerPaused,
		WorkerMerging, WorkerMerged, WorkerError, WorkerCanceled:
		return true
	default:
		return false
	}
}

// Terminal reports whether s is one of the worker state machine's terminal
// states — no transitions are allowed out of these.
func (s WorkerStatus) Terminal() bool {
	switch s {
	case WorkerMerged, WorkerError, WorkerCanceled:
		return true
	default:
		return false
	}
}

// workerTransitions is the adjacency list of the §4.4 worker state machine.
var workerTransitions = map[WorkerStatus][]WorkerStatus{
	WorkerPending: {WorkerWaiting, WorkerCanceled},
	WorkerWaiting: {WorkerWorking, WorkerCanceled, WorkerError},
	WorkerWorking: {WorkerPaused, WorkerMerging, WorkerError, WorkerCanceled},
	WorkerPaused:  {WorkerWorking, WorkerMerging, WorkerError, WorkerCanceled},
	WorkerMerging: {WorkerMerged, WorkerError, WorkerPaused},
	WorkerMerged:  {},
	WorkerError:   {},
	WorkerCanceled: {},
}

// CanTransition reports whether moving from s to next is allowed by the
// worker state machine.
func (s WorkerStatus) CanTransition(next WorkerStatus) bool {
	for _, allowed := range workerTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Worker is an isolated concurrent executor bound to one task in one git
// worktree.
type Worker struct {
	ID            string       `json:"id"             db:"id"`
	RepoID        int64        `json:"repo_id"        db:"repo_id"`
	Username      string       `json:"username"       db:"username"`
	TaskID        string       `json:"task_id"        db:"task_id"`
	TaskTitle     string       `json:"task_title"     db:"task_title"`
	Status        WorkerStatus `json:"status"         db:"status"`
	Message       string       `json:"message"        db:"message"`
	Progress      int          `json:"progress"       db:"progress"`
	WorktreePath  string       `json:"worktree_path"  db:"worktree_path"`
	BranchName    string       `json:"branch_name"    db:"branch_name"`
	CreatedAt     time.Time    `json:"created_at"     db:"created_at"`
	StartedAt     *time.Time   `json:"started_at"     db:"started_at"`
	CompletedAt   *time.Time   `json:"completed_at"   db:"completed_at"`
	HeartbeatAt   *time.Time   `json:"heartbeat_at"   db:"heartbeat_at"`
	NextTaskID    string       `json:"next_task_id"   db:"next_task_id"`
	NextTaskTitle string       `json:"next_task_title" db:"next_task_title"`
}

// WorkerOutcome is the terminal result recorded in WorkerHistory.
type WorkerOutcome string

const (
	OutcomeMerged  WorkerOutcome = "merged"
	OutcomeAborted WorkerOutcome = "aborted"
	OutcomeError   WorkerOutcome = "error"
)

// WorkerHistory is the append-only record of a worker's terminal outcome.
type WorkerHistory struct {
	ID             int64         `json:"id"              db:"id"`
	RepoID         int64         `json:"repo_id"         db:"repo_id"`
	WorkerID       string        `json:"worker_id"       db:"worker_id"`
	TaskID         string        `json:"task_id"         db:"task_id"`
	TaskTitle      string        `json:"task_title"      db:"task_title"`
	BranchName     string        `json:"branch_name"     db:"branch_name"`
	Outcome        WorkerOutcome `json:"outcome"         db:"outcome"`
	MergeConflicts int           `json:"merge_conflicts" db:"merge_conflicts"`
	FilesChanged   int           `json:"files_changed"   db:"files_changed"`
	Insertions     int           `json:"insertions"      db:"insertions"`
	Deletions      int           `json:"deletions"       db:"deletions"`
	StartedAt      *time.Time    `json:"started_at"      db:"started_at"`
	CompletedAt    time.Time     `json:"completed_at"    db:"completed_at"`
	DurationMs     *int64        `json:"duration_ms"     db:"duration_ms"`
}
