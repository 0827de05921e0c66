package models

import "time"

// SessionStatus is the coarse state of a repo's active session.
type SessionStatus string

const (
	SessionIdle             SessionStatus = "idle"
	SessionBuilding         SessionStatus = "building"
	SessionReadyForTesting  SessionStatus = "ready_for_testing"
	SessionRework           SessionStatus = "rework"
	SessionComplete         SessionStatus = "complete"
)

// Valid reports whether s is a recognized session status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionIdle, SessionBuilding, SessionReadyForTesting, SessionRework, SessionComplete:
		return true
	default:
		return false
	}
}

// SessionMode describes what kind of work the operator is currently doing.
type SessionMode string

const (
	ModeBuilding   SessionMode = "building"
	ModeDebugging  SessionMode = "debugging"
	ModeStory      SessionMode = "story"
	ModeReviewing  SessionMode = "reviewing"
	ModeNone       SessionMode = ""
)

// Valid reports whether m is a recognized session mode (the empty mode
// "null" is valid and means no mode is set).
func (m SessionMode) Valid() bool {
	switch m {
	case ModeBuilding, ModeDebugging, ModeStory, ModeReviewing, ModeNone:
		return true
	default:
		return false
	}
}

// AnchorSetBy records who declared the anchor task.
type AnchorSetBy string

const (
	AnchorSetByUI  AnchorSetBy = "ui"
	AnchorSetByCLI AnchorSetBy = "cli"
)

// Session is the per-repository operator session state.
type Session struct {
	RepoID              int64         `json:"repo_id"                 db:"repo_id"`
	CurrentTask         string        `json:"current_task"            db:"current_task"`
	CurrentItem         string        `json:"current_item"            db:"current_item"`
	CurrentItemStartAt  *time.Time    `json:"current_item_start_time" db:"current_item_start_time"`
	Status              SessionStatus `json:"status"                  db:"status"`
	Mode                SessionMode   `json:"mode"                    db:"mode"`
	StartTime           *time.Time    `json:"start_time"               db:"start_time"`
	Iteration           int           `json:"iteration"                db:"iteration"`
	LastActivity        time.Time     `json:"last_activity"            db:"last_activity"`
	FilesTouchedJSON    string        `json:"-"                        db:"files_touched"`
	BugFixesJSON        string        `json:"-"                        db:"bug_fixes"`
	ScopeChangesJSON    string        `json:"-"                        db:"scope_changes"`
	DeviationsJSON      string        `json:"-"                        db:"deviations"`
	AlsoDidJSON         string        `json:"-"                        db:"also_did"`
	AnchorTaskID        string        `json:"-"                        db:"anchor_task_id"`
	AnchorTaskTitle     string        `json:"-"                        db:"anchor_task_title"`
	AnchorSetAt         *time.Time    `json:"-"                        db:"anchor_set_at"`
	AnchorSetBy         string        `json:"-"                        db:"anchor_set_by"`
	UpdatedAt           time.Time     `json:"updated_at"               db:"updated_at"`

	FilesTouched []string `json:"files_touched" db:"-"`
	BugFixes     []string `json:"bug_fixes"     db:"-"`
	ScopeChanges []string `json:"scope_changes" db:"-"`
	Deviations   []string `json:"deviations"    db:"-"`
	AlsoDid      []string `json:"also_did"      db:"-"`
	Anchor       *Anchor  `json:"anchor"        db:"-"`
}

// Anchor is the operator's declared "what should be worked on" task.
type Anchor struct {
	TaskID    string      `json:"task_id"`
	TaskTitle string      `json:"task_title"`
	SetAt     time.Time   `json:"set_at"`
	SetBy     AnchorSetBy `json:"set_by"`
}

// OnTrackResult is the answer to "is the session on-track".
type OnTrackResult struct {
	OnTrack bool    `json:"on_track"`
	Anchor  *Anchor `json:"anchor"`
	Current string  `json:"current"`
}
