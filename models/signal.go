package models

import "time"

// SignalType classifies a manager→operator advisory message.
type SignalType string

const (
	SignalDecision SignalType = "decision"
	SignalHelp     SignalType = "help"
	SignalWarning  SignalType = "warning"
	SignalInfo     SignalType = "info"
)

// Valid reports whether t is a recognized signal type.
func (t SignalType) Valid() bool {
	switch t {
	case SignalDecision, SignalHelp, SignalWarning, SignalInfo:
		return true
	default:
		return false
	}
}

// Signal is an advisory message from the engine to the operator, optionally
// requiring a chosen action.
type Signal struct {
	ID              string     `json:"id"               db:"id"`
	RepoID          int64      `json:"repo_id"          db:"repo_id"`
	WorkerID        string     `json:"worker_id"        db:"worker_id"`
	Type            SignalType `json:"type"             db:"type"`
	Message         string     `json:"message"          db:"message"`
	DetailsJSON     string     `json:"-"                 db:"details"`
	Details         map[string]any `json:"details"       db:"-"`
	ActionRequired  bool       `json:"action_required"  db:"action_required"`
	ActionOptionsJSON string   `json:"-"                 db:"action_options"`
	ActionOptions   []string   `json:"action_options"    db:"-"`
	Dismissed       bool       `json:"dismissed"        db:"dismissed"`
	CreatedAt       time.Time  `json:"created_at"       db:"created_at"`
	DismissedAt     *time.Time `json:"dismissed_at"     db:"dismissed_at"`
}
