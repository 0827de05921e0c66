package models

import (
	"strings"
	"time"
)

// AreaCode groups items inside a repository.
type AreaCode string

const (
	AreaSD  AreaCode = "SD"
	AreaFE  AreaCode = "FE"
	AreaBE  AreaCode = "BE"
	AreaFUT AreaCode = "FUT"
)

// Valid reports whether a is one of the recognized area codes.
func (a AreaCode) Valid() bool {
	switch a {
	case AreaSD, AreaFE, AreaBE, AreaFUT:
		return true
	default:
		return false
	}
}

// ItemStatus is the lifecycle status of a spec item.
type ItemStatus string

const (
	ItemOpen       ItemStatus = "open"
	ItemInProgress ItemStatus = "in-progress"
	ItemDone       ItemStatus = "done"
	ItemSkipped    ItemStatus = "skipped"
	ItemBlocked    ItemStatus = "blocked"
)

// Valid reports whether s is a recognized item status.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemOpen, ItemInProgress, ItemDone, ItemSkipped, ItemBlocked:
		return true
	default:
		return false
	}
}

// ItemPriority is the canonical, internal priority of a spec item.
type ItemPriority string

const (
	PriorityCritical ItemPriority = "critical"
	PriorityHigh     ItemPriority = "high"
	PriorityMedium   ItemPriority = "medium"
	PriorityLow      ItemPriority = "low"
)

// Valid reports whether p is a recognized priority.
func (p ItemPriority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// LegacyPriority maps the legacy 1|2|3|nil numeric encoding to the
// canonical priority, per spec: 1→critical, 2→high, 3→medium, nil→medium.
func LegacyPriority(n *int) ItemPriority {
	if n == nil {
		return PriorityMedium
	}
	switch *n {
	case 1:
		return PriorityCritical
	case 2:
		return PriorityHigh
	case 3:
		return PriorityMedium
	default:
		return PriorityMedium
	}
}

// Item is a hierarchical task item.
type Item struct {
	ID             int64        `json:"id"              db:"id"`
	RepoID         int64        `json:"repo_id"         db:"repo_id"`
	DisplayID      string       `json:"display_id"      db:"display_id"`
	Title          string       `json:"title"           db:"title"`
	Description    string       `json:"description"     db:"description"`
	Story          string       `json:"story"           db:"story"`
	KeyReqsJSON    string       `json:"-"                db:"key_requirements"`
	FilesJSON      string       `json:"-"                db:"files_to_change"`
	TestingJSON    string       `json:"-"                db:"testing"`
	KeyRequirements []string    `json:"key_requirements" db:"-"`
	FilesToChange   []string    `json:"files_to_change"  db:"-"`
	Testing         []string    `json:"testing"          db:"-"`
	AreaCode       AreaCode     `json:"area_code"       db:"area_code"`
	SectionNumber  int          `json:"section_number"  db:"section_number"`
	WorkflowType   string       `json:"workflow_type"   db:"workflow_type"`
	ParentID       *int64       `json:"parent_id"       db:"parent_id"`
	SortOrder      int          `json:"sort_order"      db:"sort_order"`
	Status         ItemStatus   `json:"status"          db:"status"`
	Priority       ItemPriority `json:"priority"        db:"priority"`
	CreatedAt      time.Time    `json:"created_at"      db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"      db:"updated_at"`
}

// ItemTag is a single lowercase tag attached to an item.
type ItemTag struct {
	ItemID int64  `json:"item_id" db:"item_id"`
	Tag    string `json:"tag"     db:"tag"`
}

// ItemDuration records how long an item took to complete.
type ItemDuration struct {
	ItemID      int64     `json:"item_id"      db:"item_id"`
	RepoID      int64     `json:"repo_id"      db:"repo_id"`
	DurationMs  int64     `json:"duration_ms"  db:"duration_ms"`
	CompletedAt time.Time `json:"completed_at" db:"completed_at"`
}

// TBCFields lists the item fields checked for "to be confirmed" gaps.
var TBCFields = []string{"keyRequirements", "filesToChange", "testing"}

// IsTBCField reports whether values represents an unfilled TBC field: empty,
// or a single element equal to "TBC" (case-insensitive).
func IsTBCField(values []string) bool {
	if len(values) == 0 {
		return true
	}
	if len(values) == 1 && strings.EqualFold(strings.TrimSpace(values[0]), "TBC") {
		return true
	}
	return false
}

// TBCCheck returns the names of fields on it that are still "to be
// confirmed" — empty or a lone "TBC" placeholder.
func TBCCheck(it Item) []string {
	var missing []string
	if IsTBCField(it.KeyRequirements) {
		missing = append(missing, "keyRequirements")
	}
	if IsTBCField(it.FilesToChange) {
		missing = append(missing, "filesToChange")
	}
	if IsTBCField(it.Testing) {
		missing = append(missing, "testing")
	}
	return missing
}

// Progress summarizes completion over a set of items, ignoring skipped ones.
type Progress struct {
	Total   int     `json:"total"`
	Done    int     `json:"done"`
	Percent float64 `json:"percent"`
}
