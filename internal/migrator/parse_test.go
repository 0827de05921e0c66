package migrator

import (
	"strings"
	"testing"

	"github.com/chkdhq/chkd/models"
)

func TestParseChecklistNesting(t *testing.T) {
	src := `## SD - Site Design

- [x] [P1] **Feature A** #urgent #ui - top level desc
  - [ ] Sub one
    - [ ] Sub sub one
- [ ] **Feature B**

## IGNORED - not a recognized area

- [ ] should not appear
`
	top := parseChecklist(strings.NewReader(src))
	if len(top) != 2 {
		t.Fatalf("expected 2 top-level items, got %d", len(top))
	}

	a := top[0]
	if !a.done || a.priority != models.PriorityCritical || a.title != "Feature A" {
		t.Fatalf("unexpected item A: %+v", a)
	}
	if a.description != "top level desc" {
		t.Fatalf("unexpected description: %q", a.description)
	}
	if len(a.tags) != 2 || a.tags[0] != "urgent" || a.tags[1] != "ui" {
		t.Fatalf("unexpected tags: %v", a.tags)
	}
	if len(a.children) != 1 || a.children[0].title != "Sub one" {
		t.Fatalf("unexpected children: %+v", a.children)
	}
	if len(a.children[0].children) != 1 || a.children[0].children[0].title != "Sub sub one" {
		t.Fatalf("unexpected grandchildren: %+v", a.children[0].children)
	}

	b := top[1]
	if b.done || b.priority != models.PriorityMedium || b.title != "Feature B" {
		t.Fatalf("unexpected item B: %+v", b)
	}
}
