package migrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chkdhq/chkd/internal/items"
	"github.com/chkdhq/chkd/models"
)

// Result is the one-shot import's summary, per spec §4.8.
type Result struct {
	ItemsImported int      `json:"items_imported"`
	ItemsUpdated  int      `json:"items_updated"`
	ItemsSkipped  int      `json:"items_skipped"`
	Errors        []string `json:"errors"`
}

// Migrator imports a legacy markdown checklist into the item model.
type Migrator struct {
	items    *items.Store
	specFile string
}

// New returns a Migrator that reads specFile (relative to a repository's
// root, e.g. "docs/chkd-spec.md") and writes items via the given Store.
func New(it *items.Store, specFile string) *Migrator {
	return &Migrator{items: it, specFile: specFile}
}

// Import reads <repoPath>/<specFile> and imports it into repoID, idempotently:
// re-running against an unchanged file imports and updates nothing.
func (m *Migrator) Import(ctx context.Context, repoID int64, repoPath string) (*Result, error) {
	top, err := m.parse(repoPath)
	if err != nil {
		return nil, err
	}
	result := &Result{}
	areaCounters := map[models.AreaCode]int{}

	for _, it := range top {
		areaCounters[it.area]++
		displayID := fmt.Sprintf("%s.%d", it.area, areaCounters[it.area])
		m.importNode(ctx, repoID, nil, it.area, areaCounters[it.area], 0, displayID, it, result)
	}
	return result, nil
}

// Preview parses <repoPath>/<specFile> against repoID's existing items and
// reports what a real Import would do, without writing anything: every node
// not yet present (by the same positional displayId assignment Import uses)
// counts as "imported", a present node whose checkbox state differs counts
// as "updated", and an unchanged node counts as "skipped".
func (m *Migrator) Preview(ctx context.Context, repoID int64, repoPath string) (*Result, error) {
	top, err := m.parse(repoPath)
	if err != nil {
		return nil, err
	}
	result := &Result{}
	areaCounters := map[models.AreaCode]int{}

	for _, it := range top {
		areaCounters[it.area]++
		displayID := fmt.Sprintf("%s.%d", it.area, areaCounters[it.area])
		m.previewNode(ctx, repoID, displayID, it, result)
	}
	return result, nil
}

// previewNode mirrors importNode's create-vs-update-vs-skip classification
// but never writes: it only inspects existing state and recurses under the
// same done-gating rule.
func (m *Migrator) previewNode(ctx context.Context, repoID int64, displayID string, node *parsedItem, result *Result) {
	status := models.ItemOpen
	if node.done {
		status = models.ItemDone
	}

	existing, err := m.items.GetByDisplayID(ctx, repoID, displayID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", displayID, err))
		return
	}

	switch {
	case existing == nil:
		result.ItemsImported++
	case existing.Status != status:
		result.ItemsUpdated++
	default:
		result.ItemsSkipped++
	}

	if status == models.ItemDone {
		return
	}
	for i, child := range node.children {
		childDisplayID := fmt.Sprintf("%s.%d", displayID, i+1)
		m.previewNode(ctx, repoID, childDisplayID, child, result)
	}
}

func (m *Migrator) parse(repoPath string) ([]*parsedItem, error) {
	path := filepath.Join(repoPath, m.specFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("migrator: open %s: %w", path, err)
	}
	defer f.Close()
	return parseChecklist(f), nil
}

// importNode imports or updates one checklist node at displayID, then
// recurses into its children (gated on the resulting status not being
// "done"), returning nothing — outcomes accumulate into result.
func (m *Migrator) importNode(ctx context.Context, repoID int64, parentID *int64, area models.AreaCode, sectionNumber, sortOrder int, displayID string, node *parsedItem, result *Result) {
	status := models.ItemOpen
	if node.done {
		status = models.ItemDone
	}

	existing, err := m.items.GetByDisplayID(ctx, repoID, displayID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", displayID, err))
		return
	}

	var finalStatus models.ItemStatus
	if existing == nil {
		created, err := m.items.Create(ctx, items.CreateInput{
			RepoID:        repoID,
			DisplayID:     displayID,
			Title:         node.title,
			Description:   node.description,
			AreaCode:      area,
			SectionNumber: sectionNumber,
			ParentID:      parentID,
			SortOrder:     sortOrder,
			Priority:      node.priority,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", displayID, err))
			return
		}
		for _, tag := range node.tags {
			_ = m.items.AddTag(ctx, created.ID, tag)
		}
		if status != models.ItemOpen {
			if _, err := m.items.Update(ctx, created.ID, items.UpdateInput{Status: &status}); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", displayID, err))
			}
		}
		result.ItemsImported++
		finalStatus = status
		parentID = &created.ID
	} else {
		if existing.Status != status {
			if _, err := m.items.Update(ctx, existing.ID, items.UpdateInput{Status: &status}); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", displayID, err))
				return
			}
			result.ItemsUpdated++
		} else {
			result.ItemsSkipped++
		}
		finalStatus = status
		parentID = &existing.ID
	}

	if finalStatus == models.ItemDone {
		return
	}
	for i, child := range node.children {
		childDisplayID := fmt.Sprintf("%s.%d", displayID, i+1)
		m.importNode(ctx, repoID, parentID, area, sectionNumber, i, childDisplayID, child, result)
	}
}
