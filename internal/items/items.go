// Package items implements the hierarchical task-item model: CRUD,
// hierarchy traversal, tagging, progress rollups, and TBC ("to be
// confirmed") gap detection.
package items

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/chkdhq/chkd/internal/chkderr"
	"github.com/chkdhq/chkd/internal/clock"
	"github.com/chkdhq/chkd/internal/store"
	"github.com/chkdhq/chkd/models"
)

var tagPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Store provides the item model's operations over a backing store.DB.
type Store struct {
	db    store.DB
	clock clock.Clock
}

// New returns an item Store backed by db, using clk for timestamps.
func New(db store.DB, clk clock.Clock) *Store {
	return &Store{db: db, clock: clk}
}

// CreateInput describes a new item. DisplayID, SectionNumber and SortOrder
// are computed by the caller (typically the engine, which owns hierarchy
// placement rules); this layer only enforces uniqueness.
type CreateInput struct {
	RepoID          int64
	DisplayID       string
	Title           string
	Description     string
	Story           string
	KeyRequirements []string
	FilesToChange   []string
	Testing         []string
	AreaCode        models.AreaCode
	SectionNumber   int
	WorkflowType    string
	ParentID        *int64
	SortOrder       int
	Priority        models.ItemPriority
}

// UpdateInput carries only the fields to change; nil means "leave as is".
type UpdateInput struct {
	Title           *string
	Description     *string
	Story           *string
	KeyRequirements *[]string
	FilesToChange   *[]string
	Testing         *[]string
	WorkflowType    *string
	SortOrder       *int
	Status          *models.ItemStatus
	Priority        *models.ItemPriority
}

func marshalList(vals []string) string {
	if vals == nil {
		vals = []string{}
	}
	b, _ := json.Marshal(vals)
	return string(b)
}

func unmarshalList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func hydrate(it *models.Item) {
	it.KeyRequirements = unmarshalList(it.KeyReqsJSON)
	it.FilesToChange = unmarshalList(it.FilesJSON)
	it.Testing = unmarshalList(it.TestingJSON)
}

// Create inserts a new item, rejecting a (repoId, displayId) clash with a
// chkderr.Conflict.
func (s *Store) Create(ctx context.Context, in CreateInput) (*models.Item, error) {
	if !in.AreaCode.Valid() {
		return nil, chkderr.New(chkderr.Validation, "items.Create", fmt.Errorf("invalid area code %q", in.AreaCode))
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, chkderr.New(chkderr.Validation, "items.Create", fmt.Errorf("invalid priority %q", priority))
	}

	var existing []models.Item
	err := s.db.Select(ctx, &existing,
		`SELECT id FROM items WHERE repo_id = ? AND display_id = ?`, in.RepoID, in.DisplayID)
	if err != nil {
		return nil, store.Classify("items.Create", err)
	}
	if len(existing) > 0 {
		return nil, chkderr.New(chkderr.Conflict, "items.Create",
			fmt.Errorf("item %s already exists in repo %d", in.DisplayID, in.RepoID))
	}

	now := s.clock.Now()
	it := models.Item{
		RepoID:         in.RepoID,
		DisplayID:      in.DisplayID,
		Title:          in.Title,
		Description:    in.Description,
		Story:          in.Story,
		KeyReqsJSON:    marshalList(in.KeyRequirements),
		FilesJSON:      marshalList(in.FilesToChange),
		TestingJSON:    marshalList(in.Testing),
		AreaCode:       in.AreaCode,
		SectionNumber:  in.SectionNumber,
		WorkflowType:   in.WorkflowType,
		ParentID:       in.ParentID,
		SortOrder:      in.SortOrder,
		Status:         models.ItemOpen,
		Priority:       priority,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	id, err := s.db.Insert(ctx, "items", &it)
	if err != nil {
		return nil, store.Classify("items.Create", err)
	}
	it.ID = id
	hydrate(&it)
	return &it, nil
}

// Get fetches one item by id.
func (s *Store) Get(ctx context.Context, id int64) (*models.Item, error) {
	var rows []models.Item
	if err := s.db.Select(ctx, &rows, `SELECT * FROM items WHERE id = ?`, id); err != nil {
		return nil, store.Classify("items.Get", err)
	}
	if len(rows) == 0 {
		return nil, chkderr.New(chkderr.NotFound, "items.Get", fmt.Errorf("item %d not found", id))
	}
	hydrate(&rows[0])
	return &rows[0], nil
}

// Update applies in to the item, refreshing updatedAt.
func (s *Store) Update(ctx context.Context, id int64, in UpdateInput) (*models.Item, error) {
	it, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		it.Title = *in.Title
	}
	if in.Description != nil {
		it.Description = *in.Description
	}
	if in.Story != nil {
		it.Story = *in.Story
	}
	if in.KeyRequirements != nil {
		it.KeyRequirements = *in.KeyRequirements
		it.KeyReqsJSON = marshalList(*in.KeyRequirements)
	}
	if in.FilesToChange != nil {
		it.FilesToChange = *in.FilesToChange
		it.FilesJSON = marshalList(*in.FilesToChange)
	}
	if in.Testing != nil {
		it.Testing = *in.Testing
		it.TestingJSON = marshalList(*in.Testing)
	}
	if in.WorkflowType != nil {
		it.WorkflowType = *in.WorkflowType
	}
	if in.SortOrder != nil {
		it.SortOrder = *in.SortOrder
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, chkderr.New(chkderr.Validation, "items.Update", fmt.Errorf("invalid status %q", *in.Status))
		}
		it.Status = *in.Status
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return nil, chkderr.New(chkderr.Validation, "items.Update", fmt.Errorf("invalid priority %q", *in.Priority))
		}
		it.Priority = *in.Priority
	}
	it.UpdatedAt = s.clock.Now()

	if err := s.db.Update(ctx, "items", it, "id = ?", id); err != nil {
		return nil, store.Classify("items.Update", err)
	}
	return it, nil
}

// Delete removes id and its transitive subtree in a single transaction,
// relaxing foreign keys so children can be removed regardless of
// declaration order, then restoring them.
func (s *Store) Delete(ctx context.Context, id int64) error {
	descendants, err := s.Descendants(ctx, id)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(descendants)+1)
	ids = append(ids, id)
	for _, d := range descendants {
		ids = append(ids, d.ID)
	}

	return s.db.WithTx(ctx, func(tx store.DB) error {
		if err := tx.Exec(ctx, `PRAGMA foreign_keys = OFF`); err != nil {
			return store.Classify("items.Delete", err)
		}
		for _, itemID := range ids {
			if err := tx.Exec(ctx, `DELETE FROM item_tags WHERE item_id = ?`, itemID); err != nil {
				return store.Classify("items.Delete", err)
			}
			if err := tx.Exec(ctx, `DELETE FROM item_durations WHERE item_id = ?`, itemID); err != nil {
				return store.Classify("items.Delete", err)
			}
			if err := tx.Exec(ctx, `DELETE FROM items WHERE id = ?`, itemID); err != nil {
				return store.Classify("items.Delete", err)
			}
		}
		return tx.Exec(ctx, `PRAGMA foreign_keys = ON`)
	})
}

const defaultOrder = " ORDER BY area_code, section_number, sort_order"

func (s *Store) query(ctx context.Context, where string, args ...interface{}) ([]models.Item, error) {
	var rows []models.Item
	q := "SELECT * FROM items WHERE " + where + defaultOrder
	if err := s.db.Select(ctx, &rows, q, args...); err != nil {
		return nil, store.Classify("items.query", err)
	}
	for i := range rows {
		hydrate(&rows[i])
	}
	return rows, nil
}

// ByRepo returns all items in repo, default-ordered.
func (s *Store) ByRepo(ctx context.Context, repoID int64) ([]models.Item, error) {
	return s.query(ctx, "repo_id = ?", repoID)
}

// ByArea returns items in repo within area, default-ordered.
func (s *Store) ByArea(ctx context.Context, repoID int64, area models.AreaCode) ([]models.Item, error) {
	return s.query(ctx, "repo_id = ? AND area_code = ?", repoID, area)
}

// ByParent returns the direct children of parentID, default-ordered.
func (s *Store) ByParent(ctx context.Context, parentID int64) ([]models.Item, error) {
	return s.query(ctx, "parent_id = ?", parentID)
}

// ByStatus returns items in repo with the given status, default-ordered.
func (s *Store) ByStatus(ctx context.Context, repoID int64, status models.ItemStatus) ([]models.Item, error) {
	return s.query(ctx, "repo_id = ? AND status = ?", repoID, status)
}

// TopLevel returns repo's root items (no parent), default-ordered.
func (s *Store) TopLevel(ctx context.Context, repoID int64) ([]models.Item, error) {
	return s.query(ctx, "repo_id = ? AND parent_id IS NULL", repoID)
}

// Children is an alias for ByParent, named to match the hierarchy API.
func (s *Store) Children(ctx context.Context, id int64) ([]models.Item, error) {
	return s.ByParent(ctx, id)
}

// Descendants returns the full subtree under id in depth-first order.
func (s *Store) Descendants(ctx context.Context, id int64) ([]models.Item, error) {
	var out []models.Item
	children, err := s.Children(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		out = append(out, c)
		sub, err := s.Descendants(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// Ancestors returns id's ancestor chain, root-last (immediate parent first,
// topmost root last).
func (s *Store) Ancestors(ctx context.Context, id int64) ([]models.Item, error) {
	var out []models.Item
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	for cur.ParentID != nil {
		parent, err := s.Get(ctx, *cur.ParentID)
		if err != nil {
			return nil, err
		}
		out = append(out, *parent)
		cur = parent
	}
	return out, nil
}

// GetByDisplayID returns the item at (repoID, displayID), or nil if none
// exists — used by the migrator to decide import vs update.
func (s *Store) GetByDisplayID(ctx context.Context, repoID int64, displayID string) (*models.Item, error) {
	var rows []models.Item
	err := s.db.Select(ctx, &rows, `SELECT * FROM items WHERE repo_id = ? AND display_id = ?`, repoID, displayID)
	if err != nil {
		return nil, store.Classify("items.GetByDisplayID", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	hydrate(&rows[0])
	return &rows[0], nil
}

// normalizeQuery strips everything but alphanumerics and upper-cases, used
// to match queries like "sd37" against a displayId "SD.37".
func normalizeQuery(q string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(q) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeDisplayID(id string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(id) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FindOne matches, in order: exact displayId (case-insensitive), normalized
// id, title substring, description substring. Returns at most one item.
func (s *Store) FindOne(ctx context.Context, repoID int64, query string) (*models.Item, error) {
	all, err := s.ByRepo(ctx, repoID)
	if err != nil {
		return nil, err
	}

	lowerQ := strings.ToLower(query)
	for _, it := range all {
		if strings.EqualFold(it.DisplayID, query) {
			item := it
			return &item, nil
		}
	}

	normQ := normalizeQuery(query)
	for _, it := range all {
		if normalizeDisplayID(it.DisplayID) == normQ {
			item := it
			return &item, nil
		}
	}

	for _, it := range all {
		if strings.Contains(strings.ToLower(it.Title), lowerQ) {
			item := it
			return &item, nil
		}
	}

	for _, it := range all {
		if strings.Contains(strings.ToLower(it.Description), lowerQ) {
			item := it
			return &item, nil
		}
	}

	return nil, chkderr.New(chkderr.NotFound, "items.FindOne", fmt.Errorf("no item matches %q", query))
}

// Search returns up to limit items in repo whose displayId/title/description
// contains query (case-insensitive), default-ordered.
func (s *Store) Search(ctx context.Context, repoID int64, query string, limit int) ([]models.Item, error) {
	like := "%" + strings.ToLower(query) + "%"
	rows, err := s.query(ctx,
		"repo_id = ? AND (LOWER(display_id) LIKE ? OR LOWER(title) LIKE ? OR LOWER(description) LIKE ?)",
		repoID, like, like, like)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// AddTag attaches tag to id, lowercasing and validating it first.
func (s *Store) AddTag(ctx context.Context, id int64, tag string) error {
	norm, err := normalizeTag(tag)
	if err != nil {
		return err
	}
	err = s.db.Exec(ctx, `INSERT OR IGNORE INTO item_tags (item_id, tag) VALUES (?, ?)`, id, norm)
	if err != nil {
		return store.Classify("items.AddTag", err)
	}
	return nil
}

// RemoveTag detaches tag from id.
func (s *Store) RemoveTag(ctx context.Context, id int64, tag string) error {
	norm, err := normalizeTag(tag)
	if err != nil {
		return err
	}
	if err := s.db.Exec(ctx, `DELETE FROM item_tags WHERE item_id = ? AND tag = ?`, id, norm); err != nil {
		return store.Classify("items.RemoveTag", err)
	}
	return nil
}

// SetTags replaces id's full tag set with tags.
func (s *Store) SetTags(ctx context.Context, id int64, tags []string) error {
	normed := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for _, t := range tags {
		norm, err := normalizeTag(t)
		if err != nil {
			return err
		}
		if !seen[norm] {
			seen[norm] = true
			normed = append(normed, norm)
		}
	}
	return s.db.WithTx(ctx, func(tx store.DB) error {
		if err := tx.Exec(ctx, `DELETE FROM item_tags WHERE item_id = ?`, id); err != nil {
			return store.Classify("items.SetTags", err)
		}
		for _, t := range normed {
			if err := tx.Exec(ctx, `INSERT INTO item_tags (item_id, tag) VALUES (?, ?)`, id, t); err != nil {
				return store.Classify("items.SetTags", err)
			}
		}
		return nil
	})
}

// ItemTags returns id's tags, sorted.
func (s *Store) ItemTags(ctx context.Context, id int64) ([]string, error) {
	var rows []models.ItemTag
	if err := s.db.Select(ctx, &rows, `SELECT * FROM item_tags WHERE item_id = ? ORDER BY tag`, id); err != nil {
		return nil, store.Classify("items.ItemTags", err)
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Tag
	}
	return out, nil
}

// ItemsByTag returns every item in repo carrying tag, default-ordered.
func (s *Store) ItemsByTag(ctx context.Context, repoID int64, tag string) ([]models.Item, error) {
	norm, err := normalizeTag(tag)
	if err != nil {
		return nil, err
	}
	var rows []models.Item
	q := `SELECT items.* FROM items
	      JOIN item_tags ON item_tags.item_id = items.id
	      WHERE items.repo_id = ? AND item_tags.tag = ?` + defaultOrder
	if err := s.db.Select(ctx, &rows, q, repoID, norm); err != nil {
		return nil, store.Classify("items.ItemsByTag", err)
	}
	for i := range rows {
		hydrate(&rows[i])
	}
	return rows, nil
}

func normalizeTag(tag string) (string, error) {
	norm := strings.ToLower(strings.TrimSpace(tag))
	if !tagPattern.MatchString(norm) {
		return "", chkderr.New(chkderr.Validation, "items.normalizeTag", fmt.Errorf("invalid tag %q", tag))
	}
	return norm, nil
}

// Progress summarizes completion over repo's items, ignoring skipped ones.
// If area is non-empty, only items in that area are counted.
func (s *Store) Progress(ctx context.Context, repoID int64, area models.AreaCode) (models.Progress, error) {
	var rows []models.Item
	var err error
	if area == "" {
		rows, err = s.ByRepo(ctx, repoID)
	} else {
		rows, err = s.ByArea(ctx, repoID, area)
	}
	if err != nil {
		return models.Progress{}, err
	}

	var total, done int
	for _, it := range rows {
		if it.Status == models.ItemSkipped {
			continue
		}
		total++
		if it.Status == models.ItemDone {
			done++
		}
	}
	pct := 0.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	return models.Progress{Total: total, Done: done, Percent: pct}, nil
}

// NextSectionNumber returns one past the highest sectionNumber among repo's
// top-level items in area.
func (s *Store) NextSectionNumber(ctx context.Context, repoID int64, area models.AreaCode) (int, error) {
	var rows []models.Item
	if err := s.db.Select(ctx, &rows,
		`SELECT * FROM items WHERE repo_id = ? AND area_code = ? AND parent_id IS NULL`, repoID, area); err != nil {
		return 0, store.Classify("items.NextSectionNumber", err)
	}
	max := 0
	for _, it := range rows {
		if it.SectionNumber > max {
			max = it.SectionNumber
		}
	}
	return max + 1, nil
}

// TBCCheck returns the names of fields on the item still "to be confirmed".
func (s *Store) TBCCheck(ctx context.Context, id int64) ([]string, error) {
	it, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return models.TBCCheck(*it), nil
}

// RecordDuration upserts the completion duration for id.
func (s *Store) RecordDuration(ctx context.Context, repoID, itemID int64, durationMs int64) error {
	d := models.ItemDuration{
		ItemID:      itemID,
		RepoID:      repoID,
		DurationMs:  durationMs,
		CompletedAt: s.clock.Now(),
	}
	if err := s.db.Upsert(ctx, "item_durations", &d, []string{"item_id"}); err != nil {
		return store.Classify("items.RecordDuration", err)
	}
	return nil
}
