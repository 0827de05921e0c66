// Package session implements the per-repository operator session: current
// task/item tracking, mode, anchor, ad-hoc logs, and on-track evaluation.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chkdhq/chkd/internal/chkderr"
	"github.com/chkdhq/chkd/internal/clock"
	"github.com/chkdhq/chkd/internal/store"
	"github.com/chkdhq/chkd/models"
)

// Store provides session operations over a backing store.DB.
type Store struct {
	db    store.DB
	clock clock.Clock
}

// New returns a session Store backed by db, using clk for timestamps.
func New(db store.DB, clk clock.Clock) *Store {
	return &Store{db: db, clock: clk}
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
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

func hydrate(s *models.Session) {
	s.FilesTouched = unmarshalList(s.FilesTouchedJSON)
	s.BugFixes = unmarshalList(s.BugFixesJSON)
	s.ScopeChanges = unmarshalList(s.ScopeChangesJSON)
	s.Deviations = unmarshalList(s.DeviationsJSON)
	s.AlsoDid = unmarshalList(s.AlsoDidJSON)
	if s.AnchorTaskID != "" {
		s.Anchor = &models.Anchor{
			TaskID:    s.AnchorTaskID,
			TaskTitle: s.AnchorTaskTitle,
			SetBy:     models.AnchorSetBy(s.AnchorSetBy),
		}
		if s.AnchorSetAt != nil {
			s.Anchor.SetAt = *s.AnchorSetAt
		}
	}
}

// Get fetches repo's session, creating an idle one on first access.
func (s *Store) Get(ctx context.Context, repoID int64) (*models.Session, error) {
	var rows []models.Session
	if err := s.db.Select(ctx, &rows, `SELECT * FROM sessions WHERE repo_id = ?`, repoID); err != nil {
		return nil, store.Classify("session.Get", err)
	}
	if len(rows) == 0 {
		return s.createIdle(ctx, repoID)
	}
	hydrate(&rows[0])
	return &rows[0], nil
}

func (s *Store) createIdle(ctx context.Context, repoID int64) (*models.Session, error) {
	now := s.clock.Now()
	sess := models.Session{
		RepoID:           repoID,
		Status:           models.SessionIdle,
		Mode:             models.ModeNone,
		Iteration:        0,
		LastActivity:     now,
		FilesTouchedJSON: "[]",
		BugFixesJSON:     "[]",
		ScopeChangesJSON: "[]",
		DeviationsJSON:   "[]",
		AlsoDidJSON:      "[]",
		UpdatedAt:        now,
	}
	if _, err := s.db.Insert(ctx, "sessions", &sess); err != nil {
		return nil, store.Classify("session.createIdle", err)
	}
	hydrate(&sess)
	return &sess, nil
}

// Start upserts repo's session into an active building state: status and
// mode become "building", startTime resets to now, iteration resets to 1,
// and ad-hoc arrays are cleared.
func (s *Store) Start(ctx context.Context, repoID int64, taskID, taskTitle string) (*models.Session, error) {
	existing, err := s.Get(ctx, repoID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	sess := models.Session{
		RepoID:             repoID,
		CurrentTask:        taskID,
		CurrentItem:        taskID,
		CurrentItemStartAt: &now,
		Status:             models.SessionBuilding,
		Mode:               models.ModeBuilding,
		StartTime:          &now,
		Iteration:          1,
		LastActivity:       now,
		FilesTouchedJSON:   "[]",
		BugFixesJSON:       "[]",
		ScopeChangesJSON:   "[]",
		DeviationsJSON:     "[]",
		AlsoDidJSON:        "[]",
		AnchorTaskID:       existing.AnchorTaskID,
		AnchorTaskTitle:    existing.AnchorTaskTitle,
		AnchorSetAt:        existing.AnchorSetAt,
		AnchorSetBy:        existing.AnchorSetBy,
		UpdatedAt:          now,
	}
	_ = taskTitle // taskTitle is not persisted on Session; only anchors carry a title.
	if err := s.db.Update(ctx, "sessions", &sess, "repo_id = ?", repoID); err != nil {
		return nil, store.Classify("session.Start", err)
	}
	hydrate(&sess)
	return &sess, nil
}

func (s *Store) rawGet(ctx context.Context, repoID int64) (*models.Session, error) {
	var rows []models.Session
	if err := s.db.Select(ctx, &rows, `SELECT * FROM sessions WHERE repo_id = ?`, repoID); err != nil {
		return nil, store.Classify("session.rawGet", err)
	}
	if len(rows) == 0 {
		return nil, chkderr.New(chkderr.NotFound, "session.rawGet", fmt.Errorf("no session for repo %d", repoID))
	}
	return &rows[0], nil
}

// Clear resets repo's session to idle and clears the anchor.
func (s *Store) Clear(ctx context.Context, repoID int64) (*models.Session, error) {
	if _, err := s.Get(ctx, repoID); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	sess := models.Session{
		RepoID:           repoID,
		Status:           models.SessionIdle,
		Mode:             models.ModeNone,
		Iteration:        0,
		LastActivity:     now,
		FilesTouchedJSON: "[]",
		BugFixesJSON:     "[]",
		ScopeChangesJSON: "[]",
		DeviationsJSON:   "[]",
		AlsoDidJSON:      "[]",
		UpdatedAt:        now,
	}
	if err := s.db.Update(ctx, "sessions", &sess, "repo_id = ?", repoID); err != nil {
		return nil, store.Classify("session.Clear", err)
	}
	hydrate(&sess)
	return &sess, nil
}

// UpdateInput carries only the fields to change.
type UpdateInput struct {
	CurrentTask *string
	CurrentItem *string
	Status      *models.SessionStatus
	Mode        *models.SessionMode
	Iteration   *int
	StartTime   *bool // true: set to now; false/nil: leave as is
}

// Update applies in to repo's session. Setting CurrentItem also records
// currentItemStartTime=now. Any mutation refreshes updatedAt/lastActivity.
func (s *Store) Update(ctx context.Context, repoID int64, in UpdateInput) (*models.Session, error) {
	sess, err := s.rawGet(ctx, repoID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if in.CurrentTask != nil {
		sess.CurrentTask = *in.CurrentTask
	}
	if in.CurrentItem != nil {
		sess.CurrentItem = *in.CurrentItem
		sess.CurrentItemStartAt = &now
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, chkderr.New(chkderr.Validation, "session.Update", fmt.Errorf("invalid status %q", *in.Status))
		}
		sess.Status = *in.Status
	}
	if in.Mode != nil {
		if !in.Mode.Valid() {
			return nil, chkderr.New(chkderr.Validation, "session.Update", fmt.Errorf("invalid mode %q", *in.Mode))
		}
		sess.Mode = *in.Mode
	}
	if in.Iteration != nil {
		sess.Iteration = *in.Iteration
	}
	if in.StartTime != nil && *in.StartTime {
		sess.StartTime = &now
	}
	sess.LastActivity = now
	sess.UpdatedAt = now

	if err := s.db.Update(ctx, "sessions", sess, "repo_id = ?", repoID); err != nil {
		return nil, store.Classify("session.Update", err)
	}
	hydrate(sess)
	return sess, nil
}

// AddAlsoDid appends text to repo's ad-hoc "also did" log.
func (s *Store) AddAlsoDid(ctx context.Context, repoID int64, text string) error {
	sess, err := s.rawGet(ctx, repoID)
	if err != nil {
		return err
	}
	list := unmarshalList(sess.AlsoDidJSON)
	list = append(list, text)
	sess.AlsoDidJSON = marshalList(list)
	sess.LastActivity = s.clock.Now()
	sess.UpdatedAt = sess.LastActivity
	if err := s.db.Update(ctx, "sessions", sess, "repo_id = ?", repoID); err != nil {
		return store.Classify("session.AddAlsoDid", err)
	}
	return nil
}

// SetAnchor declares the operator's anchor task.
func (s *Store) SetAnchor(ctx context.Context, repoID int64, taskID, taskTitle string, setBy models.AnchorSetBy) (*models.Session, error) {
	sess, err := s.rawGet(ctx, repoID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	sess.AnchorTaskID = taskID
	sess.AnchorTaskTitle = taskTitle
	sess.AnchorSetAt = &now
	sess.AnchorSetBy = string(setBy)
	sess.UpdatedAt = now
	if err := s.db.Update(ctx, "sessions", sess, "repo_id = ?", repoID); err != nil {
		return nil, store.Classify("session.SetAnchor", err)
	}
	hydrate(sess)
	return sess, nil
}

// ClearAnchor removes repo's anchor declaration.
func (s *Store) ClearAnchor(ctx context.Context, repoID int64) (*models.Session, error) {
	sess, err := s.rawGet(ctx, repoID)
	if err != nil {
		return nil, err
	}
	sess.AnchorTaskID = ""
	sess.AnchorTaskTitle = ""
	sess.AnchorSetAt = nil
	sess.AnchorSetBy = ""
	sess.UpdatedAt = s.clock.Now()
	if err := s.db.Update(ctx, "sessions", sess, "repo_id = ?", repoID); err != nil {
		return nil, store.Classify("session.ClearAnchor", err)
	}
	hydrate(sess)
	return sess, nil
}

// OnTrack evaluates whether repo's current task is on-track relative to its
// anchor: no anchor, exact id match, or the current task is a descendant by
// display id ("<anchorId>.*").
func (s *Store) OnTrack(ctx context.Context, repoID int64) (*models.OnTrackResult, error) {
	sess, err := s.Get(ctx, repoID)
	if err != nil {
		return nil, err
	}
	if sess.Anchor == nil {
		return &models.OnTrackResult{OnTrack: true, Anchor: nil, Current: sess.CurrentTask}, nil
	}
	if sess.Status == models.SessionIdle {
		return &models.OnTrackResult{OnTrack: false, Anchor: sess.Anchor, Current: sess.CurrentTask}, nil
	}
	onTrack := sess.CurrentTask == sess.Anchor.TaskID ||
		strings.HasPrefix(sess.CurrentTask, sess.Anchor.TaskID+".")
	return &models.OnTrackResult{OnTrack: onTrack, Anchor: sess.Anchor, Current: sess.CurrentTask}, nil
}

// ElapsedMs returns the milliseconds since the session's startTime, or 0 if
// unset.
func ElapsedMs(sess *models.Session, now time.Time) int64 {
	if sess.StartTime == nil {
		return 0
	}
	elapsed := now.Sub(*sess.StartTime).Milliseconds()
	if elapsed < 0 {
		return 0
	}
	return elapsed
}
