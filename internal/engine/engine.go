// Package engine implements the coordination engine's composed use-case
// layer: the single value that owns every component (store, item model,
// session, worker registry, worktree driver, merge arbiter, signal bus,
// migrator) and exposes the operations the transport calls. No package-level
// globals — everything a caller needs hangs off one *Engine.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chkdhq/chkd/internal/chkderr"
	"github.com/chkdhq/chkd/internal/clock"
	"github.com/chkdhq/chkd/internal/config"
	"github.com/chkdhq/chkd/internal/items"
	"github.com/chkdhq/chkd/internal/mergearbiter"
	"github.com/chkdhq/chkd/internal/migrator"
	"github.com/chkdhq/chkd/internal/session"
	"github.com/chkdhq/chkd/internal/settings"
	"github.com/chkdhq/chkd/internal/signals"
	"github.com/chkdhq/chkd/internal/store"
	"github.com/chkdhq/chkd/internal/worktree"
	"github.com/chkdhq/chkd/internal/workers"
	"github.com/chkdhq/chkd/models"
)

// Engine is the coordination engine: a single composed value holding every
// component, constructed once at startup and shared by every transport
// (HTTP gateway, CLI, TUI).
type Engine struct {
	cfg     *config.Config
	db      store.DB
	clock   clock.Clock
	Items    *items.Store
	Session  *session.Store
	Workers  *workers.Store
	Signals  *signals.Store
	Settings *settings.Store
	Arbiter  *mergearbiter.Arbiter
	Driver   *worktree.Driver
	Migrate  *migrator.Migrator
	sweeper  *workers.Sweeper
}

// New wires every component together from cfg and db. Call Start to begin
// the background heartbeat sweeper.
func New(cfg *config.Config, db store.DB, clk clock.Clock) *Engine {
	it := items.New(db, clk)
	sess := session.New(db, clk)
	w := workers.New(db, clk)
	sig := signals.New(db, clk)
	set := settings.New(db)

	gitConcurrency := cfg.Engine.GitConcurrency
	if gitConcurrency <= 0 {
		gitConcurrency = 4
	}
	driver := worktree.New(gitConcurrency)

	lockTimeout := time.Duration(cfg.Engine.MergeLockTimeoutMs) * time.Millisecond
	if lockTimeout <= 0 {
		lockTimeout = 30 * time.Second
	}
	arbiter := mergearbiter.New(db, w, driver, sig, clk, lockTimeout)

	specFile := cfg.Migrate.SpecFile
	if specFile == "" {
		specFile = "docs/chkd-spec.md"
	}
	mig := migrator.New(it, specFile)

	threshold := time.Duration(cfg.Engine.HeartbeatThresholdMs) * time.Millisecond
	if threshold <= 0 {
		threshold = 120 * time.Second
	}
	interval := time.Duration(cfg.Engine.HeartbeatSweepMs) * time.Millisecond
	if interval <= 0 {
		interval = 15 * time.Second
	}
	sweeper := workers.NewSweeper(w, sig, interval, threshold, clk.Now)

	return &Engine{
		cfg:      cfg,
		db:       db,
		clock:    clk,
		Items:    it,
		Session:  sess,
		Workers:  w,
		Signals:  sig,
		Settings: set,
		Arbiter:  arbiter,
		Driver:   driver,
		Migrate:  mig,
		sweeper:  sweeper,
	}
}

// Start runs the heartbeat sweeper until ctx is cancelled. It returns
// immediately; the sweeper runs in its own goroutine.
func (e *Engine) Start(ctx context.Context) {
	go e.sweeper.Run(ctx)
	slog.Info("engine: started", "heartbeatSweepMs", e.cfg.Engine.HeartbeatSweepMs)
}

// DB exposes the backing store to callers outside the engine.
func (e *Engine) DB() store.DB { return e.db }

// --- Repositories ---------------------------------------------------------

// AddRepository registers a new tracked checkout. absolutePath must be
// unique; a duplicate is a chkderr.Conflict. fetchSchedule is an optional
// cron expression for periodic `git fetch`; empty falls back to the
// config's global Git.FetchSchedule.
func (e *Engine) AddRepository(ctx context.Context, absolutePath, displayName, defaultBranch, fetchSchedule string) (*models.Repository, error) {
	if absolutePath == "" {
		return nil, chkderr.New(chkderr.Validation, "engine.AddRepository", fmt.Errorf("absolutePath is required"))
	}
	if defaultBranch == "" {
		defaultBranch = e.cfg.Engine.DefaultBranch
	}
	if defaultBranch == "" {
		defaultBranch = "main"
	}
	if displayName == "" {
		displayName = absolutePath
	}
	if fetchSchedule == "" {
		fetchSchedule = e.cfg.Git.FetchSchedule
	}

	existing, err := e.repoByPath(ctx, absolutePath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, chkderr.New(chkderr.Conflict, "engine.AddRepository",
			fmt.Errorf("repository %s already tracked", absolutePath))
	}

	now := e.clock.Now()
	repo := models.Repository{
		AbsolutePath:  absolutePath,
		DisplayName:   displayName,
		DefaultBranch: defaultBranch,
		FetchSchedule: fetchSchedule,
		Enabled:       true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	id, err := e.db.Insert(ctx, "repositories", &repo)
	if err != nil {
		return nil, store.Classify("engine.AddRepository", err)
	}
	repo.ID = id
	return &repo, nil
}

// ListRepositories returns every tracked repository.
func (e *Engine) ListRepositories(ctx context.Context) ([]models.Repository, error) {
	var rows []models.Repository
	if err := e.db.Select(ctx, &rows, `SELECT * FROM repositories ORDER BY display_name`); err != nil {
		return nil, store.Classify("engine.ListRepositories", err)
	}
	return rows, nil
}

// GetRepository fetches one repository by id.
func (e *Engine) GetRepository(ctx context.Context, id int64) (*models.Repository, error) {
	var rows []models.Repository
	if err := e.db.Select(ctx, &rows, `SELECT * FROM repositories WHERE id = ?`, id); err != nil {
		return nil, store.Classify("engine.GetRepository", err)
	}
	if len(rows) == 0 {
		return nil, chkderr.New(chkderr.NotFound, "engine.GetRepository", fmt.Errorf("repository %d not found", id))
	}
	return &rows[0], nil
}

// UpdateRepositoryInput carries only the fields to change.
type UpdateRepositoryInput struct {
	DisplayName   *string
	DefaultBranch *string
	FetchSchedule *string
	Enabled       *bool
}

// UpdateRepository applies in to the repository, refreshing updatedAt.
func (e *Engine) UpdateRepository(ctx context.Context, id int64, in UpdateRepositoryInput) (*models.Repository, error) {
	repo, err := e.GetRepository(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.DisplayName != nil {
		repo.DisplayName = *in.DisplayName
	}
	if in.DefaultBranch != nil {
		repo.DefaultBranch = *in.DefaultBranch
	}
	if in.FetchSchedule != nil {
		repo.FetchSchedule = *in.FetchSchedule
	}
	if in.Enabled != nil {
		repo.Enabled = *in.Enabled
	}
	repo.UpdatedAt = e.clock.Now()
	if err := e.db.Update(ctx, "repositories", repo, "id = ?", id); err != nil {
		return nil, store.Classify("engine.UpdateRepository", err)
	}
	return repo, nil
}

// DeleteRepository removes a tracked repository, refusing while any
// non-terminal worker still exists for it.
func (e *Engine) DeleteRepository(ctx context.Context, id int64) error {
	if _, err := e.GetRepository(ctx, id); err != nil {
		return err
	}
	active, err := e.Workers.CountActive(ctx, id)
	if err != nil {
		return err
	}
	if active > 0 {
		return chkderr.New(chkderr.Conflict, "engine.DeleteRepository",
			fmt.Errorf("repository %d has %d non-terminal worker(s)", id, active))
	}
	if err := e.db.Exec(ctx, `DELETE FROM repositories WHERE id = ?`, id); err != nil {
		return store.Classify("engine.DeleteRepository", err)
	}
	return nil
}

// RepositoryByPath looks up a tracked repository by its absolute path,
// returning a notFound error if it isn't tracked. Transport endpoints that
// accept a repoPath query parameter (rather than a numeric id) resolve
// through this.
func (e *Engine) RepositoryByPath(ctx context.Context, absolutePath string) (*models.Repository, error) {
	repo, err := e.repoByPath(ctx, absolutePath)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, chkderr.New(chkderr.NotFound, "engine.RepositoryByPath", fmt.Errorf("repository %s not tracked", absolutePath))
	}
	return repo, nil
}

func (e *Engine) repoByPath(ctx context.Context, absolutePath string) (*models.Repository, error) {
	var rows []models.Repository
	if err := e.db.Select(ctx, &rows, `SELECT * FROM repositories WHERE absolute_path = ?`, absolutePath); err != nil {
		return nil, store.Classify("engine.repoByPath", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// --- Items -----------------------------------------------------------------

// CreateTopLevelItem creates a new top-level item, computing its section
// number and displayId from the repo's existing items in area.
func (e *Engine) CreateTopLevelItem(ctx context.Context, in items.CreateInput) (*models.Item, error) {
	section, err := e.Items.NextSectionNumber(ctx, in.RepoID, in.AreaCode)
	if err != nil {
		return nil, err
	}
	in.SectionNumber = section
	in.ParentID = nil
	in.DisplayID = fmt.Sprintf("%s.%d", in.AreaCode, section)
	return e.Items.Create(ctx, in)
}

// AddChild creates a new item as a child of parentID, computing its
// displayId as "<parent.displayId>.<childIndex+1>".
func (e *Engine) AddChild(ctx context.Context, parentID int64, title, description string, priority models.ItemPriority) (*models.Item, error) {
	parent, err := e.Items.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}
	siblings, err := e.Items.Children(ctx, parentID)
	if err != nil {
		return nil, err
	}
	childIndex := len(siblings)
	return e.Items.Create(ctx, items.CreateInput{
		RepoID:        parent.RepoID,
		DisplayID:     fmt.Sprintf("%s.%d", parent.DisplayID, childIndex+1),
		Title:         title,
		Description:   description,
		AreaCode:      parent.AreaCode,
		SectionNumber: parent.SectionNumber,
		ParentID:      &parentID,
		SortOrder:     childIndex,
		Priority:      priority,
	})
}

// MoveItem reassigns a top-level item to a different area, re-numbering its
// displayId (and, transitively, every descendant's displayId) to match.
// Only top-level items may move areas; a nested item's area follows its
// parent.
func (e *Engine) MoveItem(ctx context.Context, id int64, newArea models.AreaCode) (*models.Item, error) {
	it, err := e.Items.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.ParentID != nil {
		return nil, chkderr.New(chkderr.Validation, "engine.MoveItem",
			fmt.Errorf("item %s is not top-level; move its top-level ancestor instead", it.DisplayID))
	}
	if !newArea.Valid() {
		return nil, chkderr.New(chkderr.Validation, "engine.MoveItem", fmt.Errorf("invalid area code %q", newArea))
	}

	section, err := e.Items.NextSectionNumber(ctx, it.RepoID, newArea)
	if err != nil {
		return nil, err
	}
	oldDisplayID := it.DisplayID
	newDisplayID := fmt.Sprintf("%s.%d", newArea, section)

	descendants, err := e.Items.Descendants(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.renumberSubtree(ctx, id, oldDisplayID, newDisplayID, newArea, it.SectionNumber, section, descendants); err != nil {
		return nil, err
	}
	return e.Items.Get(ctx, id)
}

func (e *Engine) renumberSubtree(ctx context.Context, rootID int64, oldPrefix, newPrefix string, newArea models.AreaCode, oldSection, newSection int, descendants []models.Item) error {
	return e.db.WithTx(ctx, func(tx store.DB) error {
		if err := tx.Exec(ctx,
			`UPDATE items SET display_id = ?, area_code = ?, section_number = ? WHERE id = ?`,
			newPrefix, newArea, newSection, rootID); err != nil {
			return store.Classify("engine.renumberSubtree", err)
		}
		for _, d := range descendants {
			suffix := d.DisplayID[len(oldPrefix):]
			if err := tx.Exec(ctx,
				`UPDATE items SET display_id = ?, area_code = ?, section_number = ? WHERE id = ?`,
				newPrefix+suffix, newArea, newSection, d.ID); err != nil {
				return store.Classify("engine.renumberSubtree", err)
			}
		}
		return nil
	})
}

// --- Session -----------------------------------------------------------------

// WorkingOn marks currentTask/currentItem on repo's session without
// transitioning status, used for lightweight "I'm now looking at X" pings
// that don't constitute a full Start.
func (e *Engine) WorkingOn(ctx context.Context, repoID int64, taskID string) (*models.Session, error) {
	return e.Session.Update(ctx, repoID, session.UpdateInput{CurrentTask: &taskID, CurrentItem: &taskID})
}

// queuePrefix flags an alsoDid entry as belonging to the ephemeral session
// queue rather than an actual "also did" log line; the queue is not a
// persisted entity of its own, it rides on the same array.
const queuePrefix = "queue:"

// QueueAdd appends title to repo's session queue.
func (e *Engine) QueueAdd(ctx context.Context, repoID int64, title string) error {
	return e.Session.AddAlsoDid(ctx, repoID, queuePrefix+title)
}

// QueueGet returns the titles currently queued for repo's session.
func (e *Engine) QueueGet(ctx context.Context, repoID int64) ([]string, error) {
	sess, err := e.Session.Get(ctx, repoID)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, entry := range sess.AlsoDid {
		if title, ok := trimQueuePrefix(entry); ok {
			out = append(out, title)
		}
	}
	return out, nil
}

// QueueRemove removes one title from repo's session queue.
func (e *Engine) QueueRemove(ctx context.Context, repoID int64, title string) error {
	sess, err := e.Session.Get(ctx, repoID)
	if err != nil {
		return err
	}
	kept := sess.AlsoDid[:0]
	for _, entry := range sess.AlsoDid {
		if t, ok := trimQueuePrefix(entry); ok && t == title {
			continue
		}
		kept = append(kept, entry)
	}
	return e.db.Exec(ctx, `UPDATE sessions SET also_did = ? WHERE repo_id = ?`, marshalAlsoDid(kept), repoID)
}

func trimQueuePrefix(entry string) (string, bool) {
	if len(entry) > len(queuePrefix) && entry[:len(queuePrefix)] == queuePrefix {
		return entry[len(queuePrefix):], true
	}
	return "", false
}

// --- Workers / Merge -------------------------------------------------------

// SpawnWorker composes the worker registry and worktree driver: it creates
// the worker record in "pending", provisions a worktree+branch, then
// transitions the record to "waiting" with the provisioned paths, emitting
// an info signal on success.
func (e *Engine) SpawnWorker(ctx context.Context, repo models.Repository, in workers.CreateInput) (*models.Worker, error) {
	w, err := e.Workers.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	worktreePath, branch, err := e.Driver.CreateWorktree(ctx, repo, in.Username, in.TaskID, in.TaskTitle)
	if err != nil {
		status := models.WorkerError
		msg := err.Error()
		_, _ = e.Workers.Update(ctx, w.ID, workers.UpdateInput{Status: &status, Message: &msg})
		return nil, chkderr.New(chkderr.Git, "engine.SpawnWorker", err)
	}

	waiting := models.WorkerWaiting
	if err := e.db.Exec(ctx,
		`UPDATE workers SET status = ?, worktree_path = ?, branch_name = ? WHERE id = ?`,
		waiting, worktreePath, branch, w.ID); err != nil {
		return nil, store.Classify("engine.SpawnWorker", err)
	}
	w, err = e.Workers.Get(ctx, w.ID)
	if err != nil {
		return nil, err
	}

	_, _ = e.Signals.Emit(ctx, signals.EmitInput{
		RepoID:   repo.ID,
		WorkerID: w.ID,
		Type:     models.SignalInfo,
		Message:  fmt.Sprintf("Worker spawned for %s", in.TaskID),
	})
	return w, nil
}

// CompleteWorker delegates to the merge arbiter's dry-run/auto-merge
// protocol.
func (e *Engine) CompleteWorker(ctx context.Context, workerID string, autoMerge bool) (*mergearbiter.CompleteResult, error) {
	return e.Arbiter.CompleteWorker(ctx, workerID, autoMerge)
}

// ResolveWorker delegates to the merge arbiter's conflict-resolution
// protocol.
func (e *Engine) ResolveWorker(ctx context.Context, workerID, strategy string, files []string) (*mergearbiter.CompleteResult, error) {
	return e.Arbiter.ResolveWorker(ctx, workerID, strategy, files)
}

// DeleteWorker removes a worker record, refusing non-terminal workers
// unless force is set.
func (e *Engine) DeleteWorker(ctx context.Context, id string, force bool) error {
	return e.Workers.Delete(ctx, id, force)
}

// --- Migration ---------------------------------------------------------------

// PreviewMigration parses the checklist at <repoPath>/specFile against
// repoID's existing items without writing anything, reporting what a real
// run would do.
func (e *Engine) PreviewMigration(ctx context.Context, repoID int64, repoPath string) (*migrator.Result, error) {
	return e.Migrate.Preview(ctx, repoID, repoPath)
}

// RunMigration imports the checklist at <repoPath>/specFile into repoID.
func (e *Engine) RunMigration(ctx context.Context, repoID int64, repoPath string) (*migrator.Result, error) {
	return e.Migrate.Import(ctx, repoID, repoPath)
}

func marshalAlsoDid(vals []string) string {
	if vals == nil {
		vals = []string{}
	}
	b, _ := json.Marshal(vals)
	return string(b)
}
