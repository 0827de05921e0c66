// Package signals implements the append-only manager→operator advisory
// queue: emit, active listing, and dismiss/dismissAll semantics.
package signals

import (
	"context"
	"encoding/json"

	"github.com/chkdhq/chkd/internal/clock"
	"github.com/chkdhq/chkd/internal/idgen"
	"github.com/chkdhq/chkd/internal/store"
	"github.com/chkdhq/chkd/models"
)

// Store provides signal bus operations over a backing store.DB.
type Store struct {
	db    store.DB
	clock clock.Clock
}

// New returns a signal Store backed by db, using clk for timestamps and id
// generation.
func New(db store.DB, clk clock.Clock) *Store {
	return &Store{db: db, clock: clk}
}

// EmitInput describes a new signal.
type EmitInput struct {
	RepoID         int64
	WorkerID       string
	Type           models.SignalType
	Message        string
	Details        map[string]any
	ActionRequired bool
	ActionOptions  []string
}

// Emit appends a new signal to repo's queue, assigning it a
// signal-<unixMs>-<4 alphanum> id.
func (s *Store) Emit(ctx context.Context, in EmitInput) (*models.Signal, error) {
	now := s.clock.Now()

	details := in.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	optionsJSON, err := json.Marshal(orEmpty(in.ActionOptions))
	if err != nil {
		return nil, err
	}

	sig := models.Signal{
		ID:                idgen.SignalID(now.UnixMilli()),
		RepoID:            in.RepoID,
		WorkerID:          in.WorkerID,
		Type:              in.Type,
		Message:           in.Message,
		DetailsJSON:       string(detailsJSON),
		ActionRequired:    in.ActionRequired,
		ActionOptionsJSON: string(optionsJSON),
		Dismissed:         false,
		CreatedAt:         now,
	}
	if _, err := s.db.Insert(ctx, "signals", &sig); err != nil {
		return nil, store.Classify("signals.Emit", err)
	}
	hydrate(&sig)
	return &sig, nil
}

func orEmpty(vals []string) []string {
	if vals == nil {
		return []string{}
	}
	return vals
}

func hydrate(sig *models.Signal) {
	if sig.DetailsJSON != "" {
		_ = json.Unmarshal([]byte(sig.DetailsJSON), &sig.Details)
	}
	if sig.ActionOptionsJSON != "" {
		_ = json.Unmarshal([]byte(sig.ActionOptionsJSON), &sig.ActionOptions)
	}
}

// Active lists repo's undismissed signals, newest-first.
func (s *Store) Active(ctx context.Context, repoID int64) ([]models.Signal, error) {
	var rows []models.Signal
	err := s.db.Select(ctx, &rows,
		`SELECT * FROM signals WHERE repo_id = ? AND dismissed = 0 ORDER BY created_at DESC`, repoID)
	if err != nil {
		return nil, store.Classify("signals.Active", err)
	}
	for i := range rows {
		hydrate(&rows[i])
	}
	return rows, nil
}

// ActiveForWorker reports whether an undismissed signal of kind type already
// exists for workerID, used by the heartbeat sweeper to avoid duplicate
// warnings.
func (s *Store) ActiveForWorker(ctx context.Context, workerID string, typ models.SignalType) (bool, error) {
	var rows []models.Signal
	err := s.db.Select(ctx, &rows,
		`SELECT id FROM signals WHERE worker_id = ? AND type = ? AND dismissed = 0`, workerID, typ)
	if err != nil {
		return false, store.Classify("signals.ActiveForWorker", err)
	}
	return len(rows) > 0, nil
}

// Dismiss marks id dismissed; idempotent.
func (s *Store) Dismiss(ctx context.Context, id string) error {
	now := s.clock.Now()
	err := s.db.Exec(ctx,
		`UPDATE signals SET dismissed = 1, dismissed_at = ? WHERE id = ? AND dismissed = 0`, now, id)
	if err != nil {
		return store.Classify("signals.Dismiss", err)
	}
	return nil
}

// DismissAll dismisses every active signal in repo and returns the count
// affected.
func (s *Store) DismissAll(ctx context.Context, repoID int64) (int, error) {
	active, err := s.Active(ctx, repoID)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	err = s.db.Exec(ctx,
		`UPDATE signals SET dismissed = 1, dismissed_at = ? WHERE repo_id = ? AND dismissed = 0`, now, repoID)
	if err != nil {
		return 0, store.Classify("signals.DismissAll", err)
	}
	return len(active), nil
}
