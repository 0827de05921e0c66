package workers

import (
	"context"
	"time"

	"github.com/chkdhq/chkd/internal/signals"
	"github.com/chkdhq/chkd/models"
)

// Sweeper periodically scans for workers whose heartbeat has gone stale and
// raises a warning signal for each, deduplicating so a single stuck worker
// doesn't spam the signal bus every cycle.
type Sweeper struct {
	workers   *Store
	signals   *signals.Store
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
}

// NewSweeper builds a Sweeper polling every interval and flagging workers
// whose heartbeat is older than threshold.
func NewSweeper(w *Store, sig *signals.Store, interval, threshold time.Duration, now func() time.Time) *Sweeper {
	return &Sweeper{workers: w, signals: sig, interval: interval, threshold: threshold, now: now}
}

// Run blocks, sweeping at Sweeper's interval until ctx is cancelled.
func (sw *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(sw.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sw.sweep(ctx)
		}
	}
}

func (sw *Sweeper) sweep(ctx context.Context) {
	repos, err := sw.reposWithLiveWorkers(ctx)
	if err != nil {
		return
	}
	for _, repoID := range repos {
		ws, err := sw.workers.ByRepo(ctx, repoID)
		if err != nil {
			continue
		}
		for _, w := range ws {
			if w.Status != models.WorkerWorking && w.Status != models.WorkerMerging {
				continue
			}
			if w.HeartbeatAt == nil {
				continue
			}
			if sw.now().Sub(*w.HeartbeatAt) < sw.threshold {
				continue
			}
			already, err := sw.signals.ActiveForWorker(ctx, w.ID, models.SignalWarning)
			if err != nil || already {
				continue
			}
			_, _ = sw.signals.Emit(ctx, signals.EmitInput{
				RepoID:         w.RepoID,
				WorkerID:       w.ID,
				Type:           models.SignalWarning,
				Message:        "worker " + w.ID + " has not reported a heartbeat recently",
				ActionRequired: true,
				ActionOptions:  []string{"resume", "stop"},
			})
		}
	}
}

// reposWithLiveWorkers returns the distinct repo ids that currently have any
// worker at all, so the sweep doesn't need a global table scan API.
func (sw *Sweeper) reposWithLiveWorkers(ctx context.Context) ([]int64, error) {
	var rows []struct {
		RepoID int64 `db:"repo_id"`
	}
	err := sw.workers.db.Select(ctx, &rows, `SELECT DISTINCT repo_id FROM workers`)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.RepoID
	}
	return out, nil
}
