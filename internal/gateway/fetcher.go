package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"

	"github.com/chkdhq/chkd/internal/engine"
	"github.com/chkdhq/chkd/models"
	"github.com/robfig/cron/v3"
)

// fetcher runs a per-repository `git fetch` of each tracked repo's default
// branch on its own configured schedule (models.Repository.FetchSchedule, a
// cron expression; empty disables it). Unlike the teacher's Scheduler, which
// registers one entry per persisted gateway_schedules row, fetcher derives
// its entries from the repositories table itself and re-syncs them on a
// fixed interval so schedule edits made through the API take effect without
// a restart.
type fetcher struct {
	eng       *engine.Engine
	broadcast func(SSEEvent)
	cron      *cron.Cron

	mu      sync.Mutex
	entries map[int64]cron.EntryID // repo id → cron entry id
	exprs   map[int64]string       // repo id → expression currently registered
}

func newFetcher(eng *engine.Engine, broadcast func(SSEEvent)) *fetcher {
	return &fetcher{
		eng:       eng,
		broadcast: broadcast,
		cron:      cron.New(),
		entries:   make(map[int64]cron.EntryID),
		exprs:     make(map[int64]string),
	}
}

// Start loads the current repositories, registers a cron entry for each one
// with a non-empty FetchSchedule, and begins a background resync loop that
// picks up schedule changes made after startup.
func (f *fetcher) Start(ctx context.Context) error {
	if err := f.resync(ctx); err != nil {
		return err
	}
	f.cron.Start()
	go f.resyncLoop(ctx)
	return nil
}

func (f *fetcher) Stop() { f.cron.Stop() }

func (f *fetcher) resyncLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.resync(ctx); err != nil {
				slog.Warn("fetcher: resync failed", "error", err)
			}
		}
	}
}

func (f *fetcher) resync(ctx context.Context) error {
	repos, err := f.eng.ListRepositories(ctx)
	if err != nil {
		return err
	}
	seen := map[int64]bool{}
	for _, repo := range repos {
		seen[repo.ID] = true
		f.register(repo)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for id, entryID := range f.entries {
		if !seen[id] {
			f.cron.Remove(entryID)
			delete(f.entries, id)
			delete(f.exprs, id)
		}
	}
	return nil
}

// register adds or updates the cron entry for repo, skipping it entirely
// when FetchSchedule is blank and removing any previously-registered entry.
func (f *fetcher) register(repo models.Repository) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if repo.FetchSchedule == f.exprs[repo.ID] {
		return
	}
	if entryID, ok := f.entries[repo.ID]; ok {
		f.cron.Remove(entryID)
		delete(f.entries, repo.ID)
		delete(f.exprs, repo.ID)
	}
	if repo.FetchSchedule == "" || !repo.Enabled {
		return
	}

	repoID := repo.ID
	path := repo.AbsolutePath
	entryID, err := f.cron.AddFunc(repo.FetchSchedule, func() {
		f.runFetch(repoID, path)
	})
	if err != nil {
		slog.Warn("fetcher: invalid fetch schedule, skipping",
			"repo_id", repo.ID, "expr", repo.FetchSchedule, "error", err)
		return
	}
	f.entries[repo.ID] = entryID
	f.exprs[repo.ID] = repo.FetchSchedule
}

func (f *fetcher) runFetch(repoID int64, path string) {
	start := time.Now()
	err := fetchDefaultBranch(path)
	evt := SSEEvent{Type: "repository.fetched", Payload: map[string]any{
		"repo_id":     repoID,
		"duration_ms": time.Since(start).Milliseconds(),
	}}
	if err != nil {
		slog.Warn("fetcher: git fetch failed", "repo_id", repoID, "path", path, "error", err)
		evt.Payload.(map[string]any)["error"] = err.Error()
	}
	if f.broadcast != nil {
		f.broadcast(evt)
	}
}

// fetchDefaultBranch runs a plain `git fetch origin` against path using
// go-git, the same library the teacher uses for clones.
func fetchDefaultBranch(path string) error {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	err = repo.FetchContext(ctx, &gogit.FetchOptions{RemoteName: "origin"})
	if errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}
