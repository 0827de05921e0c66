package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/chkdhq/chkd/internal/clock"
	"github.com/chkdhq/chkd/internal/config"
	"github.com/chkdhq/chkd/internal/engine"
	"github.com/chkdhq/chkd/internal/store"
	"github.com/chkdhq/chkd/models"
)

// parseID parses a decimal row id from a CLI argument.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

// openEngine loads config, opens the database (running migrations), and
// wires an Engine. The caller must Close the returned DB.
func openEngine() (*config.Config, store.DB, *engine.Engine, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	db, err := store.New(cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	eng := engine.New(cfg, db, clock.Real{})
	return cfg, db, eng, nil
}

// resolveRepo resolves the --repo flag value, which may be a numeric
// repository id or a filesystem path (absolute or relative). An empty
// value resolves to the current working directory.
func resolveRepo(eng *engine.Engine, repoFlag string) (*models.Repository, error) {
	ctx := context.Background()
	if repoFlag == "" {
		repoFlag = "."
	}
	if id, err := strconv.ParseInt(repoFlag, 10, 64); err == nil {
		return eng.GetRepository(ctx, id)
	}
	abs, err := filepath.Abs(repoFlag)
	if err != nil {
		return nil, err
	}
	return eng.RepositoryByPath(ctx, abs)
}
