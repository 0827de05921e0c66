package cmd

import (
	"context"
	"fmt"

	"github.com/chkdhq/chkd/internal/clock"
	"github.com/chkdhq/chkd/internal/config"
	"github.com/chkdhq/chkd/internal/engine"
	"github.com/chkdhq/chkd/internal/store"
	"github.com/chkdhq/chkd/internal/tui"
	"github.com/spf13/cobra"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Launch the terminal dashboard",
	Long:  `Opens the interactive terminal UI for monitoring tracked repositories and reviewing active signals.`,
	RunE:  runUI,
}

func runUI(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := store.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	eng := engine.New(cfg, db, clock.Real{})
	app := tui.NewApp(cfg, eng)
	return app.Run()
}
