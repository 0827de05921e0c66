package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/chkdhq/chkd/internal/config"
	"github.com/chkdhq/chkd/internal/store"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify git, the database, and the worktree root",
	Long:  `Checks that git is on PATH, the configured database can be reached and migrated, and the worktree root directory is writable.`,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	allOK := true

	fmt.Println("=== chkd doctor ===")
	fmt.Println()

	fmt.Print("git ....................... ")
	if path, err := exec.LookPath("git"); err != nil {
		fmt.Println("MISSING (git is required to manage worktrees and merges)")
		allOK = false
	} else {
		fmt.Printf("OK (%s)\n", path)
	}

	fmt.Print("Database .................. ")
	db, err := store.New(cfg.Database)
	if err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		if err := db.Migrate(ctx); err != nil {
			fmt.Printf("FAIL (%s)\n", err)
			allOK = false
		} else if err := db.Ping(ctx); err != nil {
			fmt.Printf("FAIL (%s)\n", err)
			allOK = false
		} else {
			fmt.Printf("OK (%s)\n", db.Driver())
		}
		db.Close()
	}

	fmt.Print("Worktree root .............. ")
	root := cfg.Git.WorktreeRoot
	if root == "" {
		root = config.DefaultWorktrees
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		probe := root + "/.chkd-doctor-probe"
		if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
			fmt.Printf("FAIL (not writable: %s)\n", err)
			allOK = false
		} else {
			os.Remove(probe)
			fmt.Printf("OK (%s)\n", root)
		}
	}

	fmt.Println()
	if allOK {
		fmt.Println(successStyle.Render("All checks passed — chkd is ready."))
	} else {
		fmt.Println(warnStyle.Render("Some checks failed — see above."))
	}

	return nil
}
