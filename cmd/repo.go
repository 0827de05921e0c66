package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var (
	repoDisplayName   string
	repoDefaultBranch string
	repoFetchSchedule string
	repoInteractive   bool
)

// promptRepoDetails fills in whatever repoDisplayName/repoDefaultBranch/
// repoFetchSchedule flags were left blank, using the same form style as the
// rest of the CLI's interactive prompts.
func promptRepoDetails(abs string) error {
	fields := []huh.Field{}
	if repoDisplayName == "" {
		fields = append(fields, huh.NewInput().
			Title("Display name").
			Description(abs).
			Placeholder(filepath.Base(abs)).
			Value(&repoDisplayName))
	}
	if repoDefaultBranch == "" {
		fields = append(fields, huh.NewInput().
			Title("Default branch").
			Placeholder("main").
			Value(&repoDefaultBranch))
	}
	if repoFetchSchedule == "" {
		fields = append(fields, huh.NewInput().
			Title("Fetch schedule (cron expression, blank = use global default)").
			Placeholder("*/5 * * * *").
			Value(&repoFetchSchedule))
	}
	if len(fields) == 0 {
		return nil
	}
	form := huh.NewForm(huh.NewGroup(fields...))
	return form.Run()
}

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage tracked repositories",
	Long:  `Add, remove, list, and update the repositories the coordination engine tracks.`,
}

var repoAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Start tracking a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if repoInteractive {
			if err := promptRepoDetails(abs); err != nil {
				return err
			}
		}
		if repoDisplayName == "" {
			repoDisplayName = filepath.Base(abs)
		}
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := eng.AddRepository(context.Background(), abs, repoDisplayName, repoDefaultBranch, repoFetchSchedule)
		if err != nil {
			return err
		}
		fmt.Printf("Tracking %s (id %d, default branch %s)\n", repo.AbsolutePath, repo.ID, repo.DefaultBranch)
		return nil
	},
}

var repoRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Stop tracking a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := eng.DeleteRepository(context.Background(), id); err != nil {
			return err
		}
		fmt.Printf("Removed repository %d\n", id)
		return nil
	},
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		repos, err := eng.ListRepositories(context.Background())
		if err != nil {
			return err
		}
		if len(repos) == 0 {
			fmt.Println("No repositories tracked. Add one with: chkd repo add <path>")
			return nil
		}
		for _, r := range repos {
			status := "enabled"
			if !r.Enabled {
				status = "disabled"
			}
			fmt.Printf("  [%d] %-40s %s (%s, %s)\n", r.ID, r.DisplayName, r.AbsolutePath, r.DefaultBranch, status)
		}
		return nil
	},
}

func init() {
	repoAddCmd.Flags().StringVar(&repoDisplayName, "name", "", "display name (default: directory basename)")
	repoAddCmd.Flags().StringVar(&repoDefaultBranch, "default-branch", "", "default branch (default: main)")
	repoAddCmd.Flags().StringVar(&repoFetchSchedule, "fetch-schedule", "", "cron expression for periodic git fetch (default: config's global schedule)")
	repoAddCmd.Flags().BoolVar(&repoInteractive, "interactive", false, "prompt for any field left blank instead of falling back to defaults")
	repoCmd.AddCommand(repoAddCmd, repoRemoveCmd, repoListCmd)
}
