package cmd

import (
	"context"
	"fmt"

	"github.com/chkdhq/chkd/internal/workers"
	"github.com/spf13/cobra"
)

var (
	workerRepoFlag      string
	workerUsername      string
	workerTaskTitle     string
	workerForce         bool
	workerAutoMerge     bool
	workerStrategy      string
	workerResolveFiles  []string
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Spawn, inspect, and retire workers",
}

var workerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workers for a repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := resolveRepo(eng, workerRepoFlag)
		if err != nil {
			return err
		}
		list, err := eng.Workers.ByRepo(context.Background(), repo.ID)
		if err != nil {
			return err
		}
		for _, w := range list {
			fmt.Printf("  %-24s %-10s %-10s %s\n", w.ID, w.Status, w.Username, w.TaskTitle)
		}
		return nil
	},
}

var workerSpawnCmd = &cobra.Command{
	Use:   "spawn <taskId> <taskTitle>",
	Short: "Register a new worker and provision its worktree",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := resolveRepo(eng, workerRepoFlag)
		if err != nil {
			return err
		}
		username := workerUsername
		if username == "" {
			username = "agent"
		}
		w, err := eng.SpawnWorker(context.Background(), *repo, workers.CreateInput{
			RepoID:    repo.ID,
			Username:  username,
			TaskID:    args[0],
			TaskTitle: args[1],
		})
		if err != nil {
			return err
		}
		fmt.Printf("Spawned %s in %s (branch %s)\n", w.ID, w.WorktreePath, w.BranchName)
		return nil
	},
}

var workerCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Mark a worker's task done and attempt to merge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := eng.CompleteWorker(context.Background(), args[0], workerAutoMerge)
		if err != nil {
			return err
		}
		fmt.Printf("Worker %s -> %s\n", args[0], result.Worker.Status)
		return nil
	},
}

var workerResolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Resolve a merge conflict and retry the merge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := eng.ResolveWorker(context.Background(), args[0], workerStrategy, workerResolveFiles)
		if err != nil {
			return err
		}
		fmt.Printf("Worker %s -> %s\n", args[0], result.Worker.Status)
		return nil
	},
}

var workerDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a worker (pass --force to delete a non-terminal worker)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := eng.DeleteWorker(context.Background(), args[0], workerForce); err != nil {
			return err
		}
		fmt.Printf("Deleted worker %s\n", args[0])
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{workerListCmd, workerSpawnCmd} {
		c.Flags().StringVar(&workerRepoFlag, "repo", "", "repository id or path (default: current directory)")
	}
	workerSpawnCmd.Flags().StringVar(&workerUsername, "username", "", "worker's operator username (default: agent)")
	workerCompleteCmd.Flags().BoolVar(&workerAutoMerge, "auto-merge", true, "attempt merge immediately")
	workerResolveCmd.Flags().StringVar(&workerStrategy, "strategy", "", "resolution strategy: ours|theirs|abort")
	workerResolveCmd.Flags().StringSliceVar(&workerResolveFiles, "files", nil, "files the strategy applies to; must cover every conflicting file (default: all)")
	workerDeleteCmd.Flags().BoolVar(&workerForce, "force", false, "delete even if the worker is not in a terminal state")

	workerCmd.AddCommand(workerListCmd, workerSpawnCmd, workerCompleteCmd, workerResolveCmd, workerDeleteCmd)
}
