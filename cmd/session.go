package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionRepoFlag string

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "View and update the operator session for a repository",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := resolveRepo(eng, sessionRepoFlag)
		if err != nil {
			return err
		}
		sess, err := eng.Session.Get(context.Background(), repo.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Status:       %s\n", sess.Status)
		fmt.Printf("Mode:         %s\n", sess.Mode)
		fmt.Printf("Current item: %s\n", sess.CurrentItem)
		fmt.Printf("Current task: %s\n", sess.CurrentTask)
		if sess.Anchor != nil {
			fmt.Printf("Anchor:       %s (%s)\n", sess.Anchor.TaskTitle, sess.Anchor.TaskID)
		}
		if len(sess.AlsoDid) > 0 {
			fmt.Println("Also did:")
			for _, a := range sess.AlsoDid {
				fmt.Printf("  - %s\n", a)
			}
		}
		return nil
	},
}

var sessionStartCmd = &cobra.Command{
	Use:   "start <taskId> <taskTitle>",
	Short: "Start a new session on a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := resolveRepo(eng, sessionRepoFlag)
		if err != nil {
			return err
		}
		sess, err := eng.Session.Start(context.Background(), repo.ID, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Session started: %s (%s)\n", sess.CurrentTask, sess.Status)
		return nil
	},
}

var sessionCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Clear the session back to idle",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := resolveRepo(eng, sessionRepoFlag)
		if err != nil {
			return err
		}
		if _, err := eng.Session.Clear(context.Background(), repo.ID); err != nil {
			return err
		}
		fmt.Println("Session cleared.")
		return nil
	},
}

var sessionQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the pending task queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := resolveRepo(eng, sessionRepoFlag)
		if err != nil {
			return err
		}
		queue, err := eng.QueueGet(context.Background(), repo.ID)
		if err != nil {
			return err
		}
		if len(queue) == 0 {
			fmt.Println("Queue is empty.")
			return nil
		}
		for _, title := range queue {
			fmt.Printf("  - %s\n", title)
		}
		return nil
	},
}

var sessionQueueAddCmd = &cobra.Command{
	Use:   "queue-add <title>",
	Short: "Add a title to the pending task queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := resolveRepo(eng, sessionRepoFlag)
		if err != nil {
			return err
		}
		if err := eng.QueueAdd(context.Background(), repo.ID, args[0]); err != nil {
			return err
		}
		fmt.Println("Added.")
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{sessionShowCmd, sessionStartCmd, sessionCompleteCmd, sessionQueueCmd, sessionQueueAddCmd} {
		c.Flags().StringVar(&sessionRepoFlag, "repo", "", "repository id or path (default: current directory)")
	}
	sessionCmd.AddCommand(sessionShowCmd, sessionStartCmd, sessionCompleteCmd, sessionQueueCmd, sessionQueueAddCmd)
}
