package cmd

import (
	"context"
	"fmt"

	"github.com/chkdhq/chkd/internal/migrator"
	"github.com/spf13/cobra"
)

var migrateRepoFlag string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Import a legacy markdown checklist into the item model",
}

var migratePreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Report what importing the checklist would do, without writing",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := resolveRepo(eng, migrateRepoFlag)
		if err != nil {
			return err
		}
		result, err := eng.PreviewMigration(context.Background(), repo.ID, repo.AbsolutePath)
		if err != nil {
			return err
		}
		printMigrationResult(result)
		return nil
	},
}

var migrateRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Import the checklist, creating/updating items",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := resolveRepo(eng, migrateRepoFlag)
		if err != nil {
			return err
		}
		result, err := eng.RunMigration(context.Background(), repo.ID, repo.AbsolutePath)
		if err != nil {
			return err
		}
		printMigrationResult(result)
		return nil
	},
}

func printMigrationResult(result *migrator.Result) {
	fmt.Printf("Imported %d, updated %d, skipped %d\n", result.ItemsImported, result.ItemsUpdated, result.ItemsSkipped)
	for _, e := range result.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}

func init() {
	for _, c := range []*cobra.Command{migratePreviewCmd, migrateRunCmd} {
		c.Flags().StringVar(&migrateRepoFlag, "repo", "", "repository id or path (default: current directory)")
	}
	migrateCmd.AddCommand(migratePreviewCmd, migrateRunCmd)
}
