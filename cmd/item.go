package cmd

import (
	"context"
	"fmt"

	"github.com/chkdhq/chkd/internal/items"
	"github.com/chkdhq/chkd/models"
	"github.com/spf13/cobra"
)

var (
	itemRepoFlag     string
	itemArea         string
	itemDescription  string
	itemPriorityFlag string
	itemParentID     int64
)

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage the spec checklist for a repository",
}

var itemListCmd = &cobra.Command{
	Use:   "list",
	Short: "List items, optionally filtered by area",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := resolveRepo(eng, itemRepoFlag)
		if err != nil {
			return err
		}

		ctx := context.Background()
		var list []models.Item
		if itemArea != "" {
			list, err = eng.Items.ByArea(ctx, repo.ID, models.AreaCode(itemArea))
		} else {
			list, err = eng.Items.ByRepo(ctx, repo.ID)
		}
		if err != nil {
			return err
		}
		for _, it := range list {
			fmt.Printf("  %-10s [%s] %-8s %s\n", it.DisplayID, it.Priority, it.Status, it.Title)
		}
		return nil
	},
}

var itemAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a top-level item in an area",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := resolveRepo(eng, itemRepoFlag)
		if err != nil {
			return err
		}
		area := models.AreaCode(itemArea)
		if !area.Valid() {
			return fmt.Errorf("invalid area %q (expected one of SD, FE, BE, FUT)", itemArea)
		}
		priority := models.ItemPriority(itemPriorityFlag)
		if priority == "" {
			priority = models.PriorityMedium
		}
		if !priority.Valid() {
			return fmt.Errorf("invalid priority %q", itemPriorityFlag)
		}

		it, err := eng.CreateTopLevelItem(context.Background(), items.CreateInput{
			RepoID:      repo.ID,
			Title:       args[0],
			Description: itemDescription,
			AreaCode:    area,
			Priority:    priority,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created %s: %s\n", it.DisplayID, it.Title)
		return nil
	},
}

var itemAddChildCmd = &cobra.Command{
	Use:   "add-child <title>",
	Short: "Add a child item under --parent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if itemParentID == 0 {
			return fmt.Errorf("--parent is required")
		}
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		priority := models.ItemPriority(itemPriorityFlag)
		if priority == "" {
			priority = models.PriorityMedium
		}
		it, err := eng.AddChild(context.Background(), itemParentID, args[0], itemDescription, priority)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s: %s\n", it.DisplayID, it.Title)
		return nil
	},
}

var itemMoveCmd = &cobra.Command{
	Use:   "move <id> <area>",
	Short: "Move a top-level item to a different area",
	Args:  cobra.ExactArgs(2),
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

		it, err := eng.MoveItem(context.Background(), id, models.AreaCode(args[1]))
		if err != nil {
			return err
		}
		fmt.Printf("Moved to %s\n", it.DisplayID)
		return nil
	},
}

var itemDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark an item done",
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

		done := models.ItemDone
		it, err := eng.Items.Update(context.Background(), id, items.UpdateInput{Status: &done})
		if err != nil {
			return err
		}
		fmt.Printf("%s marked done\n", it.DisplayID)
		return nil
	},
}

var itemProgressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show completion progress, optionally scoped to --area",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, eng, err := openEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := resolveRepo(eng, itemRepoFlag)
		if err != nil {
			return err
		}
		p, err := eng.Items.Progress(context.Background(), repo.ID, models.AreaCode(itemArea))
		if err != nil {
			return err
		}
		fmt.Printf("%d/%d done (%.0f%%)\n", p.Done, p.Total, p.Percent)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{itemListCmd, itemAddCmd, itemProgressCmd} {
		c.Flags().StringVar(&itemRepoFlag, "repo", "", "repository id or path (default: current directory)")
	}
	itemListCmd.Flags().StringVar(&itemArea, "area", "", "filter by area code (SD, FE, BE, FUT)")
	itemProgressCmd.Flags().StringVar(&itemArea, "area", "", "scope to one area code")
	itemAddCmd.Flags().StringVar(&itemArea, "area", "", "area code (SD, FE, BE, FUT)")
	itemAddCmd.Flags().StringVar(&itemDescription, "description", "", "item description")
	itemAddCmd.Flags().StringVar(&itemPriorityFlag, "priority", "", "priority: critical|high|medium|low (default: medium)")
	itemAddChildCmd.Flags().Int64Var(&itemParentID, "parent", 0, "parent item id")
	itemAddChildCmd.Flags().StringVar(&itemDescription, "description", "", "item description")
	itemAddChildCmd.Flags().StringVar(&itemPriorityFlag, "priority", "", "priority: critical|high|medium|low (default: medium)")

	itemCmd.AddCommand(itemListCmd, itemAddCmd, itemAddChildCmd, itemMoveCmd, itemDoneCmd, itemProgressCmd)
}
