package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jdziat/workbench-jobs/pkg/core"
)

var viewTitle, viewStyle string

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Manage result views on a sheet",
}

var viewListCmd = &cobra.Command{
	Use:   "list [sheet_id]",
	Short: "List a sheet's views in layout order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromContext(cmd.Context())
		if err != nil {
			return err
		}
		views, err := a.Store.ListViews(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(views) == 0 {
			fmt.Fprintln(out, "No views found.")
			return nil
		}
		table := newTable(out, []string{"Index", "ID", "Title", "Style"})
		for _, v := range views {
			table.Append([]string{strconv.Itoa(v.Index()), v.ID, v.Title, v.Style})
		}
		table.Render()
		return nil
	},
}

var viewAddCmd = &cobra.Command{
	Use:   "add [sheet_id]",
	Short: "Append a view to the end of a sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromContext(cmd.Context())
		if err != nil {
			return err
		}
		view := &core.ResultView{SheetID: args[0], Title: viewTitle, Style: viewStyle}
		if err := a.Jobs.AppendResultView(cmd.Context(), view); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added view %s at position %d.\n", view.ID, view.Index())
		return nil
	},
}

var viewMoveCmd = &cobra.Command{
	Use:   "move [sheet_id] [view_id] [position]",
	Short: "Move a view to a 0-based position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid position %q: must be an integer", args[2])
		}
		a, err := appFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.Jobs.MoveResultView(cmd.Context(), args[0], args[1], target); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Moved view %s.\n", args[1])
		return nil
	},
}

var viewDeleteCmd = &cobra.Command{
	Use:   "delete [sheet_id] [view_id]",
	Short: "Delete a view and close the gap it leaves",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.Jobs.DeleteResultView(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted view %s.\n", args[1])
		return nil
	},
}

var sheetCmd = &cobra.Command{
	Use:   "sheet",
	Short: "Manage result sheets",
}

var sheetDeleteCmd = &cobra.Command{
	Use:   "delete [sheet_id]",
	Short: "Delete a sheet and its views",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.Jobs.DeleteResultSheet(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted sheet %s.\n", args[0])
		return nil
	},
}

var workbookCmd = &cobra.Command{
	Use:   "workbook",
	Short: "Manage workbooks",
}

var workbookDeleteCmd = &cobra.Command{
	Use:   "delete [workbook_id]",
	Short: "Delete a workbook with its sheets and views",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.Jobs.DeleteWorkbook(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted workbook %s.\n", args[0])
		return nil
	},
}

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Manage stored datasets and model files",
}

var datasetDeleteCmd = &cobra.Command{
	Use:   "delete [raw|normalized|model] [id]",
	Short: "Delete a dataset row and the file it owns",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := core.ParseDatasetKind(args[0])
		if err != nil {
			return err
		}
		a, err := appFromContext(cmd.Context())
		if err != nil {
			return err
		}
		deleted, err := a.Jobs.DeleteDataset(cmd.Context(), kind, args[1])
		if err != nil {
			return err
		}
		if deleted == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "No %s dataset %s.\n", kind, args[1])
			return nil
		}
		return printJSON(cmd.OutOrStdout(), deleted)
	},
}

func init() {
	viewAddCmd.Flags().StringVar(&viewTitle, "title", "", "view title")
	viewAddCmd.Flags().StringVar(&viewStyle, "style", "", "chart style")

	viewCmd.AddCommand(viewListCmd, viewAddCmd, viewMoveCmd, viewDeleteCmd)
	sheetCmd.AddCommand(sheetDeleteCmd)
	workbookCmd.AddCommand(workbookDeleteCmd)
	datasetCmd.AddCommand(datasetDeleteCmd)
	rootCmd.AddCommand(viewCmd, sheetCmd, workbookCmd, datasetCmd)
}
