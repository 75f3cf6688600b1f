package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var janitorDryRun bool

var janitorCmd = &cobra.Command{
	Use:   "janitor",
	Short: "Clean up orphaned data files",
}

var janitorRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Sweep the data directory once",
	Long: `Removes files under the data directory that no dataset, model or job
result references. Files modified within the grace period are kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromContext(cmd.Context())
		if err != nil {
			return err
		}
		report, err := a.Janitor.RunOnce(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(report.Orphans) > 0 {
			table := newTable(out, []string{"Orphaned File"})
			for _, p := range report.Orphans {
				table.Append([]string{p})
			}
			table.Render()
		}
		if a.Config.Janitor.DryRun {
			fmt.Fprintf(out, "Scanned %d files, found %d orphans (dry run).\n", report.Scanned, len(report.Orphans))
			return nil
		}
		fmt.Fprintf(out, "Scanned %d files, removed %d (%d bytes), %d failed.\n",
			report.Scanned, report.Removed, report.Bytes, report.Failed)
		return nil
	},
}

func init() {
	janitorRunCmd.Flags().BoolVar(&janitorDryRun, "dry-run", false, "report orphans without removing them")
	janitorCmd.AddCommand(janitorRunCmd)
	rootCmd.AddCommand(janitorCmd)
}
