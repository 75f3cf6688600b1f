package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	jobs "github.com/jdziat/workbench-jobs"
	"github.com/jdziat/workbench-jobs/pkg/core"
)

var (
	jobCreateType   string
	jobCreateParams string
	jobCreateFile   string

	jobListType  string
	jobListPage  int
	jobListLimit int
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect and manage job records",
}

var jobCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Insert a job row without launching a worker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromContext(cmd.Context())
		if err != nil {
			return err
		}
		params, err := readObject(jobCreateParams, jobCreateFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		id, err := a.Jobs.CreateJob(cmd.Context(), jobs.JobType(jobCreateType), params)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var jobGetCmd = &cobra.Command{
	Use:   "get [job_id]",
	Short: "Print a job as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromContext(cmd.Context())
		if err != nil {
			return err
		}
		job, err := a.Jobs.GetJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("job %s: %w", args[0], core.ErrJobNotFound)
		}
		return printJSON(cmd.OutOrStdout(), job)
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromContext(cmd.Context())
		if err != nil {
			return err
		}
		filter := jobs.JobFilter{Page: jobListPage, PageSize: jobListLimit}
		if jobListType != "" {
			if filter.Type, err = core.ParseJobType(jobListType); err != nil {
				return err
			}
		}
		filter = filter.Normalize()

		list, total, err := a.Jobs.ListJobs(cmd.Context(), filter)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "No jobs found.")
			return nil
		}

		table := newTable(out, []string{"ID", "Type", "Status", "Named", "PID", "Created At"})
		for _, j := range list {
			table.Append([]string{
				j.ID,
				string(j.Type),
				j.State().String(),
				strconv.FormatBool(j.IsNamed),
				pidString(j.ProcessID),
				j.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		table.Render()
		fmt.Fprintf(out, "Page %d, %d of %d jobs\n", filter.Page, len(list), total)
		return nil
	},
}

var jobProgressCmd = &cobra.Command{
	Use:   "progress [job_id]",
	Short: "Show the tasks a worker reported for a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromContext(cmd.Context())
		if err != nil {
			return err
		}
		p, err := a.Jobs.JobProgress(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		progress := "-"
		if p.Progress != nil {
			progress = core.FormatProgress(*p.Progress) + "%"
		}
		fmt.Fprintf(out, "Job %s: %s (%s)\n", p.Job.ID, p.State, progress)
		if len(p.Tasks) == 0 {
			return nil
		}

		table := newTable(out, []string{"Task", "Progress", "State", "Error", "Reported At"})
		for _, t := range p.Tasks {
			code := ""
			if t.ErrorCode != nil {
				code = *t.ErrorCode
			}
			table.Append([]string{
				t.ID,
				t.ProgressPercent,
				t.State().String(),
				code,
				t.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		table.Render()
		return nil
	},
}

var jobNameCmd = &cobra.Command{
	Use:   "name [job_id]",
	Short: "Mark a job's output as saved by the user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.Jobs.MarkNamed(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Marked job %s as named.\n", args[0])
		return nil
	},
}

var jobDeleteCmd = &cobra.Command{
	Use:   "delete [job_id]",
	Short: "Delete a job with its tasks, results and result files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.Jobs.DeleteJob(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete job %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %s.\n", args[0])
		return nil
	},
}

func init() {
	jobCreateCmd.Flags().StringVarP(&jobCreateType, "type", "t", "", "job type (preprocess, ml, result, export)")
	jobCreateCmd.Flags().StringVarP(&jobCreateParams, "params", "p", "", "parameters as a JSON object")
	jobCreateCmd.Flags().StringVarP(&jobCreateFile, "file", "f", "", "read parameters from a JSON file (- for stdin)")
	_ = jobCreateCmd.MarkFlagRequired("type")

	jobListCmd.Flags().StringVarP(&jobListType, "type", "t", "", "only list jobs of this type")
	jobListCmd.Flags().IntVar(&jobListPage, "page", 1, "page number, starting at 1")
	jobListCmd.Flags().IntVarP(&jobListLimit, "limit", "n", core.DefaultPageSize, "jobs per page")

	jobCmd.AddCommand(jobCreateCmd, jobGetCmd, jobListCmd, jobProgressCmd, jobNameCmd, jobDeleteCmd)
	rootCmd.AddCommand(jobCmd)
}
