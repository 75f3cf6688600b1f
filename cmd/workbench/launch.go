package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jdziat/workbench-jobs/pkg/core"
)

var (
	launchParams string
	launchFile   string
)

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Create a job and start its worker process",
	Long: `Creates a job row and starts the worker for it as a detached process.
Parameters are given as a JSON object with --params or --file.`,
}

func newLaunchCmd(use string, kind core.JobType, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFromContext(cmd.Context())
			if err != nil {
				return err
			}
			obj, err := readObject(launchParams, launchFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			params, err := core.NewParameters(kind)
			if err != nil {
				return err
			}
			raw, err := json.Marshal(obj)
			if err != nil {
				return err
			}
			if err := core.UnmarshalJSON(raw, params); err != nil {
				return fmt.Errorf("%w: %v", core.ErrInvalidParameters, err)
			}

			id, ok, err := a.Jobs.Launch(cmd.Context(), params)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("job %s was created but its worker did not start; see the log for details", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Launched %s job %s.\n", kind, id)
			return nil
		},
	}
}

func init() {
	launchCmd.PersistentFlags().StringVarP(&launchParams, "params", "p", "", "parameters as a JSON object")
	launchCmd.PersistentFlags().StringVarP(&launchFile, "file", "f", "", "read parameters from a JSON file (- for stdin)")

	launchCmd.AddCommand(
		newLaunchCmd("preprocess", core.TypePreprocess, "Normalize a raw dataset"),
		newLaunchCmd("model-build", core.TypeML, "Train a model on a normalized dataset"),
		newLaunchCmd("evaluate", core.TypeResult, "Evaluate a model and bind results to a sheet"),
		newLaunchCmd("export", core.TypeExport, "Export a stored artifact"),
	)
	rootCmd.AddCommand(launchCmd)
}
