package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jdziat/workbench-jobs/internal/app"
	"github.com/jdziat/workbench-jobs/internal/config"
	"github.com/jdziat/workbench-jobs/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "workbench",
	Short:         "Workbench job subsystem",
	Long:          `Workbench launches detached worker processes, tracks their jobs, and keeps result layouts and data files consistent.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipApp(cmd) {
			return nil
		}

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		applyFlagOverrides(cmd, cfg)

		log, err := logger.New(cfg.Log.Mode, cfg.Log.Level, cfg.Log.File)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}

		a, err := app.New(cfg, log)
		if err != nil {
			_ = log.Sync()
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		if err := a.Migrate(cmd.Context()); err != nil {
			_ = a.Close()
			return fmt.Errorf("failed to migrate schema: %w", err)
		}

		cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromContext(cmd.Context())
		if err != nil {
			return nil
		}
		return a.Close()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type contextKey string

const appKey contextKey = "app"

func appFromContext(ctx context.Context) (*app.App, error) {
	if ctx == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	a, ok := ctx.Value(appKey).(*app.App)
	if !ok || a == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return a, nil
}

// skipApp reports whether cmd runs without opening the store.
func skipApp(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", "version", "completion", "__complete":
		return true
	}
	return !cmd.Runnable()
}

// applyFlagOverrides copies command flags that shadow config keys.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if f := cmd.Flags().Lookup("dry-run"); f != nil && f.Changed {
		cfg.Janitor.DryRun = janitorDryRun
	}
	if f := cmd.Flags().Lookup("addr"); f != nil && f.Changed {
		cfg.Server.Addr = serveAddr
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./workbench.yaml or the user config dir)")
}
