package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jdziat/workbench-jobs/internal/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local HTTP API",
	Long: `Starts the HTTP API used by the desktop front end. When the janitor is
enabled it also sweeps orphaned data files on its schedule.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromContext(cmd.Context())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := &http.Server{
			Addr:              a.Config.Server.Addr,
			Handler:           api.NewRouter(a.Jobs, a.Logger.Named("api")),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			a.Logger.Info("api listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
			defer cancel()
			a.Logger.Info("shutting down api")
			return srv.Shutdown(shutdownCtx)
		})
		if a.JanitorEnabled() {
			g.Go(func() error {
				err := a.Janitor.Start(gctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		}

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides server.addr")
	rootCmd.AddCommand(serveCmd)
}
