package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"sample_app/internal/app/di"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			if cfg.Log.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := di.NewApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					logger.Error("failed to close connections", "error", err)
				}
			}()

			if migrate {
				if err := di.Migrate(ctx, app.DB); err != nil {
					return err
				}
				logger.Info("migrations applied")
			}

			srv := &http.Server{
				Addr:         cfg.HTTP.Addr,
				Handler:      app.Router,
				ReadTimeout:  cfg.HTTP.ReadTimeout,
				WriteTimeout: cfg.HTTP.WriteTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				defer close(errCh)
				logger.Info("http server started", "addr", cfg.HTTP.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return oops.Code("SERVER_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return oops.Code("SERVER_FAILED").Wrapf(err, "shutdown")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply migrations before serving")

	return cmd
}
