package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"sample_app/internal/app/di"
	"sample_app/internal/platform/config"
	"sample_app/internal/platform/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the sample_app CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample_app",
		Short: "sample_app - accounts and sessions for the sample social network",
		Long: `sample_app serves signup, account activation, login with remember me,
and password reset over HTTP.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSessionsCmd())

	return cmd
}

// loadRuntime reads the configuration and installs the default logger.
func loadRuntime() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, nil)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// withDB runs fn on a freshly opened database and closes it afterwards.
func withDB(ctx context.Context, cfg *config.Config, logger *slog.Logger, fn func(*gorm.DB) error) error {
	gdb, err := di.OpenDB(ctx, cfg.DB, logger, cfg.Log.Level == "debug")
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	return fn(gdb)
}
