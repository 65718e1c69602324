package main

import (
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"sample_app/internal/app/di"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the users and sessions tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			return withDB(cmd.Context(), cfg, logger, func(gdb *gorm.DB) error {
				if err := di.Migrate(cmd.Context(), gdb); err != nil {
					return err
				}
				cmd.Println("migrations applied")
				return nil
			})
		},
	}
}
