package main

import (
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"sample_app/internal/platform/session"
)

// NewSessionsCmd groups session maintenance commands.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage server-side sessions",
	}
	cmd.AddCommand(newSessionsSweepCmd())
	return cmd
}

// newSessionsSweepCmd deletes expired rows from the sessions table.
// Redis expires its sessions on its own.
func newSessionsSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired sessions from the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			return withDB(cmd.Context(), cfg, logger, func(gdb *gorm.DB) error {
				n, err := session.NewSessionGorm(gdb).DeleteExpired(cmd.Context())
				if err != nil {
					return err
				}
				cmd.Printf("deleted %d expired sessions\n", n)
				return nil
			})
		},
	}
}
