package commands

import (
	"context"
	"fmt"

	"github.com/benvon/hostel-market/internal/config"
	"github.com/benvon/hostel-market/internal/database"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate command
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply the embedded schema files. Every file is idempotent, so re-running is safe.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, _ *config.Config, db *database.DB) error {
				applied, err := db.Migrate(ctx)
				if err != nil {
					return fmt.Errorf("failed to migrate: %w", err)
				}
				for _, name := range applied {
					fmt.Fprintf(cmd.OutOrStdout(), "  applied %s\n", name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s)\n", len(applied))
				return nil
			})
		},
	}
}
