package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/hostel-market/internal/config"
	"github.com/benvon/hostel-market/internal/database"
	"github.com/benvon/hostel-market/internal/models"
	"github.com/spf13/cobra"
)

// NewCorsCmd creates the cors configuration command with list and set subcommands.
func NewCorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage CORS configuration",
		Long:  "List or update CORS allowed origins and options (stored in database).",
	}
	cmd.AddCommand(newCorsListCmd())
	cmd.AddCommand(newCorsSetCmd())
	return cmd
}

func newCorsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current CORS configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				c, err := database.NewSettingsRepository(db).GetCors(ctx)
				if err != nil {
					return fmt.Errorf("get cors config: %w", err)
				}
				printCors(cmd.OutOrStdout(), c, cfg.FrontendURL)
				return nil
			})
		},
	}
}

func newCorsSetCmd() *cobra.Command {
	var origins string
	var allowCreds bool
	var maxAge int
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set CORS configuration",
		Long:  "Update CORS allowed origins (comma-separated). Running API servers pick it up on their next reload.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := corsConfigFromFlags(origins, allowCreds, maxAge)
			if err != nil {
				return err
			}
			return withDB(cmd.Context(), func(ctx context.Context, _ *config.Config, db *database.DB) error {
				if err := database.NewSettingsRepository(db).SetCors(ctx, c); err != nil {
					return fmt.Errorf("set cors config: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "CORS configuration updated.")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	cmd.Flags().BoolVar(&allowCreds, "allow-credentials", true, "Allow credentials")
	cmd.Flags().IntVar(&maxAge, "max-age", 3600, "Access-Control-Max-Age (seconds)")
	return cmd
}

func corsConfigFromFlags(origins string, allowCreds bool, maxAge int) (*models.CorsConfig, error) {
	list := database.AllowedOriginsSlice(origins)
	if len(list) == 0 {
		return nil, fmt.Errorf("--origins is required (comma-separated list)")
	}
	for _, o := range list {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return nil, fmt.Errorf("invalid origin %q: must be * or start with http:// or https://", o)
		}
	}
	if maxAge < 0 {
		return nil, fmt.Errorf("--max-age must not be negative")
	}
	return &models.CorsConfig{
		AllowedOrigins:   strings.Join(list, ","),
		AllowCredentials: allowCreds,
		MaxAge:           maxAge,
	}, nil
}
