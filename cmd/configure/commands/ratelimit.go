package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/hostel-market/internal/config"
	"github.com/benvon/hostel-market/internal/database"
	"github.com/benvon/hostel-market/internal/models"
	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"
)

// NewRatelimitCmd creates the ratelimit configuration command with list and set subcommands.
func NewRatelimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage rate limit configuration",
		Long:  "List or update rate limit (e.g. 5-S, 100-M). Stored in database.",
	}
	cmd.AddCommand(newRatelimitListCmd())
	cmd.AddCommand(newRatelimitSetCmd())
	return cmd
}

func newRatelimitListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current rate limit configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				c, err := database.NewSettingsRepository(db).GetRatelimit(ctx)
				if err != nil {
					return fmt.Errorf("get ratelimit config: %w", err)
				}
				printRatelimit(cmd.OutOrStdout(), c, cfg.RateLimitDefault)
				return nil
			})
		},
	}
}

func newRatelimitSetCmd() *cobra.Command {
	var rate string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set rate limit configuration",
		Long:  "Update rate limit (e.g. 5-S, 100-M, 1000-H). Running API servers pick it up on their next reload.",
		RunE: func(cmd *cobra.Command, args []string) error {
			normalized, err := normalizeRate(rate)
			if err != nil {
				return err
			}
			return withDB(cmd.Context(), func(ctx context.Context, _ *config.Config, db *database.DB) error {
				c := &models.RatelimitConfig{Rate: normalized}
				if err := database.NewSettingsRepository(db).SetRatelimit(ctx, c); err != nil {
					return fmt.Errorf("set ratelimit config: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Rate limit configuration updated.")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "", "Rate (e.g. 5-S, 100-M, 1000-H) (required)")
	return cmd
}

// normalizeRate rejects rates the limiter cannot parse so the servers never load a bad value
func normalizeRate(rate string) (string, error) {
	rate = strings.ToUpper(strings.TrimSpace(rate))
	if rate == "" {
		return "", fmt.Errorf("--rate is required (e.g. 5-S, 100-M)")
	}
	if _, err := limiter.NewRateFromFormatted(rate); err != nil {
		return "", fmt.Errorf("invalid rate %q: %w", rate, err)
	}
	return rate, nil
}
