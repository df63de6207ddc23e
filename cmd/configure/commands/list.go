package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/benvon/hostel-market/internal/config"
	"github.com/benvon/hostel-market/internal/database"
	"github.com/benvon/hostel-market/internal/models"
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List runtime settings",
		Long:  "Show the CORS and rate limit settings stored in the database, and the defaults used when none are stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				repo := database.NewSettingsRepository(db)

				corsCfg, err := repo.GetCors(ctx)
				if err != nil {
					return fmt.Errorf("failed to get cors config: %w", err)
				}
				rateCfg, err := repo.GetRatelimit(ctx)
				if err != nil {
					return fmt.Errorf("failed to get ratelimit config: %w", err)
				}

				out := cmd.OutOrStdout()
				printCors(out, corsCfg, cfg.FrontendURL)
				fmt.Fprintln(out)
				printRatelimit(out, rateCfg, cfg.RateLimitDefault)
				return nil
			})
		},
	}
}

func printCors(out io.Writer, c *models.CorsConfig, fallback string) {
	if c == nil {
		fmt.Fprintln(out, "CORS configuration: not set (falling back to FRONTEND_URL)")
		fmt.Fprintf(out, "  Allowed origins: %s\n", fallback)
		return
	}
	fmt.Fprintln(out, "CORS configuration:")
	fmt.Fprintf(out, "  Allowed origins: %s\n", c.AllowedOrigins)
	fmt.Fprintf(out, "  Allow credentials: %v\n", c.AllowCredentials)
	fmt.Fprintf(out, "  Max-Age: %d\n", c.MaxAge)
	fmt.Fprintf(out, "  Updated: %s\n", c.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func printRatelimit(out io.Writer, c *models.RatelimitConfig, fallback string) {
	if c == nil {
		fmt.Fprintln(out, "Rate limit configuration: not set (falling back to RATE_LIMIT_DEFAULT)")
		fmt.Fprintf(out, "  Rate: %s\n", fallback)
		return
	}
	fmt.Fprintln(out, "Rate limit configuration:")
	fmt.Fprintf(out, "  Rate: %s\n", c.Rate)
	fmt.Fprintf(out, "  Updated: %s\n", c.UpdatedAt.Format("2006-01-02 15:04:05"))
}
