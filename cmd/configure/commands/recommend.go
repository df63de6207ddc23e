package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/benvon/hostel-market/internal/config"
	"github.com/benvon/hostel-market/internal/database"
	"github.com/benvon/hostel-market/internal/models"
	"github.com/benvon/hostel-market/internal/recommendation"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// withEngine runs fn against a recommendation service reading the configured database
func withEngine(ctx context.Context, fn func(ctx context.Context, engine *recommendation.Service) error) error {
	return withDB(ctx, func(ctx context.Context, cfg *config.Config, db *database.DB) error {
		log := zap.NewNop()
		store := recommendation.NewStore(
			database.NewProductRepository(db),
			database.NewInteractionRepository(db),
			log,
			recommendation.WithQueryTimeout(cfg.StoreQueryTimeout),
		)
		engine := recommendation.NewService(store, store, log,
			recommendation.WithHistoryLimit(cfg.RecoHistoryLimit),
			recommendation.WithCandidatePool(cfg.RecoCandidatePool),
			recommendation.WithDefaultLimit(cfg.RecoDefaultLimit),
		)
		return fn(ctx, engine)
	})
}

// NewRecommendCmd creates the recommend command
func NewRecommendCmd() *cobra.Command {
	var userID string
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Show personalized recommendations for a user",
		Long:  "Run the recommendation engine for one user and print the ranked products with their reasons",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDFlag("--user", userID)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, engine *recommendation.Service) error {
				results := engine.PersonalizedRecommendations(ctx, id, limit)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), results)
				}
				return writeScored(cmd.OutOrStdout(), results)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (required)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results (default from RECO_DEFAULT_LIMIT)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

// NewSimilarCmd creates the similar command
func NewSimilarCmd() *cobra.Command {
	var productID string
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "similar",
		Short: "Show products similar to a product",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDFlag("--product", productID)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, engine *recommendation.Service) error {
				results := engine.SimilarProducts(ctx, id, limit)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), models.AsSimilar(results))
				}
				return writeScored(cmd.OutOrStdout(), results)
			})
		},
	}
	cmd.Flags().StringVar(&productID, "product", "", "Product ID (required)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results (default from RECO_DEFAULT_LIMIT)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

// NewTrendingCmd creates the trending command
func NewTrendingCmd() *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "trending",
		Short: "Show trending products",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, engine *recommendation.Service) error {
				results := engine.TrendingProducts(ctx, limit)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), results)
				}
				return writeProducts(cmd.OutOrStdout(), results)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results (default from RECO_DEFAULT_LIMIT)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

func parseIDFlag(flag, value string) (uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return uuid.Nil, fmt.Errorf("%s is required", flag)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", flag, err)
	}
	return id, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeScored(out io.Writer, results []models.ScoredProduct) error {
	if len(results) == 0 {
		fmt.Fprintln(out, "No results")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tPRODUCT\tTITLE\tREASONS")
	for i, r := range results {
		fmt.Fprintf(tw, "%d\t%.2f\t%s\t%s\t%s\n", i+1, r.Score, r.ID, r.Title, strings.Join(r.Reasons, ","))
	}
	return tw.Flush()
}

func writeProducts(out io.Writer, results []models.Product) error {
	if len(results) == 0 {
		fmt.Fprintln(out, "No results")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tVIEWS\tPRODUCT\tTITLE")
	for i, p := range results {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", i+1, p.ViewsCount, p.ID, p.Title)
	}
	return tw.Flush()
}
