package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/benvon/hostel-market/internal/config"
	"github.com/benvon/hostel-market/internal/database"
)

// withDB loads configuration, connects to the database and runs fn
func withDB(ctx context.Context, fn func(ctx context.Context, cfg *config.Config, db *database.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	return fn(ctx, cfg, db)
}
