package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/benvon/hostel-market/internal/models"
)

const defaultSettingsKey = "default"

// SettingsRepository stores the CORS and rate limit settings the server reloads at runtime.
// Each table holds a single row keyed by "default".
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetCors returns the stored CORS policy, or nil when none has been set
func (r *SettingsRepository) GetCors(ctx context.Context) (*models.CorsConfig, error) {
	query, args, err := psql.
		Select("config_key", "allowed_origins", "allow_credentials", "max_age", "created_at", "updated_at").
		From("cors_config").
		Where(sq.Eq{"config_key": defaultSettingsKey}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build cors query: %w", err)
	}

	c := &models.CorsConfig{}
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&c.ConfigKey,
		&c.AllowedOrigins,
		&c.AllowCredentials,
		&c.MaxAge,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cors config: %w", err)
	}
	return c, nil
}

// SetCors upserts the CORS policy
func (r *SettingsRepository) SetCors(ctx context.Context, c *models.CorsConfig) error {
	origins := strings.Join(AllowedOriginsSlice(c.AllowedOrigins), ",")
	if origins == "" {
		return errors.New("allowed_origins cannot be empty")
	}

	now := time.Now()
	query, args, err := psql.
		Insert("cors_config").
		Columns("config_key", "allowed_origins", "allow_credentials", "max_age", "created_at", "updated_at").
		Values(defaultSettingsKey, origins, c.AllowCredentials, c.MaxAge, now, now).
		Suffix(`ON CONFLICT (config_key) DO UPDATE SET
			allowed_origins = EXCLUDED.allowed_origins,
			allow_credentials = EXCLUDED.allow_credentials,
			max_age = EXCLUDED.max_age,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build cors upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to set cors config: %w", err)
	}
	return nil
}

// GetRatelimit returns the stored API rate, or nil when none has been set
func (r *SettingsRepository) GetRatelimit(ctx context.Context) (*models.RatelimitConfig, error) {
	query, args, err := psql.
		Select("config_key", "rate", "created_at", "updated_at").
		From("ratelimit_config").
		Where(sq.Eq{"config_key": defaultSettingsKey}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build ratelimit query: %w", err)
	}

	c := &models.RatelimitConfig{}
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&c.ConfigKey, &c.Rate, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ratelimit config: %w", err)
	}
	return c, nil
}

// SetRatelimit upserts the API rate. The rate uses limiter format, e.g. "5-S" or "100-M".
func (r *SettingsRepository) SetRatelimit(ctx context.Context, c *models.RatelimitConfig) error {
	rate := strings.TrimSpace(c.Rate)
	if rate == "" {
		return errors.New("rate cannot be empty")
	}

	now := time.Now()
	query, args, err := psql.
		Insert("ratelimit_config").
		Columns("config_key", "rate", "created_at", "updated_at").
		Values(defaultSettingsKey, rate, now, now).
		Suffix(`ON CONFLICT (config_key) DO UPDATE SET rate = EXCLUDED.rate, updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build ratelimit upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to set ratelimit config: %w", err)
	}
	return nil
}

// AllowedOriginsSlice splits a comma-separated origin list, trimming and deduplicating entries
func AllowedOriginsSlice(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(raw, ",") {
		s := strings.TrimSpace(p)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
