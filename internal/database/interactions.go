package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/hostel-market/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// InteractionRepository handles user interaction records. Rows are append-only.
type InteractionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewInteractionRepository creates a new interaction repository
func NewInteractionRepository(db *DB) *InteractionRepository {
	return &InteractionRepository{db: db, logger: zap.NewNop()}
}

// SetLogger sets the logger used to report skipped rows
func (r *InteractionRepository) SetLogger(logger *zap.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Create inserts a new interaction. Inserting an existing ID returns ErrAlreadyExists.
func (r *InteractionRepository) Create(ctx context.Context, interaction *models.Interaction) error {
	query := `
		INSERT INTO user_interactions (id, user_id, product_id, interaction_type, interaction_count, last_interaction_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at
	`

	if interaction.ID == uuid.Nil {
		interaction.ID = uuid.New()
	}

	var count sql.NullInt64
	if interaction.Count != nil {
		count = sql.NullInt64{Int64: int64(*interaction.Count), Valid: true}
	}
	var lastAt sql.NullTime
	if interaction.LastInteractionAt != nil {
		lastAt = sql.NullTime{Time: *interaction.LastInteractionAt, Valid: true}
	}

	createdAt := interaction.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err := r.db.QueryRowContext(ctx, query,
		interaction.ID,
		interaction.UserID,
		interaction.ProductID,
		string(interaction.Kind),
		count,
		lastAt,
		createdAt,
	).Scan(&interaction.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("interaction %s: %w", interaction.ID, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create interaction: %w", err)
	}

	return nil
}

// ListRecentByUser retrieves a user's most recent interactions, newest first
func (r *InteractionRepository) ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Interaction, error) {
	query := `
		SELECT id, user_id, product_id, interaction_type, interaction_count, last_interaction_at, created_at
		FROM user_interactions
		WHERE user_id = $1
		ORDER BY COALESCE(last_interaction_at, created_at) DESC, id
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var interactions []*models.Interaction
	for rows.Next() {
		interaction, err := scanInteraction(rows)
		if err != nil {
			var invalid *invalidRowError
			if errors.As(err, &invalid) {
				r.logger.Warn("skipping_invalid_interaction_row", zap.Error(err))
				continue
			}
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		interactions = append(interactions, interaction)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interactions: %w", err)
	}

	return interactions, nil
}

// ListViewers returns users who viewed the product, most recent viewer first.
// excludeUserID is left out of the result; pass uuid.Nil to keep everyone.
func (r *InteractionRepository) ListViewers(ctx context.Context, productID, excludeUserID uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT user_id
		FROM user_interactions
		WHERE product_id = $1 AND interaction_type = 'view' AND user_id <> $2
		GROUP BY user_id
		ORDER BY MAX(created_at) DESC, user_id
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, productID, excludeUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query viewers: %w", err)
	}
	return collectIDs(rows, "viewers")
}

// ListViewedProducts returns the product IDs viewed by the given users, newest view first.
// A product appears once per view so callers can count co-views.
func (r *InteractionRepository) ListViewedProducts(ctx context.Context, userIDs []uuid.UUID, excludeProductID uuid.UUID, limit int) ([]uuid.UUID, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT product_id
		FROM user_interactions
		WHERE user_id = ANY($1::uuid[]) AND interaction_type = 'view' AND product_id <> $2
		ORDER BY created_at DESC, id
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, pq.StringArray(uuidStrings(userIDs)), excludeProductID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query viewed products: %w", err)
	}
	return collectIDs(rows, "viewed products")
}

func collectIDs(rows *sql.Rows, what string) ([]uuid.UUID, error) {
	defer func() {
		_ = rows.Close()
	}()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", what, err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", what, err)
	}

	return ids, nil
}

func scanInteraction(row rowScanner) (*models.Interaction, error) {
	i := &models.Interaction{}
	var kind string
	var count sql.NullInt64
	var lastAt sql.NullTime

	if err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.ProductID,
		&kind,
		&count,
		&lastAt,
		&i.CreatedAt,
	); err != nil {
		return nil, err
	}

	if count.Valid {
		c := int(count.Int64)
		i.Count = &c
	}
	if lastAt.Valid {
		i.LastInteractionAt = &lastAt.Time
	}

	parsed, err := models.ParseInteractionKind(kind)
	if err != nil {
		return nil, &invalidRowError{table: "user_interactions", id: i.ID, err: err}
	}
	i.Kind = parsed

	return i, nil
}
