package database

import (
	"context"

	"github.com/benvon/hostel-market/internal/models"
	"github.com/google/uuid"
)

// ProductReader is the read side of the product catalog used by the recommendation engine
type ProductReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*models.Product, error)
}

// ViewCounter bumps product view counters
type ViewCounter interface {
	IncrementViews(ctx context.Context, id uuid.UUID) error
}

// InteractionStore reads and appends user interactions
type InteractionStore interface {
	Create(ctx context.Context, interaction *models.Interaction) error
	ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Interaction, error)
	ListViewers(ctx context.Context, productID, excludeUserID uuid.UUID, limit int) ([]uuid.UUID, error)
	ListViewedProducts(ctx context.Context, userIDs []uuid.UUID, excludeProductID uuid.UUID, limit int) ([]uuid.UUID, error)
}

// SettingsStore reads and writes the hot-reloaded HTTP settings
type SettingsStore interface {
	GetCors(ctx context.Context) (*models.CorsConfig, error)
	GetRatelimit(ctx context.Context) (*models.RatelimitConfig, error)
}

// Ensure concrete types implement the interfaces
var (
	_ ProductReader    = (*ProductRepository)(nil)
	_ ViewCounter      = (*ProductRepository)(nil)
	_ InteractionStore = (*InteractionRepository)(nil)
	_ SettingsStore    = (*SettingsRepository)(nil)
)
