package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InteractionKind represents how a user acted on a product
type InteractionKind string

const (
	InteractionView     InteractionKind = "view"
	InteractionFavorite InteractionKind = "favorite"
	InteractionMessage  InteractionKind = "message"
	InteractionPurchase InteractionKind = "purchase"
)

// Weight returns the intent signal strength of the interaction kind.
// Unknown kinds carry no weight.
func (k InteractionKind) Weight() float64 {
	switch k {
	case InteractionView:
		return 1
	case InteractionFavorite:
		return 3
	case InteractionMessage:
		return 4
	case InteractionPurchase:
		return 5
	default:
		return 0
	}
}

// ParseInteractionKind converts a raw value into an InteractionKind
func ParseInteractionKind(value string) (InteractionKind, error) {
	k := InteractionKind(value)
	switch k {
	case InteractionView, InteractionFavorite, InteractionMessage, InteractionPurchase:
		return k, nil
	default:
		return "", fmt.Errorf("invalid interaction kind: %q (must be 'view', 'favorite', 'message', or 'purchase')", value)
	}
}

// Interaction is an append-only record of a user acting on a product
type Interaction struct {
	ID                uuid.UUID       `json:"id"`
	UserID            uuid.UUID       `json:"user_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	Kind              InteractionKind `json:"interaction_type"`
	Count             *int            `json:"interaction_count,omitempty"`
	LastInteractionAt *time.Time      `json:"last_interaction_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}
