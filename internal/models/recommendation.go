package models

import (
	"strings"

	"github.com/google/uuid"
)

// Reason tags attached to score contributions
const (
	ReasonCategoryPreference  = "matches_category_preference"
	ReasonConditionPreference = "matches_condition_preference"
	ReasonWithinPriceRange    = "within_price_range"
	ReasonPopularItem         = "popular_item"
	ReasonRecentlyListed      = "recently_listed"
	ReasonSameCategory        = "same_category"
	ReasonSimilarPrice        = "similar_price"
	ReasonSameCondition       = "same_condition"
	ReasonDifferentSeller     = "different_seller"
)

// PriceRange is the [Min, Max] sell price band observed across a user's interactions.
// A zero range means no price preference.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// IsZero reports whether no price has been observed
func (r PriceRange) IsZero() bool {
	return r.Min == 0 && r.Max == 0
}

// PreferenceProfile is a per-request aggregate of a user's affinities.
// It is built fresh for every request and never persisted.
type PreferenceProfile struct {
	Categories map[uuid.UUID]float64 `json:"categories"`
	Conditions map[Condition]float64 `json:"conditions"`
	PriceRange PriceRange            `json:"price_range"`
}

// NewPreferenceProfile returns an empty profile
func NewPreferenceProfile() *PreferenceProfile {
	return &PreferenceProfile{
		Categories: make(map[uuid.UUID]float64),
		Conditions: make(map[Condition]float64),
	}
}

// RecommendationScore is the transient score of one candidate product
type RecommendationScore struct {
	ProductID uuid.UUID `json:"product_id"`
	Score     float64   `json:"score"`
	Reasons   []string  `json:"reasons"`
}

// ReasonString returns the reason tags joined by commas
func (s RecommendationScore) ReasonString() string {
	return strings.Join(s.Reasons, ",")
}

// ScoredProduct is a full product record annotated with its score
type ScoredProduct struct {
	Product
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons,omitempty"`
}

// SimilarProduct is a ScoredProduct rendered with a similarity_score field
type SimilarProduct struct {
	Product
	SimilarityScore float64  `json:"similarity_score"`
	Reasons         []string `json:"reasons,omitempty"`
}

// AsSimilar converts scored products into their similar-products representation
func AsSimilar(scored []ScoredProduct) []SimilarProduct {
	out := make([]SimilarProduct, 0, len(scored))
	for _, sp := range scored {
		out = append(out, SimilarProduct{
			Product:         sp.Product,
			SimilarityScore: sp.Score,
			Reasons:         sp.Reasons,
		})
	}
	return out
}
