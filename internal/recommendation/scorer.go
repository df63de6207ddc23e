package recommendation

import (
	"time"

	"github.com/benvon/hostel-market/internal/models"
	"github.com/google/uuid"
)

// Personalized scoring weights
const (
	categoryFactor   = 0.4
	conditionFactor  = 0.2
	priceFitBonus    = 0.2
	priceTolerance   = 0.2
	popularBonus     = 0.1
	popularViewsOver = 50
	recentBonus      = 0.1
	recentListingAge = 7 * 24 * time.Hour
)

// ScoreCandidates scores each candidate against the profile. Products present in
// history are never scored and products without any matching signal are dropped.
// The result follows candidate order; now is the reference time for recency.
func ScoreCandidates(profile *models.PreferenceProfile, candidates []*models.Product, history []*models.Interaction, now time.Time) []models.RecommendationScore {
	if profile == nil {
		profile = models.NewPreferenceProfile()
	}

	seen := make(map[uuid.UUID]bool, len(history))
	for _, interaction := range history {
		if interaction != nil {
			seen[interaction.ProductID] = true
		}
	}

	scores := make([]models.RecommendationScore, 0, len(candidates))
	for _, product := range candidates {
		if product == nil || seen[product.ID] {
			continue
		}
		if s := scoreCandidate(profile, product, now); s.Score > 0 {
			scores = append(scores, s)
		}
	}
	return scores
}

func scoreCandidate(profile *models.PreferenceProfile, product *models.Product, now time.Time) models.RecommendationScore {
	s := models.RecommendationScore{ProductID: product.ID}

	if acc, ok := profile.Categories[product.CategoryID]; ok && acc > 0 {
		s.Score += acc * categoryFactor
		s.Reasons = append(s.Reasons, models.ReasonCategoryPreference)
	}

	if acc, ok := profile.Conditions[product.Condition]; ok && acc > 0 {
		s.Score += acc * conditionFactor
		s.Reasons = append(s.Reasons, models.ReasonConditionPreference)
	}

	if withinPriceRange(profile.PriceRange, product) {
		s.Score += priceFitBonus
		s.Reasons = append(s.Reasons, models.ReasonWithinPriceRange)
	}

	if product.ViewsCount > popularViewsOver {
		s.Score += popularBonus
		s.Reasons = append(s.Reasons, models.ReasonPopularItem)
	}

	if !product.CreatedAt.IsZero() && now.Sub(product.CreatedAt) < recentListingAge {
		s.Score += recentBonus
		s.Reasons = append(s.Reasons, models.ReasonRecentlyListed)
	}

	return s
}

// withinPriceRange reports whether the sell price lies in the range widened by the tolerance on both sides.
// An empty range never matches.
func withinPriceRange(r models.PriceRange, product *models.Product) bool {
	if r.IsZero() || !product.HasSellPrice() {
		return false
	}
	price := *product.SellPrice
	return price >= r.Min*(1-priceTolerance) && price <= r.Max*(1+priceTolerance)
}
