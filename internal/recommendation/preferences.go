package recommendation

import (
	"github.com/benvon/hostel-market/internal/models"
	"github.com/google/uuid"
)

// AnalyzePreferences folds a user's interaction history into a preference profile.
// Each interaction adds its kind's weight to the accumulators of its product's
// category and condition. Sell prices widen the observed price range.
// Interactions whose product is not in products are skipped.
func AnalyzePreferences(interactions []*models.Interaction, products map[uuid.UUID]*models.Product) *models.PreferenceProfile {
	profile := models.NewPreferenceProfile()
	seeded := false

	for _, interaction := range interactions {
		if interaction == nil {
			continue
		}
		product, ok := products[interaction.ProductID]
		if !ok || product == nil {
			continue
		}

		weight := interaction.Kind.Weight()
		profile.Categories[product.CategoryID] += weight
		profile.Conditions[product.Condition] += weight

		if !product.HasSellPrice() {
			continue
		}
		price := *product.SellPrice
		if !seeded {
			profile.PriceRange = models.PriceRange{Min: price, Max: price}
			seeded = true
			continue
		}
		if price < profile.PriceRange.Min {
			profile.PriceRange.Min = price
		}
		if price > profile.PriceRange.Max {
			profile.PriceRange.Max = price
		}
	}

	return profile
}

// indexProducts keys products by id
func indexProducts(products []*models.Product) map[uuid.UUID]*models.Product {
	index := make(map[uuid.UUID]*models.Product, len(products))
	for _, p := range products {
		if p != nil {
			index[p.ID] = p
		}
	}
	return index
}

// interactedProducts returns the distinct product ids in the history, in first-seen order
func interactedProducts(interactions []*models.Interaction) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(interactions))
	ids := make([]uuid.UUID, 0, len(interactions))
	for _, interaction := range interactions {
		if interaction == nil || seen[interaction.ProductID] {
			continue
		}
		seen[interaction.ProductID] = true
		ids = append(ids, interaction.ProductID)
	}
	return ids
}
