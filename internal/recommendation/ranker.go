package recommendation

import (
	"sort"

	"github.com/benvon/hostel-market/internal/models"
	"github.com/google/uuid"
)

// Rank joins scores onto their products, orders them best first and truncates to limit.
// Ties keep score order. Scores whose product is unknown are dropped.
func Rank(scores []models.RecommendationScore, products map[uuid.UUID]*models.Product, limit int) []models.ScoredProduct {
	ranked := make([]models.ScoredProduct, 0, len(scores))
	for _, s := range scores {
		product, ok := products[s.ProductID]
		if !ok || product == nil {
			continue
		}
		ranked = append(ranked, models.ScoredProduct{Product: *product, Score: s.Score, Reasons: s.Reasons})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return Truncate(ranked, limit)
}

// Truncate returns at most limit items. A non-positive limit returns nothing.
func Truncate[T any](items []T, limit int) []T {
	if limit <= 0 {
		return items[:0]
	}
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

// rankByCoViews counts occurrences of each product id and returns the distinct
// ids ordered by count, most co-viewed first. Ties keep first occurrence order.
func rankByCoViews(viewed []uuid.UUID) []uuid.UUID {
	counts := make(map[uuid.UUID]int, len(viewed))
	order := make([]uuid.UUID, 0, len(viewed))
	for _, id := range viewed {
		if counts[id] == 0 {
			order = append(order, id)
		}
		counts[id]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	return order
}
