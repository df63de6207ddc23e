package recommendation

import (
	"math"
	"sort"

	"github.com/benvon/hostel-market/internal/models"
)

// Similarity weights
const (
	sameCategoryBonus    = 0.3
	sameConditionBonus   = 0.2
	similarViewsOver     = 10
	similarPopularBonus  = 0.1
	differentSellerBonus = 0.1
)

// priceBands maps a relative price difference to a proximity score.
// The first band whose bound exceeds the ratio applies.
var priceBands = []struct {
	below float64
	score float64
}{
	{0.2, 0.3},
	{0.5, 0.2},
	{1.0, 0.1},
}

// ScoreSimilar scores candidates against a reference product and returns them
// best first. Ties keep candidate order. The reference itself is never returned.
func ScoreSimilar(reference *models.Product, candidates []*models.Product) []models.ScoredProduct {
	if reference == nil {
		return nil
	}

	scored := make([]models.ScoredProduct, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate == nil || candidate.ID == reference.ID {
			continue
		}
		score, reasons := similarity(reference, candidate)
		scored = append(scored, models.ScoredProduct{Product: *candidate, Score: score, Reasons: reasons})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

func similarity(reference, candidate *models.Product) (float64, []string) {
	var score float64
	var reasons []string

	if candidate.CategoryID == reference.CategoryID {
		score += sameCategoryBonus
		reasons = append(reasons, models.ReasonSameCategory)
	}

	if reference.HasSellPrice() && candidate.HasSellPrice() {
		if p := priceProximity(*reference.SellPrice, *candidate.SellPrice); p > 0 {
			score += p
			reasons = append(reasons, models.ReasonSimilarPrice)
		}
	}

	if candidate.Condition == reference.Condition {
		score += sameConditionBonus
		reasons = append(reasons, models.ReasonSameCondition)
	}

	if candidate.ViewsCount > similarViewsOver {
		score += similarPopularBonus
		reasons = append(reasons, models.ReasonPopularItem)
	}

	if candidate.SellerID != reference.SellerID {
		score += differentSellerBonus
		reasons = append(reasons, models.ReasonDifferentSeller)
	}

	return score, reasons
}

// priceProximity returns the banded score for |candidate-reference|/reference.
// A non-positive reference price has no meaningful ratio and scores 0.
func priceProximity(referencePrice, candidatePrice float64) float64 {
	if referencePrice <= 0 {
		return 0
	}
	ratio := math.Abs(candidatePrice-referencePrice) / referencePrice
	for _, band := range priceBands {
		if ratio < band.below {
			return band.score
		}
	}
	return 0
}
