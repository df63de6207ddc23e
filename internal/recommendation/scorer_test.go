package recommendation

import (
	"math"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/benvon/hostel-market/internal/models"
	"github.com/google/uuid"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreCandidates_PurchaseScenario(t *testing.T) {
	t.Parallel()

	electronics := uuid.New()
	bought := &models.Product{
		ID:         uuid.New(),
		CategoryID: electronics,
		Condition:  models.ConditionLikeNew,
		SellPrice:  price(5000),
	}
	history := []*models.Interaction{{ProductID: bought.ID, Kind: models.InteractionPurchase}}
	profile := AnalyzePreferences(history, indexProducts([]*models.Product{bought}))

	candidate := &models.Product{
		ID:         uuid.New(),
		CategoryID: electronics,
		Condition:  models.ConditionFair,
		SellPrice:  price(5500),
		ViewsCount: 60,
		CreatedAt:  testNow.Add(-48 * time.Hour),
	}

	scores := ScoreCandidates(profile, []*models.Product{candidate}, history, testNow)
	if len(scores) != 1 {
		t.Fatalf("Expected 1 score, got %d", len(scores))
	}
	if !approxEqual(scores[0].Score, 2.4) {
		t.Errorf("Score = %v, want 2.4", scores[0].Score)
	}

	wantReasons := []string{
		models.ReasonCategoryPreference,
		models.ReasonWithinPriceRange,
		models.ReasonPopularItem,
		models.ReasonRecentlyListed,
	}
	if !slices.Equal(scores[0].Reasons, wantReasons) {
		t.Errorf("Reasons = %v, want %v", scores[0].Reasons, wantReasons)
	}
}

func TestScoreCandidates_Signals(t *testing.T) {
	t.Parallel()

	category := uuid.New()
	profile := &models.PreferenceProfile{
		Categories: map[uuid.UUID]float64{category: 3},
		Conditions: map[models.Condition]float64{models.ConditionGood: 2},
		PriceRange: models.PriceRange{Min: 1000, Max: 2000},
	}

	old := testNow.Add(-30 * 24 * time.Hour)

	tests := []struct {
		name    string
		product *models.Product
		want    float64
		reason  string
	}{
		{
			name:    "category only",
			product: &models.Product{CategoryID: category, Condition: models.ConditionPoor, CreatedAt: old},
			want:    1.2,
			reason:  models.ReasonCategoryPreference,
		},
		{
			name:    "condition only",
			product: &models.Product{CategoryID: uuid.New(), Condition: models.ConditionGood, CreatedAt: old},
			want:    0.4,
			reason:  models.ReasonConditionPreference,
		},
		{
			name:    "price at lower tolerance edge",
			product: &models.Product{CategoryID: uuid.New(), Condition: models.ConditionPoor, SellPrice: price(800), CreatedAt: old},
			want:    0.2,
			reason:  models.ReasonWithinPriceRange,
		},
		{
			name:    "price at upper tolerance edge",
			product: &models.Product{CategoryID: uuid.New(), Condition: models.ConditionPoor, SellPrice: price(2400), CreatedAt: old},
			want:    0.2,
			reason:  models.ReasonWithinPriceRange,
		},
		{
			name:    "popular",
			product: &models.Product{CategoryID: uuid.New(), Condition: models.ConditionPoor, ViewsCount: 51, CreatedAt: old},
			want:    0.1,
			reason:  models.ReasonPopularItem,
		},
		{
			name:    "recent",
			product: &models.Product{CategoryID: uuid.New(), Condition: models.ConditionPoor, CreatedAt: testNow.Add(-6 * 24 * time.Hour)},
			want:    0.1,
			reason:  models.ReasonRecentlyListed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.product.ID = uuid.New()

			scores := ScoreCandidates(profile, []*models.Product{tt.product}, nil, testNow)
			if len(scores) != 1 {
				t.Fatalf("Expected 1 score, got %d", len(scores))
			}
			if !approxEqual(scores[0].Score, tt.want) {
				t.Errorf("Score = %v, want %v", scores[0].Score, tt.want)
			}
			if !slices.Equal(scores[0].Reasons, []string{tt.reason}) {
				t.Errorf("Reasons = %v, want [%s]", scores[0].Reasons, tt.reason)
			}
		})
	}
}

func TestScoreCandidates_NoSignalDropped(t *testing.T) {
	t.Parallel()

	profile := &models.PreferenceProfile{
		Categories: map[uuid.UUID]float64{uuid.New(): 5},
		Conditions: map[models.Condition]float64{models.ConditionNew: 5},
		PriceRange: models.PriceRange{Min: 100, Max: 200},
	}

	tests := []struct {
		name    string
		product *models.Product
	}{
		{"nothing matches", &models.Product{CategoryID: uuid.New(), Condition: models.ConditionPoor, SellPrice: price(10000), ViewsCount: 50}},
		{"no sell price", &models.Product{CategoryID: uuid.New(), Condition: models.ConditionPoor, RentPricePerDay: price(150)}},
		{"exactly seven days old", &models.Product{CategoryID: uuid.New(), Condition: models.ConditionPoor, CreatedAt: testNow.Add(-recentListingAge)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.product.ID = uuid.New()
			if tt.product.CreatedAt.IsZero() {
				tt.product.CreatedAt = testNow.Add(-60 * 24 * time.Hour)
			}

			if scores := ScoreCandidates(profile, []*models.Product{tt.product}, nil, testNow); len(scores) != 0 {
				t.Errorf("Expected product to be dropped, got %+v", scores)
			}
		})
	}
}

func TestScoreCandidates_ZeroPriceRangeNeverMatches(t *testing.T) {
	t.Parallel()

	profile := models.NewPreferenceProfile()
	free := &models.Product{
		ID:        uuid.New(),
		SellPrice: price(0),
		Condition: models.ConditionGood,
		CreatedAt: testNow.Add(-60 * 24 * time.Hour),
	}

	if scores := ScoreCandidates(profile, []*models.Product{free}, nil, testNow); len(scores) != 0 {
		t.Errorf("Expected no price match for empty range, got %+v", scores)
	}
}

func TestScoreCandidates_ExcludesHistory(t *testing.T) {
	t.Parallel()

	category := uuid.New()
	seen := &models.Product{ID: uuid.New(), CategoryID: category, Condition: models.ConditionGood, ViewsCount: 100, CreatedAt: testNow}
	fresh := &models.Product{ID: uuid.New(), CategoryID: category, Condition: models.ConditionGood, CreatedAt: testNow}
	history := []*models.Interaction{{ProductID: seen.ID, Kind: models.InteractionFavorite}}
	profile := AnalyzePreferences(history, indexProducts([]*models.Product{seen}))

	scores := ScoreCandidates(profile, []*models.Product{seen, fresh}, history, testNow)

	for _, s := range scores {
		if s.ProductID == seen.ID {
			t.Fatalf("Product from history was scored: %+v", s)
		}
	}
	if len(scores) != 1 || scores[0].ProductID != fresh.ID {
		t.Errorf("Expected only the fresh product, got %+v", scores)
	}
}

func TestScoreCandidates_Deterministic(t *testing.T) {
	t.Parallel()

	category := uuid.New()
	profile := &models.PreferenceProfile{
		Categories: map[uuid.UUID]float64{category: 4},
		Conditions: map[models.Condition]float64{models.ConditionGood: 1, models.ConditionFair: 3},
		PriceRange: models.PriceRange{Min: 50, Max: 500},
	}

	var candidates []*models.Product
	conditions := []models.Condition{models.ConditionGood, models.ConditionFair, models.ConditionPoor}
	for i := 0; i < 30; i++ {
		candidates = append(candidates, &models.Product{
			ID:         uuid.New(),
			CategoryID: category,
			Condition:  conditions[i%len(conditions)],
			SellPrice:  price(float64(40 * i)),
			ViewsCount: i * 4,
			CreatedAt:  testNow.Add(-time.Duration(i) * 24 * time.Hour),
		})
	}

	first := ScoreCandidates(profile, candidates, nil, testNow)
	for run := 0; run < 5; run++ {
		if again := ScoreCandidates(profile, candidates, nil, testNow); !reflect.DeepEqual(first, again) {
			t.Fatalf("Run %d produced different scores", run)
		}
	}
}

func TestScoreCandidates_NilProfile(t *testing.T) {
	t.Parallel()

	popular := &models.Product{ID: uuid.New(), ViewsCount: 80, CreatedAt: testNow.Add(-60 * 24 * time.Hour)}
	scores := ScoreCandidates(nil, []*models.Product{popular, nil}, nil, testNow)
	if len(scores) != 1 || !approxEqual(scores[0].Score, 0.1) {
		t.Errorf("Expected popularity-only score, got %+v", scores)
	}
}
