package handlers

import (
	"context"
	"net/http"

	"github.com/benvon/hostel-market/internal/models"
	"github.com/benvon/hostel-market/internal/recommendation"
	"github.com/benvon/hostel-market/internal/request"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Recommender is the engine surface the HTTP layer needs
type Recommender interface {
	PersonalizedRecommendations(ctx context.Context, userID uuid.UUID, limit int) []models.ScoredProduct
	SimilarProducts(ctx context.Context, productID uuid.UUID, limit int) []models.ScoredProduct
	UsersAlsoViewed(ctx context.Context, productID, excludeUserID uuid.UUID, limit int) []models.Product
	TrendingProducts(ctx context.Context, limit int) []models.Product
	FeedFor(ctx context.Context, userID uuid.UUID, limit int) recommendation.Feed
	TrackInteraction(ctx context.Context, userID, productID uuid.UUID, kind models.InteractionKind)
}

var _ Recommender = (*recommendation.Service)(nil)

// RecommendationHandler serves recommendation and interaction endpoints
type RecommendationHandler struct {
	engine Recommender
	logger *zap.Logger
}

// NewRecommendationHandler creates a new recommendation handler
func NewRecommendationHandler(engine Recommender, logger *zap.Logger) *RecommendationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecommendationHandler{engine: engine, logger: logger}
}

// RegisterRoutes registers routes on the /api/v1 router. requireAuth guards
// per-user endpoints; optionalAuth identifies callers where anonymous access is allowed.
func (h *RecommendationHandler) RegisterRoutes(r *mux.Router, requireAuth, optionalAuth func(http.Handler) http.Handler) {
	r.Handle("/recommendations", requireAuth(http.HandlerFunc(h.Personalized))).Methods("GET")
	r.Handle("/recommendations/feed", requireAuth(http.HandlerFunc(h.Feed))).Methods("GET")
	r.Handle("/recommendations/trending", optionalAuth(http.HandlerFunc(h.Trending))).Methods("GET")
	r.Handle("/products/{id}/similar", optionalAuth(http.HandlerFunc(h.Similar))).Methods("GET")
	r.Handle("/products/{id}/also-viewed", optionalAuth(http.HandlerFunc(h.AlsoViewed))).Methods("GET")
	r.Handle("/interactions", requireAuth(http.HandlerFunc(h.TrackInteraction))).Methods("POST")
}

// Personalized handles GET /api/v1/recommendations
func (h *RecommendationHandler) Personalized(w http.ResponseWriter, r *http.Request) {
	userID, ok := request.UserIDFromContext(r)
	if !ok {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	items := h.engine.PersonalizedRecommendations(r.Context(), userID, limit)
	respondJSON(w, http.StatusOK, newList(items))
}

// Feed handles GET /api/v1/recommendations/feed
func (h *RecommendationHandler) Feed(w http.ResponseWriter, r *http.Request) {
	userID, ok := request.UserIDFromContext(r)
	if !ok {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	feed := h.engine.FeedFor(r.Context(), userID, limit)
	if feed.Personalized == nil {
		feed.Personalized = []models.ScoredProduct{}
	}
	if feed.Trending == nil {
		feed.Trending = []models.Product{}
	}
	respondJSON(w, http.StatusOK, feed)
}

// Trending handles GET /api/v1/recommendations/trending
func (h *RecommendationHandler) Trending(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, newList(h.engine.TrendingProducts(r.Context(), limit)))
}

// Similar handles GET /api/v1/products/{id}/similar
func (h *RecommendationHandler) Similar(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	scored := h.engine.SimilarProducts(r.Context(), productID, limit)
	respondJSON(w, http.StatusOK, newList(models.AsSimilar(scored)))
}

// AlsoViewed handles GET /api/v1/products/{id}/also-viewed.
// Authenticated callers are excluded from the co-viewer set.
func (h *RecommendationHandler) AlsoViewed(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	userID, _ := request.UserIDFromContext(r)
	respondJSON(w, http.StatusOK, newList(h.engine.UsersAlsoViewed(r.Context(), productID, userID, limit)))
}

func (h *RecommendationHandler) productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid product ID")
		return uuid.Nil, false
	}
	return id, true
}
