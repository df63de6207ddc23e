package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/benvon/hostel-market/internal/models"
	"github.com/benvon/hostel-market/internal/request"
	"github.com/benvon/hostel-market/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TrackInteraction handles POST /api/v1/interactions.
// The write is handed off and the caller gets 202 whether or not it succeeds.
func (h *RecommendationHandler) TrackInteraction(w http.ResponseWriter, r *http.Request) {
	userID, ok := request.UserIDFromContext(r)
	if !ok {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req validation.TrackInteractionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.logger.Debug("invalid_interaction_body", zap.Error(err))
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	req.Kind = strings.ToLower(validation.SanitizeText(req.Kind))
	req.ProductID = validation.SanitizeText(req.ProductID)

	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Validation Error", strings.Join(validation.FieldErrors(err), "; "))
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid product ID")
		return
	}

	// The write outlives the request; a client hanging up must not cancel it
	h.engine.TrackInteraction(context.WithoutCancel(r.Context()), userID, productID, models.InteractionKind(req.Kind))
	respondJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}
