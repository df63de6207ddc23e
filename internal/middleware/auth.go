package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/benvon/hostel-market/internal/models"
	"github.com/benvon/hostel-market/internal/request"
	"go.uber.org/zap"
)

// TokenVerifier validates a bearer token and returns its claims
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.JWTClaims, error)
}

var (
	errMissingToken = errors.New("missing Authorization header")
	errBadScheme    = errors.New("invalid Authorization header format")
)

// bearerToken extracts the token from "Authorization: Bearer <token>"
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errBadScheme
	}
	return token, nil
}

// Auth requires a valid bearer token and stores the caller's user id in the request context
func Auth(verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return authenticate(verifier, logger, true)
}

// OptionalAuth attaches the caller's user id when a token is sent.
// Anonymous requests pass through; a token that fails verification is still rejected.
func OptionalAuth(verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return authenticate(verifier, logger, false)
}

func authenticate(verifier TokenVerifier, logger *zap.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if errors.Is(err, errMissingToken) && !required {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", err.Error(), logger)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.Debug("token_verification_failed", zap.Error(err))
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token", logger)
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Token subject is not a user id", logger)
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithUserID(r.Context(), userID)))
		})
	}
}
