package models

import "github.com/google/uuid"

// JWTClaims holds the claims read from a marketplace access token.
// The subject is the user's UUID in the hosted auth backend.
type JWTClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Exp   int64  `json:"exp"`
	Iss   string `json:"iss"`
}

// UserID parses the subject claim as a user UUID
func (c *JWTClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Sub)
}
