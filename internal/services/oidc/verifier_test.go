package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const testIssuer = "https://auth.hostel.test"

func newSigningKey(t *testing.T) (jwk.Key, jwk.Set) {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	priv, err := jwk.FromRaw(raw)
	if err != nil {
		t.Fatalf("jwk.FromRaw: %v", err)
	}
	if err := priv.Set(jwk.KeyIDKey, "test-key"); err != nil {
		t.Fatalf("set kid: %v", err)
	}
	pub, err := jwk.PublicKeyOf(priv)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		t.Fatalf("add key: %v", err)
	}
	return priv, set
}

func signToken(t *testing.T, key jwk.Key, sub, iss string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewBuilder().
		Subject(sub).
		Issuer(iss).
		Expiration(exp).
		Claim("email", "renter@hostel.test").
		Claim("role", "renter").
		Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, key))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return string(signed)
}

func TestVerifier_Verify(t *testing.T) {
	t.Parallel()

	key, set := newSigningKey(t)
	_, otherSet := newSigningKey(t)
	userID := uuid.New()
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name    string
		keys    KeySource
		token   string
		wantErr string
	}{
		{"valid", StaticKeys{Set: set}, signToken(t, key, userID.String(), testIssuer, future), ""},
		{"expired", StaticKeys{Set: set}, signToken(t, key, userID.String(), testIssuer, time.Now().Add(-time.Hour)), "parse/verify"},
		{"wrong issuer", StaticKeys{Set: set}, signToken(t, key, userID.String(), "https://evil.test", future), "parse/verify"},
		{"unknown key", StaticKeys{Set: otherSet}, signToken(t, key, userID.String(), testIssuer, future), "parse/verify"},
		{"subject not uuid", StaticKeys{Set: set}, signToken(t, key, "auth0|123", testIssuer, future), "not a user id"},
		{"garbage", StaticKeys{Set: set}, "not.a.jwt", "parse/verify"},
		{"no keys", StaticKeys{}, signToken(t, key, userID.String(), testIssuer, future), "no keys"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			claims, err := NewVerifier(tt.keys, testIssuer).Verify(context.Background(), tt.token)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Verify() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			id, _ := claims.UserID()
			if id != userID || claims.Email != "renter@hostel.test" || claims.Role != "renter" || claims.Iss != testIssuer {
				t.Errorf("Unexpected claims: %+v", claims)
			}
		})
	}
}

func TestNewJWKSManager_RequiresURL(t *testing.T) {
	t.Parallel()
	if _, err := NewJWKSManager(context.Background(), "", 0); err == nil {
		t.Error("Expected error for empty JWKS URL")
	}
}
