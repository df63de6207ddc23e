package oidc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// KeySource supplies the key set tokens are verified against
type KeySource interface {
	Keys(ctx context.Context) (jwk.Set, error)
}

// JWKSManager keeps the auth backend's JWKS cached and refreshed in the background
type JWKSManager struct {
	cache *jwk.Cache
	url   string
}

// NewJWKSManager registers jwksURL with a refreshing cache. The cache lives until ctx is done.
func NewJWKSManager(ctx context.Context, jwksURL string, minRefresh time.Duration) (*JWKSManager, error) {
	if jwksURL == "" {
		return nil, fmt.Errorf("JWKS URL is required")
	}
	if minRefresh <= 0 {
		minRefresh = 15 * time.Minute
	}

	cache := jwk.NewCache(ctx)
	err := cache.Register(jwksURL,
		jwk.WithMinRefreshInterval(minRefresh),
		jwk.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
	}
	return &JWKSManager{cache: cache, url: jwksURL}, nil
}

// Keys returns the cached key set, fetching it on first use
func (m *JWKSManager) Keys(ctx context.Context) (jwk.Set, error) {
	keys, err := m.cache.Get(ctx, m.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	return keys, nil
}

// StaticKeys is a KeySource over a fixed key set
type StaticKeys struct {
	Set jwk.Set
}

// Keys returns the fixed set
func (s StaticKeys) Keys(context.Context) (jwk.Set, error) {
	if s.Set == nil {
		return nil, fmt.Errorf("no keys configured")
	}
	return s.Set, nil
}

var (
	_ KeySource = (*JWKSManager)(nil)
	_ KeySource = StaticKeys{}
)
