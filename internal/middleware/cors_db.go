package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benvon/hostel-market/internal/database"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const defaultCorsMaxAge = 3600

// CORSReloader serves rs/cors with the policy stored in the database, reloading it periodically
type CORSReloader struct {
	settings database.SettingsStore
	fallback string
	log      *zap.Logger
	interval time.Duration
	mu       sync.RWMutex
	current  *cors.Cors
}

// NewCORSReloader creates the reloader and loads the current policy. fallbackOrigins
// (comma-separated, usually FRONTEND_URL) apply while no policy is stored or the store is unreachable.
func NewCORSReloader(settings database.SettingsStore, fallbackOrigins string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	if log == nil {
		log = zap.NewNop()
	}
	r := &CORSReloader{
		settings: settings,
		fallback: strings.TrimSpace(fallbackOrigins),
		log:      log,
		interval: reloadInterval,
	}
	ctx, cancel := context.WithTimeout(context.Background(), initialLoadTimeout)
	defer cancel()
	r.load(ctx)
	return r
}

// Middleware applies whichever policy is current when the request arrives
func (r *CORSReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.mu.RLock()
			c := r.current
			r.mu.RUnlock()
			c.Handler(next).ServeHTTP(w, req)
		})
	}
}

// Start runs the reload loop until ctx is cancelled
func (r *CORSReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.load(ctx)
		}
	}
}

// options builds the rs/cors policy from the stored config, or from the fallback
func (r *CORSReloader) options(ctx context.Context) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   database.AllowedOriginsSlice(r.fallback),
		AllowCredentials: true,
		MaxAge:           defaultCorsMaxAge,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
	}

	cfg, err := r.settings.GetCors(ctx)
	switch {
	case err != nil:
		r.log.Warn("failed_to_load_cors_config_using_fallback", zap.Error(err))
	case cfg != nil:
		if origins := database.AllowedOriginsSlice(cfg.AllowedOrigins); len(origins) > 0 {
			opts.AllowedOrigins = origins
		}
		opts.AllowCredentials = cfg.AllowCredentials
		if cfg.MaxAge > 0 {
			opts.MaxAge = cfg.MaxAge
		}
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:3000"}
	}
	return opts
}

func (r *CORSReloader) load(ctx context.Context) {
	c := cors.New(r.options(ctx))
	r.mu.Lock()
	r.current = c
	r.mu.Unlock()
}
