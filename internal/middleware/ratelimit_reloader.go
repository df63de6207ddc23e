package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/benvon/hostel-market/internal/database"
	"github.com/benvon/hostel-market/internal/request"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"go.uber.org/zap"
)

// DefaultRate is used when no rate is stored
const DefaultRate = "5-S"

const initialLoadTimeout = 5 * time.Second

// RateLimitReloader limits requests per client IP at the rate stored in the database,
// reloading the rate periodically. Routes share one limiter.
type RateLimitReloader struct {
	store       limiter.Store
	settings    database.SettingsStore
	defaultRate string
	log         *zap.Logger
	interval    time.Duration
	mu          sync.RWMutex
	current     *stdlibmw.Middleware
	rate        string
}

// NewRateLimitReloader creates the reloader over a limiter store (Redis in production)
// and loads the current rate.
func NewRateLimitReloader(store limiter.Store, settings database.SettingsStore, defaultRate string, log *zap.Logger, reloadInterval time.Duration) *RateLimitReloader {
	if defaultRate == "" {
		defaultRate = DefaultRate
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &RateLimitReloader{
		store:       store,
		settings:    settings,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
	}
	ctx, cancel := context.WithTimeout(context.Background(), initialLoadTimeout)
	defer cancel()
	r.load(ctx)
	return r
}

// Middleware limits next with whichever rate is current when the request arrives
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.mu.RLock()
			mw := r.current
			r.mu.RUnlock()
			if mw == nil {
				next.ServeHTTP(w, req)
				return
			}
			mw.Handler(next).ServeHTTP(w, req)
		})
	}
}

// Start runs the reload loop until ctx is cancelled
func (r *RateLimitReloader) Start(ctx context.Context) {
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

// resolveRate picks the stored rate, falling back to the default when it is missing or malformed
func (r *RateLimitReloader) resolveRate(ctx context.Context) (string, limiter.Rate, error) {
	rateStr := r.defaultRate
	cfg, err := r.settings.GetRatelimit(ctx)
	if err != nil {
		r.log.Warn("failed_to_load_ratelimit_config_using_default",
			zap.Error(err),
			zap.String("default_rate", r.defaultRate),
		)
	} else if cfg != nil && cfg.Rate != "" {
		rateStr = cfg.Rate
	}

	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err == nil {
		return rateStr, rate, nil
	}
	r.log.Error("failed_to_parse_rate_limit_using_default",
		zap.Error(err),
		zap.String("rate", rateStr),
	)
	rate, err = limiter.NewRateFromFormatted(r.defaultRate)
	return r.defaultRate, rate, err
}

// load rebuilds the limiter when the stored rate changed
func (r *RateLimitReloader) load(ctx context.Context) {
	rateStr, rate, err := r.resolveRate(ctx)
	if err != nil {
		r.log.Error("failed_to_parse_default_rate_limit", zap.Error(err), zap.String("default_rate", r.defaultRate))
		return
	}

	r.mu.RLock()
	unchanged := r.current != nil && r.rate == rateStr
	r.mu.RUnlock()
	if unchanged {
		return
	}

	mw := stdlibmw.NewMiddleware(limiter.New(r.store, rate),
		stdlibmw.WithKeyGetter(request.ClientIP),
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, req *http.Request) {
			respondErrorJSON(w, req, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded", r.log)
		}),
	)

	r.mu.Lock()
	r.current = mw
	r.rate = rateStr
	r.mu.Unlock()
	r.log.Info("ratelimit_loaded", zap.String("rate", rateStr))
}
