package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/benvon/hostel-market/internal/models"
	"github.com/gorilla/mux"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

type mockSettings struct {
	cors      *models.CorsConfig
	corsErr   error
	rate      *models.RatelimitConfig
	rateErr   error
	corsCalls atomic.Int32
	rateCalls atomic.Int32
}

func (m *mockSettings) GetCors(ctx context.Context) (*models.CorsConfig, error) {
	m.corsCalls.Add(1)
	return m.cors, m.corsErr
}

func (m *mockSettings) GetRatelimit(ctx context.Context) (*models.RatelimitConfig, error) {
	m.rateCalls.Add(1)
	return m.rate, m.rateErr
}

func preflight(h http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/recommendations", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCORSReloader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		settings   *mockSettings
		origin     string
		wantAllow  bool
		wantMaxAge string
	}{
		{
			name:       "stored origins",
			settings:   &mockSettings{cors: &models.CorsConfig{AllowedOrigins: "https://hostel.test, https://admin.hostel.test", MaxAge: 600}},
			origin:     "https://admin.hostel.test",
			wantAllow:  true,
			wantMaxAge: "600",
		},
		{
			name:     "stored origins reject others",
			settings: &mockSettings{cors: &models.CorsConfig{AllowedOrigins: "https://hostel.test"}},
			origin:   "https://frontend.test",
		},
		{
			name:       "no row uses fallback",
			settings:   &mockSettings{},
			origin:     "https://frontend.test",
			wantAllow:  true,
			wantMaxAge: "3600",
		},
		{
			name:      "store error uses fallback",
			settings:  &mockSettings{corsErr: errors.New("db down")},
			origin:    "https://frontend.test",
			wantAllow: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reloader := NewCORSReloader(tt.settings, "https://frontend.test", zap.NewNop(), 0)
			h := reloader.Middleware()(okHandler())

			w := preflight(h, tt.origin)
			got := w.Header().Get("Access-Control-Allow-Origin")
			if tt.wantAllow && got != tt.origin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.origin)
			}
			if !tt.wantAllow && got != "" {
				t.Errorf("Expected origin %q to be rejected, got %q", tt.origin, got)
			}
			if tt.wantMaxAge != "" && w.Header().Get("Access-Control-Max-Age") != tt.wantMaxAge {
				t.Errorf("Access-Control-Max-Age = %q, want %s", w.Header().Get("Access-Control-Max-Age"), tt.wantMaxAge)
			}
		})
	}
}

func TestRateLimitReloader_Limits(t *testing.T) {
	t.Parallel()

	settings := &mockSettings{rate: &models.RatelimitConfig{Rate: "2-M"}}
	reloader := NewRateLimitReloader(memory.NewStore(), settings, "", zap.NewNop(), 0)
	h := reloader.Middleware()(okHandler())

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest("GET", "/api/v1/recommendations/trending", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d status = %d, want %d", i, codes[i], want[i])
		}
	}
}

func TestRateLimitReloader_ResolveRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings *mockSettings
		want     string
	}{
		{"stored", &mockSettings{rate: &models.RatelimitConfig{Rate: "100-M"}}, "100-M"},
		{"missing", &mockSettings{}, DefaultRate},
		{"malformed", &mockSettings{rate: &models.RatelimitConfig{Rate: "lots"}}, DefaultRate},
		{"store error", &mockSettings{rateErr: errors.New("db down")}, DefaultRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewRateLimitReloader(memory.NewStore(), tt.settings, "", zap.NewNop(), 0)
			got, _, err := r.resolveRate(context.Background())
			if err != nil {
				t.Fatalf("resolveRate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("resolveRate() = %q, want %q", got, tt.want)
			}
		})
	}
}

// twoRouteRouter mounts mw on an /api/v1 subrouter serving "A" on /a and "B" on /b
func twoRouteRouter(mw mux.MiddlewareFunc) *mux.Router {
	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(mw)
	api.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("A")) }).Methods("GET")
	api.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("B")) }).Methods("GET")
	return router
}

func getBody(router http.Handler, path, remoteAddr string) (int, string) {
	req := httptest.NewRequest("GET", path, nil)
	req.RemoteAddr = remoteAddr
	req.Header.Set("Origin", "https://frontend.test")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Code, w.Body.String()
}

func TestReloaders_DispatchToOwnRoute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func(settings *mockSettings) mux.MiddlewareFunc
	}{
		{"cors", func(settings *mockSettings) mux.MiddlewareFunc {
			return NewCORSReloader(settings, "https://frontend.test", zap.NewNop(), 0).Middleware()
		}},
		{"ratelimit", func(settings *mockSettings) mux.MiddlewareFunc {
			return NewRateLimitReloader(memory.NewStore(), settings, "1000-S", zap.NewNop(), 0).Middleware()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			settings := &mockSettings{}
			router := twoRouteRouter(tt.build(settings))

			for i, path := range []string{"/api/v1/a", "/api/v1/b", "/api/v1/a", "/api/v1/b"} {
				want := path[len(path)-1:]
				code, body := getBody(router, path, "203.0.113.1:1000")
				if code != http.StatusOK || body != strings.ToUpper(want) {
					t.Errorf("request %d GET %s = %d %q, want 200 %q", i, path, code, body, strings.ToUpper(want))
				}
			}

			if calls := settings.corsCalls.Load() + settings.rateCalls.Load(); calls != 1 {
				t.Errorf("settings queried %d times, want once at construction", calls)
			}
		})
	}
}

func TestReloaders_ConcurrentRoutes(t *testing.T) {
	t.Parallel()

	settings := &mockSettings{}
	cr := NewCORSReloader(settings, "https://frontend.test", zap.NewNop(), 0)
	rl := NewRateLimitReloader(memory.NewStore(), settings, "100000-S", zap.NewNop(), 0)

	router := mux.NewRouter()
	router.Use(cr.Middleware())
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(rl.Middleware())
	api.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("A")) }).Methods("GET")
	api.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("B")) }).Methods("GET")

	var misrouted atomic.Int32
	var wg sync.WaitGroup
	for i := range 200 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path, want := "/api/v1/a", "A"
			if i%2 == 1 {
				path, want = "/api/v1/b", "B"
			}
			code, body := getBody(router, path, "203.0.113.2:1000")
			if code != http.StatusOK || body != want {
				misrouted.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if n := misrouted.Load(); n != 0 {
		t.Errorf("%d of 200 concurrent requests got the wrong response", n)
	}
}

func TestRateLimitReloader_ReloadKeepsRoutes(t *testing.T) {
	t.Parallel()

	settings := &mockSettings{rate: &models.RatelimitConfig{Rate: "1000-S"}}
	rl := NewRateLimitReloader(memory.NewStore(), settings, "", zap.NewNop(), 0)
	router := twoRouteRouter(rl.Middleware())

	if _, body := getBody(router, "/api/v1/a", "203.0.113.3:1000"); body != "A" {
		t.Fatalf("GET /a = %q, want A", body)
	}

	settings.rate = &models.RatelimitConfig{Rate: "1-M"}
	rl.load(context.Background())

	code, body := getBody(router, "/api/v1/b", "203.0.113.4:1000")
	if code != http.StatusOK || body != "B" {
		t.Errorf("GET /b after reload = %d %q, want 200 B", code, body)
	}
	if code, _ := getBody(router, "/api/v1/a", "203.0.113.4:1000"); code != http.StatusTooManyRequests {
		t.Errorf("Expected reloaded rate to apply, got status %d", code)
	}
}
