package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		method    string
		path      string
		status    int
		wantRoute string
		wantLevel zapcore.Level
	}{
		{"matched route", "GET", "/api/v1/products/abc/similar", http.StatusOK, "/api/v1/products/{id}/similar", zapcore.InfoLevel},
		{"accepted", "POST", "/api/v1/interactions", http.StatusAccepted, "/api/v1/interactions", zapcore.InfoLevel},
		{"server error", "GET", "/boom", http.StatusInternalServerError, "/boom", zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.DebugLevel)
			handler := func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			}
			router := mux.NewRouter()
			router.Use(Logging(zap.New(core)))
			router.HandleFunc("/api/v1/products/{id}/similar", handler)
			router.HandleFunc("/api/v1/interactions", handler)
			router.HandleFunc("/boom", handler)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("Expected 1 access log entry, got %d", len(entries))
			}
			entry := entries[0]
			if entry.Level != tt.wantLevel {
				t.Errorf("level = %v, want %v", entry.Level, tt.wantLevel)
			}
			fields := entry.ContextMap()
			if fields["route"] != tt.wantRoute {
				t.Errorf("route = %v, want %s", fields["route"], tt.wantRoute)
			}
			if fields["bytes"] != int64(4) {
				t.Errorf("bytes = %v, want 4", fields["bytes"])
			}
		})
	}
}

func TestRouteLabel_Unmatched(t *testing.T) {
	t.Parallel()
	if got := routeLabel(httptest.NewRequest("GET", "/nowhere", nil)); got != "unmatched" {
		t.Errorf("routeLabel() = %q, want unmatched", got)
	}
}

func TestAudit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    int
		wantEvent string
	}{
		{http.StatusUnauthorized, "security_event"},
		{http.StatusForbidden, "security_event"},
		{http.StatusTooManyRequests, "rate_limit_violation"},
		{http.StatusOK, ""},
		{http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.DebugLevel)
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			Audit(zap.New(core))(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/recommendations", nil))

			if tt.wantEvent == "" {
				if logs.Len() != 0 {
					t.Errorf("Expected no audit entries, got %d", logs.Len())
				}
				return
			}
			if logs.FilterMessage(tt.wantEvent).Len() != 1 {
				t.Errorf("Expected one %s entry, got %v", tt.wantEvent, logs.All())
			}
		})
	}
}
