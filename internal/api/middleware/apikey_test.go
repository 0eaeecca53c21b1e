package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bjjsocial/bjjsocial/internal/api/middleware"
)

func TestParseAPIKeys(t *testing.T) {
	keys := middleware.ParseAPIKeys(" dashboard:abc , worker:def,,plainkey, empty: ")

	assert.Equal(t, middleware.APIKeys{
		"dashboard": "abc",
		"worker":    "def",
		"client4":   "plainkey",
	}, keys)
	assert.Empty(t, middleware.ParseAPIKeys(""))
}

func TestRequireAPIKey(t *testing.T) {
	var gotClient string
	handler := middleware.RequireAPIKey(middleware.APIKeys{"dashboard": "abc", "worker": "def"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotClient = middleware.GetClient(r.Context())
			w.WriteHeader(http.StatusOK)
		}),
	)

	tests := []struct {
		name   string
		header string
		want   int
		client string
	}{
		{"valid key", "Bearer def", http.StatusOK, "worker"},
		{"case insensitive scheme", "bearer abc", http.StatusOK, "dashboard"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"empty token", "Bearer ", http.StatusUnauthorized, ""},
		{"unknown key", "Bearer nope", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotClient = ""
			req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.client, gotClient)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}

func TestRequireAPIKey_NoKeysPassesThrough(t *testing.T) {
	handler := middleware.RequireAPIKey(nil)(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
}
