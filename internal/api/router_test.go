package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjjsocial/bjjsocial/internal/api"
	"github.com/bjjsocial/bjjsocial/internal/api/handler"
	"github.com/bjjsocial/bjjsocial/internal/api/middleware"
	"github.com/bjjsocial/bjjsocial/internal/api/models"
	"github.com/bjjsocial/bjjsocial/internal/api/response"
	"github.com/bjjsocial/bjjsocial/internal/community"
	"github.com/bjjsocial/bjjsocial/internal/exportcache"
	"github.com/bjjsocial/bjjsocial/internal/exporter"
	"github.com/bjjsocial/bjjsocial/internal/sink"
)

func newTestRouter(t *testing.T, modify ...func(*api.RouterConfig)) http.Handler {
	t.Helper()

	e, err := exporter.New(exporter.Config{
		Sink:       sink.NewMemory(),
		Logger:     zerolog.Nop(),
		Location:   time.UTC,
		BatchDelay: -1,
	})
	require.NoError(t, err)

	src := community.NewInMemorySource()
	src.PutUser(community.User{ID: "u1", FirstName: "Ana", LastName: "Silva", School: "Atos"})

	cfg := api.RouterConfig{
		Version:   "test",
		BuildTime: "2024-01-01T00:00:00Z",
		Logger:    zerolog.New(io.Discard),
		Export: handler.ExportHandlerConfig{
			Exporter: e,
			Source:   src,
			Cache:    exportcache.NewMemory(),
			Storage:  sink.NewMemory(),
		},
	}
	for _, m := range modify {
		m(&cfg)
	}
	return api.NewRouter(cfg)
}

func request(h http.Handler, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t)

	rec := request(router, http.MethodGet, "/v1/ops/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("X-Request-Id"), "req_"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
	assert.Equal(t, "2024-01-01T00:00:00Z", health.Details["buildTime"])
}

func TestRouter_HealthPrefersOpsVersion(t *testing.T) {
	router := newTestRouter(t, func(c *api.RouterConfig) {
		c.Ops.Version = "1.4.2"
	})

	rec := request(router, http.MethodGet, "/v1/ops/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "1.4.2", health.Details["version"])
	assert.Equal(t, "2024-01-01T00:00:00Z", health.Details["buildTime"])
}

func TestRouter_ExportDocumentHeaders(t *testing.T) {
	router := newTestRouter(t)

	rec := request(router, http.MethodGet, "/v1/exports/users/u1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, exporter.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, response.DocumentCSP, rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "attachment; filename=Ana_Silva_profile.html", rec.Header().Get("Content-Disposition"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRouter_ProblemsUseStrictCSP(t *testing.T) {
	router := newTestRouter(t)

	rec := request(router, http.MethodGet, "/v1/exports/users/nobody", "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", rec.Header().Get("Content-Security-Policy"))
}

func TestRouter_PostRequiresJSON(t *testing.T) {
	router := newTestRouter(t)

	rec := request(router, http.MethodPost, "/v1/exports/custom", "title=x", http.Header{
		"Content-Type": {"application/x-www-form-urlencoded"},
	})
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = request(router, http.MethodPost, "/v1/exports/custom", `{"title":"Hello"}`, http.Header{
		"Content-Type": {"application/json"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=hello.html", rec.Header().Get("Content-Disposition"))
}

func TestRouter_APIKeyGuards(t *testing.T) {
	router := newTestRouter(t, func(c *api.RouterConfig) {
		c.APIKeys = middleware.APIKeys{"ops": "s3cret"}
	})
	jsonHeader := http.Header{"Content-Type": {"application/json"}}
	batch := `{"items":[{"type":"custom","title":"a"}]}`

	assert.Equal(t, http.StatusUnauthorized, request(router, http.MethodGet, "/v1/ops/status", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, request(router, http.MethodPost, "/v1/exports/batch", batch, jsonHeader).Code)

	authed := http.Header{"Authorization": {"Bearer s3cret"}, "Content-Type": {"application/json"}}
	assert.Equal(t, http.StatusOK, request(router, http.MethodGet, "/v1/ops/status", "", authed).Code)
	assert.Equal(t, http.StatusOK, request(router, http.MethodPost, "/v1/exports/batch", batch, authed).Code)

	// Health stays public
	assert.Equal(t, http.StatusOK, request(router, http.MethodGet, "/v1/ops/health", "", nil).Code)
}

func TestRouter_RequireTLS(t *testing.T) {
	router := newTestRouter(t, func(c *api.RouterConfig) { c.RequireTLS = true })

	rec := request(router, http.MethodGet, "/v1/ops/health", "", http.Header{"X-Forwarded-Proto": {"http"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = request(router, http.MethodGet, "/v1/ops/health", "", http.Header{"X-Forwarded-Proto": {"https"}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	router := newTestRouter(t)

	rec := request(router, http.MethodGet, "/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = request(router, http.MethodDelete, "/v1/exports/schools/rankings", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRouter_BatchRateLimit(t *testing.T) {
	router := newTestRouter(t)
	header := http.Header{"Content-Type": {"application/json"}}
	batch := `{"items":[{"type":"school-rankings"}]}`

	for i := 0; i < middleware.BatchRateLimit.RequestLimit; i++ {
		rec := request(router, http.MethodPost, "/v1/exports/batch", batch, header)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := request(router, http.MethodPost, "/v1/exports/batch", batch, header)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
