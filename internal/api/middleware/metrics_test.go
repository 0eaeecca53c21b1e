package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/bjjsocial/bjjsocial/internal/api/middleware"
)

// withMeterReader installs a manual reader on the global meter provider for
// the duration of the test.
func withMeterReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return reader
}

func collectSum(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Sum[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok, "metric %s is not an int64 sum", name)
				return sum
			}
		}
	}
	return metricdata.Sum[int64]{}
}

func TestMetrics_PassesResponseThrough(t *testing.T) {
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"implicit ok", 0, "<html></html>"},
		{"bad request", http.StatusBadRequest, `{"title":"Validation error"}`},
		{"server error", http.StatusInternalServerError, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				_, _ = w.Write([]byte(tt.body))
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/exports/batch", http.NoBody))

			want := tt.status
			if want == 0 {
				want = http.StatusOK
			}
			assert.Equal(t, want, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
		})
	}
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	reader := withMeterReader(t)
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Get("/v1/exports/schools/{school}/leaderboard", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, school := range []string{"atos", "alliance"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/exports/schools/"+school+"/leaderboard", http.NoBody)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	total := collectSum(t, reader, "http.server.request.total")
	require.Len(t, total.DataPoints, 1)
	assert.Equal(t, int64(2), total.DataPoints[0].Value)
	route, ok := total.DataPoints[0].Attributes.Value("http.route")
	require.True(t, ok)
	assert.Equal(t, "/v1/exports/schools/{school}/leaderboard", route.AsString())
}

func TestMetrics_CountsServedExports(t *testing.T) {
	reader := withMeterReader(t)
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Get("/v1/exports/users/{userId}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "userId") == "missing" {
			w.Header().Set("Content-Disposition", "attachment; filename=x.html")
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Disposition", "attachment; filename=Ana_Silva_profile.html")
		w.Header().Set("X-Export-Cache", "HIT")
		_, _ = w.Write([]byte("<html></html>"))
	})
	r.Get("/v1/ops/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	for _, path := range []string{"/v1/exports/users/u1", "/v1/exports/users/u2", "/v1/exports/users/missing", "/v1/ops/health"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, http.NoBody))
	}

	served := collectSum(t, reader, "export.http.served")
	require.Len(t, served.DataPoints, 1)
	dp := served.DataPoints[0]
	assert.Equal(t, int64(2), dp.Value)
	cache, _ := dp.Attributes.Value("export.cache")
	assert.Equal(t, "HIT", cache.AsString())
}
