package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `cooarq_http_requests_total{code="418",route="/test"} 1`)
	assert.Contains(t, body, `cooarq_http_request_duration_seconds_bucket{route="/test"`)
}

func TestAuthAndBackendCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.AuthEvent("signed_in")
	metrics.AuthEvent("signed_in")
	metrics.AuthEvent("signed_out")
	metrics.BackendFailure("sign in", "invalid_credentials")

	body := scrape(t, metrics)
	assert.Contains(t, body, `cooarq_auth_events_total{event="signed_in"} 2`)
	assert.Contains(t, body, `cooarq_auth_events_total{event="signed_out"} 1`)
	assert.Contains(t, body, `cooarq_backend_failures_total{kind="invalid_credentials",op="sign in"} 1`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AuthEvent("signed_in")
	m.BackendFailure("op", "network")
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(next))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain"))
}
