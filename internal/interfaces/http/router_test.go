package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appopp "github.com/agencypulse/crosssell-intelligence/internal/application/opportunity"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/agencypulse/crosssell-intelligence/internal/interfaces/http/handlers"
	"github.com/agencypulse/crosssell-intelligence/internal/interfaces/http/middleware"
	"github.com/agencypulse/crosssell-intelligence/internal/testutil"
)

type okChecker struct{}

func (okChecker) HealthCheck(ctx context.Context) error { return nil }

type downChecker struct{}

func (downChecker) HealthCheck(ctx context.Context) error {
	return context.DeadlineExceeded
}

func testRouter(checkers map[string]handlers.Checker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	repo := testutil.NewFakeOpportunityRepo()
	return NewRouter(RouterConfig{
		OpportunityHandler: handlers.NewOpportunityHandler(
			appopp.NewService(repo, testutil.NewMockLogger())),
		HealthHandler: handlers.NewHealthHandler(checkers),
		Logger:        testutil.NewMockLogger(),
		Metrics:       prometheus.NewMetrics(),
		CORS:          middleware.DefaultCORSConfig(),
	})
}

func TestRouter_Probes(t *testing.T) {
	r := testRouter(map[string]handlers.Checker{"postgres": okChecker{}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"postgres":"ok"`)
}

func TestRouter_ReadyzDegraded(t *testing.T) {
	r := testRouter(map[string]handlers.Checker{
		"postgres": okChecker{},
		"redis":    downChecker{},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}

func TestRouter_Metrics(t *testing.T) {
	r := testRouter(nil)

	// Drive one request through so the HTTP counters exist.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/opportunities", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "crosssell_http_requests_total"))
}

func TestRouter_UnknownRoute(t *testing.T) {
	r := testRouter(nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
