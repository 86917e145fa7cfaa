package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/agencypulse/crosssell-intelligence/internal/testutil"
)

func loggedRouter(log *testutil.MockLogger) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(log, prometheus.NewMetrics()))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return r
}

func serve(r *gin.Engine, path string) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
}

func TestRequestLogger_LevelsTrackStatus(t *testing.T) {
	log := testutil.NewMockLogger()
	r := loggedRouter(log)

	serve(r, "/ok")
	assert.True(t, log.HasMessage("info", "request served"))

	serve(r, "/missing")
	assert.True(t, log.HasMessage("warn", "request rejected"))

	serve(r, "/boom")
	assert.True(t, log.HasMessage("error", "request failed"))
}

func TestRequestLogger_OneEntryPerRequest(t *testing.T) {
	log := testutil.NewMockLogger()
	r := loggedRouter(log)

	for i := 0; i < 5; i++ {
		serve(r, "/ok")
	}
	assert.Len(t, log.Messages(), 5)
}
