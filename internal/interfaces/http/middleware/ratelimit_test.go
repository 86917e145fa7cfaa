package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func limitedRouter(rps float64, burst int) *gin.Engine {
	r := gin.New()
	r.Use(RateLimit(rps, burst))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BurstExhaustion(t *testing.T) {
	// Tiny refill rate so the burst does not replenish mid-test.
	r := limitedRouter(0.001, 3)

	for i := 0; i < 3; i++ {
		w := get(r, "10.0.0.1")
		assert.Equal(t, http.StatusOK, w.Code, "request %d within burst", i)
	}

	w := get(r, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_KeysPerClient(t *testing.T) {
	r := limitedRouter(0.001, 1)

	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.2").Code, "other clients keep their own bucket")
}

func TestRateLimit_DisabledWhenRateZero(t *testing.T) {
	r := limitedRouter(0, 0)

	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusOK, get(r, "10.0.0.1").Code)
	}
}

func TestTokenBucketLimiter_Allow(t *testing.T) {
	l := NewTokenBucketLimiter(1, 2, 0)

	ok, remaining := l.Allow("k")
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)

	ok, _ = l.Allow("k")
	assert.True(t, ok)

	ok, remaining = l.Allow("k")
	assert.False(t, ok)
	assert.Equal(t, 0, remaining)
}
