package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func newRouter(limiter *IPRateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zerolog.Nop()), IPRateLimitMiddleware(limiter, zerolog.Nop()))
	r.GET("/api/v1/asteroids", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r http.Handler, path, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = ip + ":1234"
	r.ServeHTTP(w, req)
	return w
}

func TestIPRateLimitMiddleware(t *testing.T) {
	r := newRouter(NewIPRateLimiter(rate.Every(time.Hour), 2))

	assert.Equal(t, http.StatusOK, get(r, "/api/v1/asteroids", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, get(r, "/api/v1/asteroids", "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/api/v1/asteroids", "10.0.0.1").Code)

	assert.Equal(t, http.StatusOK, get(r, "/api/v1/asteroids", "10.0.0.2").Code, "budgets are per IP")
	assert.Equal(t, http.StatusOK, get(r, "/api/v1/health", "10.0.0.1").Code, "health is not limited")
}

func TestIPRateLimiter_Prune(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewIPRateLimiter(rate.Limit(1), 1)
	limiter.clock = func() time.Time { return now }

	limiter.GetLimiter("a")
	now = now.Add(idleLimiterTTL / 2)
	limiter.GetLimiter("b")
	now = now.Add(idleLimiterTTL/2 + time.Second)

	assert.Equal(t, 1, limiter.Prune())
	assert.Equal(t, 1, limiter.Len())
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	r := newRouter(NewIPRateLimiter(rate.Inf, 1))

	w := get(r, "/api/v1/health", "10.0.0.1")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set(RequestIDHeader, "given-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "given-id", w.Header().Get(RequestIDHeader))
}
