package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"alchemy/internal/common/cache"
	pkgerrors "alchemy/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return NewRateLimiter(c, time.Second), mr
}

func TestRateLimiterFixedWindow(t *testing.T) {
	limiter, mr := newLimiter(t)
	ctx := context.Background()

	require.NoError(t, limiter.Allow(ctx, "k", 2, time.Minute))
	require.NoError(t, limiter.Allow(ctx, "k", 2, time.Minute))
	err := limiter.Allow(ctx, "k", 2, time.Minute)
	assert.True(t, pkgerrors.Is(err, pkgerrors.TooManyRequests))

	mr.FastForward(time.Minute + time.Second)
	assert.NoError(t, limiter.Allow(ctx, "k", 2, time.Minute))
}

func TestRateLimiterRestoresMissingExpiry(t *testing.T) {
	limiter, mr := newLimiter(t)
	require.NoError(t, mr.Set("k", "1"))

	require.NoError(t, limiter.Allow(context.Background(), "k", 5, time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("k"))
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter, _ := newLimiter(t)
	router := gin.New()
	router.GET("/list", RateLimitMiddleware(limiter, "list", RateLimitPolicy{Window: time.Minute, IPMax: 1}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/list", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/list", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	limiter, mr := newLimiter(t)
	mr.Close()
	router := gin.New()
	router.GET("/list", RateLimitMiddleware(limiter, "list", RateLimitPolicy{Window: time.Minute, IPMax: 1}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/list", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(CORSMiddleware(CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://dash.example"},
		AllowedMethods: []string{"GET", "PUT"},
		MaxAge:         "600",
	}))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://dash.example")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://dash.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET,PUT", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
