package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"alchemy/internal/common/metrics"
	pkgerrors "alchemy/pkg/errors"
	"alchemy/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTraceContextMiddlewareGeneratesIDs(t *testing.T) {
	router := gin.New()
	router.Use(TraceContextMiddleware())
	var fromCtx interface{}
	router.GET("/ping", func(c *gin.Context) {
		fromCtx = c.Request.Context().Value(contextkey.TraceID)
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	traceID := rec.Header().Get(traceIDHeader)
	assert.NotEmpty(t, traceID)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Equal(t, traceID, fromCtx)
}

func TestTraceContextMiddlewareKeepsIncomingTrace(t *testing.T) {
	router := gin.New()
	router.Use(TraceContextMiddleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(traceIDHeader, "trace-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", rec.Header().Get(traceIDHeader))
}

func newAuthRouter(auth *Authenticator) *gin.Engine {
	router := gin.New()
	router.Use(TraceContextMiddleware())
	router.PUT("/guarded", AuthMiddleware(auth), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(subjectContextKey))
	})
	return router
}

func TestAuthMiddleware(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Secret: "s3cret", Issuer: "alchemy", Roles: []string{"indexer"}})
	router := newAuthRouter(auth)

	do := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/guarded", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, do("").Code)
	assert.Equal(t, http.StatusUnauthorized, do("Bearer not-a-token").Code)

	token, err := auth.Sign("indexer-1", "indexer", time.Hour)
	require.NoError(t, err)
	rec := do("Bearer " + token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "indexer-1", rec.Body.String())

	viewer, err := auth.Sign("viewer-1", "viewer", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do("Bearer "+viewer).Code)
}

func TestAuthenticateExpiredAndWrongIssuer(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Secret: "s3cret", Issuer: "alchemy"})
	auth.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := auth.Sign("a", "", time.Hour)
	require.NoError(t, err)
	auth.now = time.Now

	_, err = auth.Authenticate(expired)
	assert.True(t, pkgerrors.Is(err, pkgerrors.TokenExpired))

	other := NewAuthenticator(AuthConfig{Secret: "s3cret", Issuer: "someone-else"})
	token, err := other.Sign("a", "", time.Hour)
	require.NoError(t, err)
	_, err = auth.Authenticate(token)
	assert.True(t, pkgerrors.Is(err, pkgerrors.TokenInvalid))
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.NewMetrics("mw")
	router := gin.New()
	router.Use(Metrics(m), RequestLogger())
	router.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/7", nil))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "/items/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RequestsInFlight))
}
