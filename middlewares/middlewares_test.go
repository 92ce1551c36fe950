package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Kariqs/farmmarket-api/models"
	"github.com/Kariqs/farmmarket-api/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func tokenFor(t *testing.T, tokens *services.Tokens, id uint, role string) string {
	t.Helper()
	user := models.User{Name: "Asha", Email: "asha@example.com", Role: role}
	user.ID = id
	raw, err := tokens.Issue(user)
	require.NoError(t, err)
	return raw
}

func sessionEcho(ctx *gin.Context) {
	session, ok := CurrentSession(ctx)
	ctx.JSON(http.StatusOK, gin.H{"id": session.ID, "authenticated": ok})
}

func perform(router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	tokens := services.NewTokens("secret", time.Hour)
	router := gin.New()
	router.GET("/me", RequireAuth(tokens), sessionEcho)

	w := perform(router, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)

	w = perform(router, http.MethodGet, "/me", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(router, http.MethodGet, "/me", tokenFor(t, tokens, 7, models.RoleCustomer))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":7,"authenticated":true}`, w.Body.String())
}

func TestOptionalAuth(t *testing.T) {
	tokens := services.NewTokens("secret", time.Hour)
	router := gin.New()
	router.GET("/count", OptionalAuth(tokens), sessionEcho)

	w := perform(router, http.MethodGet, "/count", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":0,"authenticated":false}`, w.Body.String())

	w = perform(router, http.MethodGet, "/count", "expired-or-bad")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":0,"authenticated":false}`, w.Body.String())

	w = perform(router, http.MethodGet, "/count", tokenFor(t, tokens, 3, models.RoleCustomer))
	assert.JSONEq(t, `{"id":3,"authenticated":true}`, w.Body.String())
}

func TestRequireRole(t *testing.T) {
	tokens := services.NewTokens("secret", time.Hour)
	router := gin.New()
	router.GET("/farmer", RequireAuth(tokens), RequireRole(models.RoleFarmer), sessionEcho)
	router.GET("/no-auth", RequireRole(models.RoleFarmer), sessionEcho)

	w := perform(router, http.MethodGet, "/farmer", tokenFor(t, tokens, 1, models.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = perform(router, http.MethodGet, "/farmer", tokenFor(t, tokens, 2, models.RoleFarmer))
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(router, http.MethodGet, "/no-auth", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(rate.Every(time.Hour), 2)
	router := gin.New()
	router.GET("/login", limiter.Limit(), func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, perform(router, http.MethodGet, "/login", "").Code)
	assert.Equal(t, http.StatusNoContent, perform(router, http.MethodGet, "/login", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(router, http.MethodGet, "/login", "").Code)
}

func TestRateLimiter_EvictsIdleVisitors(t *testing.T) {
	limiter := NewRateLimiter(rate.Every(time.Hour), 1)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	first := limiter.getLimiter("10.0.0.1")
	assert.Same(t, first, limiter.getLimiter("10.0.0.1"))

	now = now.Add(visitorIdleTimeout + time.Second)
	limiter.getLimiter("10.0.0.2")
	assert.NotSame(t, first, limiter.getLimiter("10.0.0.1"))
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tokens := services.NewTokens("secret", time.Hour)
	router := gin.New()
	router.Use(RequestLogger(zap.New(core)))
	router.GET("/orders/:id", OptionalAuth(tokens), func(ctx *gin.Context) { ctx.Status(http.StatusNotFound) })

	perform(router, http.MethodGet, "/orders/5", tokenFor(t, tokens, 9, models.RoleCustomer))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/orders/:id", fields["path"])
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])
	assert.Equal(t, uint64(9), fields["userId"])
}
