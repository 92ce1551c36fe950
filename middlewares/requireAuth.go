package middlewares

import (
	"net/http"
	"strings"

	"github.com/Kariqs/farmmarket-api/models"
	"github.com/Kariqs/farmmarket-api/services"
	"github.com/gin-gonic/gin"
)

const sessionKey = "session"

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(tokens *services.Tokens) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		raw := bearerToken(ctx)
		if raw == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		session, err := tokens.Parse(raw)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		ctx.Set(sessionKey, session)
		ctx.Next()
	}
}

// OptionalAuth attaches the session when a valid token is present and lets
// anonymous requests through.
func OptionalAuth(tokens *services.Tokens) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if raw := bearerToken(ctx); raw != "" {
			if session, err := tokens.Parse(raw); err == nil {
				ctx.Set(sessionKey, session)
			}
		}
		ctx.Next()
	}
}

// CurrentSession returns the session set by RequireAuth or OptionalAuth.
func CurrentSession(ctx *gin.Context) (models.Session, bool) {
	value, exists := ctx.Get(sessionKey)
	if !exists {
		return models.Session{}, false
	}
	session, ok := value.(models.Session)
	return session, ok
}

func bearerToken(ctx *gin.Context) string {
	header := ctx.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
