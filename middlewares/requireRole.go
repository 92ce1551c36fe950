package middlewares

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// RequireRole must run after RequireAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		session, exists := CurrentSession(ctx)
		if !exists {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found in context"})
			return
		}

		if !slices.Contains(roles, session.Role) {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": session.Role + " accounts cannot access this resource"})
			return
		}

		ctx.Next()
	}
}
