package routes

import (
	"github.com/Kariqs/farmmarket-api/controllers"
	"github.com/Kariqs/farmmarket-api/middlewares"
	"github.com/Kariqs/farmmarket-api/services"
	"github.com/gin-gonic/gin"
)

func AuthRoutes(server *gin.Engine, tokens *services.Tokens, limiter *middlewares.RateLimiter) {
	auth := server.Group("/auth")
	{
		auth.POST("/register", limiter.Limit(), controllers.Register)
		auth.POST("/login", limiter.Limit(), controllers.Login)
		auth.GET("/google", controllers.GoogleLogin)
		auth.GET("/google/callback", controllers.GoogleCallback)
		auth.PATCH("/role", middlewares.RequireAuth(tokens), controllers.UpdateRole)
		auth.GET("/profile-status", middlewares.RequireAuth(tokens), controllers.GetProfileStatus)
	}
}
