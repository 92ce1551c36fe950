package routes

import (
	"github.com/Kariqs/farmmarket-api/controllers"
	"github.com/gin-gonic/gin"
)

func DefaultRoutes(server *gin.Engine) {
	server.GET("/", controllers.GetHome)
	server.GET("/healthz", controllers.HealthCheck)
}
