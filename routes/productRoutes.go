package routes

import (
	"github.com/Kariqs/farmmarket-api/controllers"
	"github.com/gin-gonic/gin"
)

func ProductRoutes(server *gin.Engine) {
	server.GET("/products", controllers.GetLatestProducts)
	server.GET("/products/search", controllers.SearchProducts)
	server.GET("/products/:id", controllers.GetProduct)
}
