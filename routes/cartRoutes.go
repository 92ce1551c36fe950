package routes

import (
	"github.com/Kariqs/farmmarket-api/controllers"
	"github.com/Kariqs/farmmarket-api/middlewares"
	"github.com/Kariqs/farmmarket-api/models"
	"github.com/Kariqs/farmmarket-api/services"
	"github.com/gin-gonic/gin"
)

func CartRoutes(server *gin.Engine, tokens *services.Tokens) {
	server.GET("/cart/count", middlewares.OptionalAuth(tokens), controllers.GetCartCount)

	cart := server.Group("/cart", middlewares.RequireAuth(tokens), middlewares.RequireRole(models.RoleCustomer))
	{
		cart.GET("", controllers.GetCart)
		cart.POST("/items", controllers.AddCartItem)
		cart.PATCH("/items/:itemId", controllers.UpdateCartItem)
		cart.DELETE("/items/:itemId", controllers.RemoveCartItem)
	}
}
