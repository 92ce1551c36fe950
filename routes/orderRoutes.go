package routes

import (
	"github.com/Kariqs/farmmarket-api/controllers"
	"github.com/Kariqs/farmmarket-api/middlewares"
	"github.com/Kariqs/farmmarket-api/models"
	"github.com/Kariqs/farmmarket-api/services"
	"github.com/gin-gonic/gin"
)

func OrderRoutes(server *gin.Engine, tokens *services.Tokens) {
	customer := server.Group("", middlewares.RequireAuth(tokens), middlewares.RequireRole(models.RoleCustomer))
	{
		customer.POST("/orders", controllers.PlaceOrder)
		customer.POST("/checkout", controllers.Checkout)
		customer.GET("/orders", controllers.GetOrders)
		customer.PATCH("/orders/:orderId/cancel", controllers.CancelOrder)
	}
}
