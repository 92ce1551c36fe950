package routes

import (
	"github.com/Kariqs/farmmarket-api/controllers"
	"github.com/Kariqs/farmmarket-api/middlewares"
	"github.com/Kariqs/farmmarket-api/models"
	"github.com/Kariqs/farmmarket-api/services"
	"github.com/gin-gonic/gin"
)

func FarmerRoutes(server *gin.Engine, tokens *services.Tokens) {
	farmer := server.Group("/farmer", middlewares.RequireAuth(tokens), middlewares.RequireRole(models.RoleFarmer))
	{
		farmer.POST("/products", controllers.CreateProduct)
		farmer.GET("/products", controllers.GetFarmerProducts)
		farmer.DELETE("/products/:id", controllers.DeleteProduct)
		farmer.GET("/orders", controllers.GetFarmerOrders)
		farmer.GET("/orders/recent", controllers.GetRecentFarmerOrders)
		farmer.PATCH("/orders/:orderId/status", controllers.UpdateOrderStatus)
		farmer.GET("/dashboard", controllers.GetFarmerDashboard)
	}
}
