package routes

import (
	"github.com/Kariqs/farmmarket-api/controllers"
	"github.com/gin-gonic/gin"
)

// WebhookRoutes are unauthenticated; events are verified by signature.
func WebhookRoutes(server *gin.Engine) {
	server.POST("/webhooks/stripe", controllers.StripeWebhook)
}
