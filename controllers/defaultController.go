package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func GetHome(ctx *gin.Context) {
	message := `Welcome to the Farm Market API. Farmers list produce, customers buy it.

The following are the endpoints for this API:

AUTH
- POST "/auth/register" - Create a farmer or customer account
- POST "/auth/login" - Access user account
- GET "/auth/google" - Sign in with Google
- GET "/auth/google/callback" - Google sign-in callback
- PATCH "/auth/role" - Pick a role after Google sign-in
- GET "/auth/profile-status" - Check whether role setup is pending

PRODUCTS
- GET "/products" - Latest products
- GET "/products/search?q=" - Search products by name
- GET "/products/:id" - Get product by ID

CART
- GET "/cart" - Get the priced cart
- GET "/cart/count" - Number of units in the cart
- POST "/cart/items" - Add a product to the cart
- PATCH "/cart/items/:itemId" - Change a line's quantity
- DELETE "/cart/items/:itemId" - Remove a line

ORDERS
- POST "/orders" - Buy a single product
- POST "/checkout" - Pay for cart lines with Stripe
- GET "/orders" - Your orders
- PATCH "/orders/:orderId/cancel" - Cancel a pending order

FARMER
- POST "/farmer/products" - List a product
- GET "/farmer/products" - Your products
- DELETE "/farmer/products/:id" - Remove a product
- GET "/farmer/orders" - Orders for your products
- GET "/farmer/orders/recent" - Latest orders for your products
- PATCH "/farmer/orders/:orderId/status" - Update order status
- GET "/farmer/dashboard" - Product and order counts

WEBHOOKS
- POST "/webhooks/stripe" - Stripe payment events`

	ctx.JSON(http.StatusOK, gin.H{
		"message": message,
	})
}

// HealthCheck reports whether the database is reachable.
func HealthCheck(ctx *gin.Context) {
	sqlDB, err := deps.DB.DB()
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		err = sqlDB.PingContext(pingCtx)
	}
	if err != nil {
		deps.Log.Error("health check failed", zap.Error(err))
		sendJSONResponse(ctx, http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"status": "ok"})
}
