package controllers

import (
	"net/http"

	"github.com/Kariqs/farmmarket-api/models"
	"github.com/gin-gonic/gin"
)

const msgOrderCancelled = "order cancelled"

// PlaceOrder buys a single product directly, outside the cart.
func PlaceOrder(ctx *gin.Context) {
	session, ok := sessionOrAbort(ctx)
	if !ok {
		return
	}

	var data models.PlaceOrderData
	if err := ctx.ShouldBindJSON(&data); err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidInput)
		return
	}
	if data.Quantity == 0 {
		data.Quantity = 1
	}

	order, err := deps.Orders.PlaceOrder(ctx.Request.Context(), session.ID, data.ProductID, data.Quantity)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusCreated, gin.H{"order": order})
}

// Checkout reserves stock for the submitted cart lines and returns the hosted
// payment page URL.
func Checkout(ctx *gin.Context) {
	session, ok := sessionOrAbort(ctx)
	if !ok {
		return
	}

	var data models.CheckoutData
	if err := ctx.ShouldBindJSON(&data); err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidInput)
		return
	}

	result, err := deps.Orders.Checkout(ctx.Request.Context(), session, data.Items)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, result)
}

func GetOrders(ctx *gin.Context) {
	session, ok := sessionOrAbort(ctx)
	if !ok {
		return
	}

	orders, err := deps.Orders.ListCustomerOrders(ctx.Request.Context(), session.ID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"orders": orders})
}

func CancelOrder(ctx *gin.Context) {
	session, ok := sessionOrAbort(ctx)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(ctx, "orderId")
	if !ok {
		return
	}

	order, err := deps.Orders.CancelOrder(ctx.Request.Context(), session.ID, orderID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"message": msgOrderCancelled, "order": order})
}
