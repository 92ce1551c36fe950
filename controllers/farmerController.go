package controllers

import (
	"net/http"
	"strings"

	"github.com/Kariqs/farmmarket-api/models"
	"github.com/Kariqs/farmmarket-api/services"
	"github.com/gin-gonic/gin"
)

// GetFarmerOrders lists every order containing one of the farmer's products.
func GetFarmerOrders(ctx *gin.Context) {
	session, ok := sessionOrAbort(ctx)
	if !ok {
		return
	}

	orders, err := deps.Orders.ListFarmerOrders(ctx.Request.Context(), session.ID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"orders": orders})
}

func GetRecentFarmerOrders(ctx *gin.Context) {
	session, ok := sessionOrAbort(ctx)
	if !ok {
		return
	}

	orders, err := deps.Orders.FarmerRecentOrders(ctx.Request.Context(), session.ID, services.FarmerRecentOrdersLimit)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"orders": orders})
}

// UpdateOrderStatus accepts the new status as JSON or as a form field.
func UpdateOrderStatus(ctx *gin.Context) {
	session, ok := sessionOrAbort(ctx)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(ctx, "orderId")
	if !ok {
		return
	}

	var data models.OrderStatusData
	if err := ctx.ShouldBind(&data); err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidInput)
		return
	}

	order, err := deps.Orders.UpdateOrderStatus(ctx.Request.Context(), session.ID, orderID, strings.ToUpper(strings.TrimSpace(data.Status)))
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"ok": true, "order": order})
}

func GetFarmerDashboard(ctx *gin.Context) {
	session, ok := sessionOrAbort(ctx)
	if !ok {
		return
	}

	dashboard, err := deps.Orders.FarmerDashboard(ctx.Request.Context(), session.ID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, dashboard)
}
