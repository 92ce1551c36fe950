package controllers

import (
	"net/http"

	"github.com/Kariqs/farmmarket-api/middlewares"
	"github.com/Kariqs/farmmarket-api/models"
	"github.com/gin-gonic/gin"
)

const (
	msgCartItemAdded   = "item added to cart"
	msgCartItemUpdated = "cart updated"
	msgCartItemRemoved = "item removed from cart"
)

func GetCart(ctx *gin.Context) {
	session, ok := sessionOrAbort(ctx)
	if !ok {
		return
	}

	cart, err := deps.Carts.GetCart(ctx.Request.Context(), session.ID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, cart)
}

// GetCartCount reports the number of units in the cart; anonymous callers get 0.
func GetCartCount(ctx *gin.Context) {
	session, _ := middlewares.CurrentSession(ctx)

	count, err := deps.Carts.GetCartCount(ctx.Request.Context(), session.ID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"count": count})
}

func AddCartItem(ctx *gin.Context) {
	session, ok := sessionOrAbort(ctx)
	if !ok {
		return
	}

	var data models.AddCartItemData
	if err := ctx.ShouldBindJSON(&data); err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidInput)
		return
	}
	if data.Quantity == 0 {
		data.Quantity = 1
	}

	if err := deps.Carts.AddItem(ctx.Request.Context(), session.ID, data.ProductID, data.Quantity); err != nil {
		handleServiceError(ctx, err)
		return
	}

	count, err := deps.Carts.GetCartCount(ctx.Request.Context(), session.ID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusCreated, gin.H{"message": msgCartItemAdded, "count": count})
}

// UpdateCartItem sets a line's quantity; anything below 1 removes the line.
func UpdateCartItem(ctx *gin.Context) {
	session, ok := sessionOrAbort(ctx)
	if !ok {
		return
	}
	itemID, ok := parseIDParam(ctx, "itemId")
	if !ok {
		return
	}

	var data models.UpdateCartItemData
	if err := ctx.ShouldBindJSON(&data); err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidInput)
		return
	}

	if err := deps.Carts.UpdateItem(ctx.Request.Context(), session.ID, itemID, data.Quantity); err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"message": msgCartItemUpdated})
}

func RemoveCartItem(ctx *gin.Context) {
	session, ok := sessionOrAbort(ctx)
	if !ok {
		return
	}
	itemID, ok := parseIDParam(ctx, "itemId")
	if !ok {
		return
	}

	if err := deps.Carts.RemoveItem(ctx.Request.Context(), session.ID, itemID); err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"message": msgCartItemRemoved})
}
