package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Stripe rejects webhook payloads above this size.
const maxWebhookBody = 65536

// StripeWebhook verifies and applies a Stripe event. The body must reach the
// verifier byte for byte, so it is read raw rather than bound.
func StripeWebhook(ctx *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWebhookBody))
	if err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidInput)
		return
	}

	if err := deps.Webhooks.HandleEvent(ctx.Request.Context(), payload, ctx.GetHeader("Stripe-Signature")); err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"received": true})
}
