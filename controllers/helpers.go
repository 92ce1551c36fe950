package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Kariqs/farmmarket-api/middlewares"
	"github.com/Kariqs/farmmarket-api/models"
	"github.com/Kariqs/farmmarket-api/services"
	"github.com/Kariqs/farmmarket-api/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// Standard response messages
	msgInvalidInput        = "invalid input"
	msgInvalidID           = "invalid id"
	msgUnauthorized        = "you must be signed in"
	msgInternalServerError = "Internal server error"
	msgUpstreamUnavailable = "upstream service unavailable, try again later"
	msgOAuthDisabled       = "google sign-in is not configured"
)

// OAuthProvider is the slice of the Google client the auth handlers use.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Profile(ctx context.Context, code string) (utils.GoogleProfile, error)
}

// Dependencies are the services the handlers dispatch to.
type Dependencies struct {
	DB        *gorm.DB
	Users     *services.UserService
	Carts     *services.CartService
	Orders    *services.OrderService
	Products  *services.ProductService
	Webhooks  *services.WebhookService
	Google    OAuthProvider
	PublicURL string
	Log       *zap.Logger
}

var deps Dependencies

// Setup installs the handler dependencies. It must run before routes serve.
func Setup(d Dependencies) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	deps = d
}

func sendJSONResponse(ctx *gin.Context, status int, data any) {
	ctx.JSON(status, data)
}

func sendErrorResponse(ctx *gin.Context, status int, message string) {
	sendJSONResponse(ctx, status, gin.H{"error": message})
}

// handleServiceError maps service sentinels onto HTTP statuses. Anything
// unrecognised is logged and reported as a generic 500.
func handleServiceError(ctx *gin.Context, err error) {
	_ = ctx.Error(err)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrOutOfStock),
		errors.Is(err, services.ErrInsufficientStock):
		status = http.StatusConflict
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrBadRequest),
		errors.Is(err, services.ErrSignature):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrUpstream):
		status = http.StatusBadGateway
	}

	switch status {
	case http.StatusInternalServerError:
		deps.Log.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		sendErrorResponse(ctx, status, msgInternalServerError)
	case http.StatusBadGateway:
		deps.Log.Warn("upstream failure", zap.String("path", ctx.FullPath()), zap.Error(err))
		sendErrorResponse(ctx, status, msgUpstreamUnavailable)
	default:
		sendErrorResponse(ctx, status, err.Error())
	}
}

func parseIDParam(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidID)
		return 0, false
	}
	return uint(id), true
}

// sessionOrAbort returns the caller's session, writing a 401 when absent.
func sessionOrAbort(ctx *gin.Context) (models.Session, bool) {
	session, ok := middlewares.CurrentSession(ctx)
	if !ok {
		sendErrorResponse(ctx, http.StatusUnauthorized, msgUnauthorized)
		return models.Session{}, false
	}
	return session, true
}
