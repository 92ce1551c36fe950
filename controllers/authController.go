package controllers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/Kariqs/farmmarket-api/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600

	msgInvalidOAuthState = "invalid or expired sign-in attempt, try again"
	msgMissingOAuthCode  = "missing authorization code"
	msgRoleUpdated       = "role updated successfully"
)

// Register handles credential sign-up
func Register(ctx *gin.Context) {
	var data models.RegisterData
	if err := ctx.ShouldBindJSON(&data); err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidInput)
		return
	}

	user, err := deps.Users.Register(ctx.Request.Context(), data)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	token, err := deps.Users.IssueToken(*user)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	sendJSONResponse(ctx, http.StatusCreated, gin.H{"user": user, "token": token})
}

// Login handles credential sign-in
func Login(ctx *gin.Context) {
	var data models.LoginData
	if err := ctx.ShouldBindJSON(&data); err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidInput)
		return
	}

	user, err := deps.Users.Authenticate(ctx.Request.Context(), data.Email, data.Password)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	token, err := deps.Users.IssueToken(*user)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"user": user, "token": token})
}

// GoogleLogin redirects to Google's consent screen.
func GoogleLogin(ctx *gin.Context) {
	if deps.Google == nil {
		sendErrorResponse(ctx, http.StatusNotFound, msgOAuthDisabled)
		return
	}

	state := uuid.NewString()
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(oauthStateCookie, state, oauthStateMaxAge, "/auth/google", "", ctx.Request.TLS != nil, true)
	ctx.Redirect(http.StatusFound, deps.Google.AuthCodeURL(state))
}

// GoogleCallback finishes the OAuth flow and hands a token to the frontend.
// Users created here still need to pick a role.
func GoogleCallback(ctx *gin.Context) {
	if deps.Google == nil {
		sendErrorResponse(ctx, http.StatusNotFound, msgOAuthDisabled)
		return
	}

	expected, err := ctx.Cookie(oauthStateCookie)
	if err != nil || expected == "" || expected != ctx.Query("state") {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidOAuthState)
		return
	}
	ctx.SetCookie(oauthStateCookie, "", -1, "/auth/google", "", ctx.Request.TLS != nil, true)

	code := ctx.Query("code")
	if code == "" {
		sendErrorResponse(ctx, http.StatusBadRequest, msgMissingOAuthCode)
		return
	}

	profile, err := deps.Google.Profile(ctx.Request.Context(), code)
	if err != nil {
		deps.Log.Warn("google sign-in failed", zap.Error(err))
		sendErrorResponse(ctx, http.StatusBadGateway, msgUpstreamUnavailable)
		return
	}

	user, err := deps.Users.ProvisionOAuthUser(ctx.Request.Context(), profile.Email, profile.Name, profile.Picture)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	token, err := deps.Users.IssueToken(*user)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	query := url.Values{}
	query.Set("token", token)
	query.Set("needsSetup", strconv.FormatBool(user.SetupStatus == models.SetupPendingRoleSelection))
	ctx.Redirect(http.StatusFound, deps.PublicURL+"/auth/callback?"+query.Encode())
}

// UpdateRole completes the one-time role selection of an OAuth sign-up.
func UpdateRole(ctx *gin.Context) {
	session, ok := sessionOrAbort(ctx)
	if !ok {
		return
	}

	var data models.RoleSetupData
	if err := ctx.ShouldBindJSON(&data); err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidInput)
		return
	}

	user, token, err := deps.Users.CompleteRoleSetup(ctx.Request.Context(), session.ID, data)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"message": msgRoleUpdated, "user": user, "token": token})
}

func GetProfileStatus(ctx *gin.Context) {
	session, ok := sessionOrAbort(ctx)
	if !ok {
		return
	}

	status, err := deps.Users.ProfileStatus(ctx.Request.Context(), session.ID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, status)
}
