package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/repository"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/service"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/identity"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/middleware"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/token"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600
)

// AuthHandler handles HTTP requests for authentication
type AuthHandler struct {
	service       service.AuthService
	external      identity.ExternalProvider
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(
	service service.AuthService,
	external identity.ExternalProvider,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		service:       service,
		external:      external,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// Request/Response DTOs
type SignupRequest struct {
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=6"`
	Name     *string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

type AuthResponse struct {
	UserID    string `json:"user_id"`
	Access    string `json:"access"`
	Refresh   string `json:"refresh"`
	JTI       string `json:"jti"`
	ExpiresIn int64  `json:"expires_in"`
}

type TokenResponse struct {
	Access    string `json:"access"`
	Refresh   string `json:"refresh"`
	ExpiresIn int64  `json:"expires_in"`
}

func newAuthResponse(userID string, tokens *service.TokenPair) AuthResponse {
	return AuthResponse{
		UserID:    userID,
		Access:    tokens.AccessToken,
		Refresh:   tokens.RefreshToken,
		JTI:       tokens.TokenID,
		ExpiresIn: tokens.ExpiresIn,
	}
}

// Signup handles account creation with email and password
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("❌ [Handler] Invalid signup request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. Email and password (min 8 chars) required."})
		return
	}

	user, tokens, err := h.service.Signup(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newAuthResponse(user.ID, tokens))
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("❌ [Handler] Invalid login request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. Email and password required."})
		return
	}

	user, tokens, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, newAuthResponse(user.ID, tokens))
}

// Refresh exchanges a refresh token for a new pair
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("❌ [Handler] Invalid refresh request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Refresh token required"})
		return
	}

	tokens, err := h.service.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		Access:    tokens.AccessToken,
		Refresh:   tokens.RefreshToken,
		ExpiresIn: tokens.ExpiresIn,
	})
}

// Logout revokes a single refresh token
func (h *AuthHandler) Logout(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("❌ [Handler] Invalid logout request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Refresh token required"})
		return
	}

	if err := h.service.Logout(c.Request.Context(), req.Refresh); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// LogoutAll revokes every refresh token of the authenticated user
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	if err := h.service.LogoutAll(c.Request.Context(), userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me returns the authenticated user id
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(middleware.UserIDKey)})
}

// GoogleStart redirects to the Google consent screen
func (h *AuthHandler) GoogleStart(c *gin.Context) {
	state := identity.NewState()

	url, err := h.external.AuthCodeURL(state)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, oauthStateMaxAge, "/", "", h.secureCookies, true)
	c.Redirect(http.StatusFound, url)
}

// GoogleCallback completes the Google sign-in and issues tokens
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if !h.external.Enabled() {
		h.handleServiceError(c, identity.ErrProviderDisabled)
		return
	}

	expected, _ := c.Cookie(oauthStateCookie)
	c.SetCookie(oauthStateCookie, "", -1, "/", "", h.secureCookies, true)

	if err := identity.CheckState(expected, c.Query("state")); err != nil {
		h.handleServiceError(c, err)
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Authorization code required"})
		return
	}

	user, tokens, err := h.service.LoginWithProvider(c.Request.Context(), h.external, code)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, newAuthResponse(user.ID, tokens))
}

// handleServiceError maps service errors to HTTP responses
func (h *AuthHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEmailAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
	case errors.Is(err, service.ErrReuseDetected):
		h.logger.Warn("🚨 [Handler] Refresh token reuse rejected", "client_ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
	case errors.Is(err, service.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
	case errors.Is(err, token.ErrExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
	case errors.Is(err, token.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
	case errors.Is(err, repository.ErrTokenNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token"})
	case errors.Is(err, repository.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, identity.ErrProviderDisabled):
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Google login is not configured"})
	case errors.Is(err, identity.ErrStateMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid OAuth state"})
	case errors.Is(err, identity.ErrMissingEmail):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Google account has no verified email"})
	default:
		h.logger.Error("❌ [Handler] Internal server error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
