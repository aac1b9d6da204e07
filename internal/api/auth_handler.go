package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gosched/internal/auth"
	"github.com/jonesrussell/gosched/internal/logger"
)

// AuthHandler serves login and token verification.
type AuthHandler struct {
	auth   *auth.Manager
	logger logger.Interface
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(manager *auth.Manager, log logger.Interface) *AuthHandler {
	return &AuthHandler{auth: manager, logger: log}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	token, user, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if err == auth.ErrInvalidCredentials {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.Error("login failed", "username", req.Username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	// Browser clients keep the session in a cookie; API clients use the
	// token from the body.
	c.SetCookie(auth.CookieName, token, int(h.auth.TokenExpiry().Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, LoginResponse{Token: token, User: user})
}

// Verify handles GET /api/v1/auth/verify. RequireAuth already validated the
// token; echo the claims back.
func (h *AuthHandler) Verify(c *gin.Context) {
	claims := auth.ClaimsFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":            claims.UserID,
			"username":      claims.Username,
			"is_admin":      claims.IsAdmin,
			"category_id":   claims.CategoryID,
			"is_permission": claims.IsPermission,
		},
	})
}
