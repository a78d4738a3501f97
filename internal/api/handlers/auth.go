package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codyseavey/cardvault/internal/auth"
	"github.com/codyseavey/cardvault/internal/models"
)

type AuthHandler struct {
	auth   *auth.Service
	logger *zap.SugaredLogger
}

func NewAuthHandler(svc *auth.Service, logger *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{auth: svc, logger: logger}
}

func (h *AuthHandler) SignUp(c *gin.Context) {
	var req models.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.auth.SignUp(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrEmailTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Errorw("sign up failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create account"})
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *AuthHandler) SignIn(c *gin.Context) {
	var req models.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Errorw("sign in failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign in"})
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	token := auth.BearerToken(c.Request)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}

	session, err := h.auth.Refresh(c.Request.Context(), token)
	if errors.Is(err, auth.ErrInvalidToken) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Errorw("refresh failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to refresh session"})
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *AuthHandler) SignOut(c *gin.Context) {
	token := auth.BearerToken(c.Request)
	if token == "" {
		c.Status(http.StatusNoContent)
		return
	}
	err := h.auth.SignOut(c.Request.Context(), token)
	if err != nil && !errors.Is(err, auth.ErrInvalidToken) {
		h.logger.Errorw("sign out failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign out"})
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdatePassword sets a new password for the caller and signs out their other sessions
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	var req models.PasswordUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.auth.UpdatePassword(c.Request.Context(), auth.CurrentUserID(c), auth.CurrentSessionID(c), req.Password)
	switch {
	case errors.Is(err, auth.ErrPasswordRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Errorw("password update failed", "user_id", auth.CurrentUserID(c), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update password"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetUser returns the caller; it runs behind auth.RequireAuth
func (h *AuthHandler) GetUser(c *gin.Context) {
	c.JSON(http.StatusOK, auth.CurrentUser(c))
}
