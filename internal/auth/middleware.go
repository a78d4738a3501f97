package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/cardvault/internal/models"
)

const (
	userKey    = "auth.user"
	sessionKey = "auth.session_id"
	tokenKey   = "auth.token"
)

// RequireAuth rejects requests without a live bearer token and stores the caller on the gin context.
func RequireAuth(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		user, sessionID, err := s.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to verify session"})
			return
		}
		c.Set(userKey, user)
		c.Set(sessionKey, sessionID)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// CurrentUser returns the authenticated user set by RequireAuth.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// CurrentUserID returns the authenticated user's id, or "".
func CurrentUserID(c *gin.Context) string {
	if u := CurrentUser(c); u != nil {
		return u.ID
	}
	return ""
}

// CurrentSessionID returns the id of the session behind the request's token.
func CurrentSessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}

// CurrentToken returns the bearer token that authenticated the request.
func CurrentToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}
