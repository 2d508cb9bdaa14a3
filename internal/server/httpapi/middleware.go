package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rmaia/authd/internal/common"
	"github.com/rmaia/authd/internal/server/auth"
)

// Context keys set by the authentication middleware.
const (
	ctxUserIDKey   = "userID"
	ctxUsernameKey = "username"
)

// authentication verifies the access token from the Authorization header or
// the access-token cookie and stores the principal in the request context.
// Every rejection uses the same status and body; the actual reason is only
// logged at debug level so callers cannot probe for it.
func (s *Server) authentication() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			if v, err := c.Cookie(common.AccessTokenCookieName); err == nil {
				token = v
			}
		}
		if token == "" {
			s.logger.Debug(c.Request.Context(), "rejecting request", "reason", "missing access token")
			unauthorized(c)
			return
		}

		claims, err := auth.ParseToken(token, s.jwtSecret)
		if err != nil {
			s.logger.Debug(c.Request.Context(), "rejecting request", "reason", err.Error())
			unauthorized(c)
			return
		}

		c.Set(ctxUserIDKey, claims.UserID)
		c.Set(ctxUsernameKey, claims.Username)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	raw := strings.TrimSpace(c.GetHeader("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
}
