package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"delivery-dispatch/pkg/logger"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// RequireAccessToken verifies an access token, checks the denylist when a
// revoker is configured, and injects the worker identity into the request context.
func RequireAccessToken(m *Manager, revoker Revoker) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c, m, revoker)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAccessToken injects identity when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAccessToken(m *Manager, revoker Revoker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := authenticate(c, m, revoker); ok {
			setIdentity(c, claims)
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, m *Manager, revoker Revoker) (Claims, bool) {
	tok, ok := BearerToken(c.GetHeader(authorizationHeader))
	if !ok {
		return Claims{}, false
	}

	claims, err := m.Verify(tok, TokenTypeAccess, time.Now())
	if err != nil {
		logger.FromGin(c).Debug("access token rejected", "err", err)
		return Claims{}, false
	}

	if revoker != nil {
		revoked, err := revoker.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			// Fail closed: an unreachable denylist must not resurrect logged-out tokens.
			logger.FromGin(c).Error("token revocation check failed", "err", err)
			return Claims{}, false
		}
		if revoked {
			return Claims{}, false
		}
	}
	return claims, true
}

func setIdentity(c *gin.Context, claims Claims) {
	c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), claims))
	c.Set("worker_id", claims.WorkerID)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	raw := strings.TrimSpace(header)
	if !strings.HasPrefix(raw, bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix))
	return tok, tok != ""
}
