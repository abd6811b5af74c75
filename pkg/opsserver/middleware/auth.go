package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/auth"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/config"
)

// Auth requires a bearer token. When a signing key is configured the
// token must be a valid service JWT and the tenant claim is placed on the
// request context; without a key any non-empty token passes, which keeps
// local development friction-free.
func Auth(cfg config.AuthConfig) gin.HandlerFunc {
	var manager *auth.TokenManager
	if cfg.JWTSecret != "" {
		manager = auth.NewTokenManager([]byte(cfg.JWTSecret), cfg.TokenTTL)
	}

	return func(c *gin.Context) {
		authorization := c.GetHeader("Authorization")
		if authorization == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		parts := strings.SplitN(authorization, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization"})
			return
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		if manager != nil {
			claims, err := manager.Validate(token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			c.Set("tenant_id", claims.TenantID)
			c.Set("scope", claims.Scope)
		}
		c.Next()
	}
}
