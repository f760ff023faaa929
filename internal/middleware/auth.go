package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agrologix/agrologix-backend/internal/models"
	"github.com/agrologix/agrologix-backend/pkg/utils"
)

func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		// Browsers cannot set headers on a websocket handshake.
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header or token query parameter required"})
			return
		}

		identity, err := utils.ParseIdentity(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set("userId", identity.UserID)
		c.Set("userType", string(identity.UserType))
		c.Next()
	}
}

// RequireRole rejects callers whose token role is not role.
func RequireRole(role models.UserType) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("userType") != string(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "only " + string(role) + "s can do this",
				"code":  models.ErrorCode(models.ErrNotAuthorized),
			})
			return
		}
		c.Next()
	}
}
