package middleware

import (
	"net/http"
	"strings"

	"room-relay-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// TokenVerifier checks a master token
type TokenVerifier interface {
	VerifyToken(token string) bool
}

// AuthMiddleware requires a valid master token in the Authorization header
func AuthMiddleware(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Authorization header required")
			c.Abort()
			return
		}

		// Check Bearer prefix
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid authorization format. Use: Bearer <token>")
			c.Abort()
			return
		}

		if !tokens.VerifyToken(parts[1]) {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Next()
	}
}
