package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"wallet_ledger/internal/utils" // JWT utility functions

	"github.com/gin-gonic/gin" // Gin web framework
)

// Context keys set by the auth middleware
const (
	UserIDKey = "userID"
	RoleKey   = "role"
)

// JWTAuthMiddleware validates access tokens and stores the caller identity in the context
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")                    // Extract the token string
		claims, err := utils.ParseTyped(tokenStr, utils.TokenTypeAccess, secret) // Refresh tokens are refused here
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(UserIDKey, claims.UserID) // Store userID in context
		c.Set(RoleKey, claims.Role)     // Role at issue time, informational only
		c.Next()
	}
}

// CallerID returns the authenticated user ID stored by JWTAuthMiddleware
func CallerID(c *gin.Context) (uint, bool) {
	v, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}
