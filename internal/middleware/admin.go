package middleware

import (
	"context"  // Context for the user lookup
	"net/http" // HTTP status codes

	"wallet_ledger/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin" // Gin web framework
)

// UserLookup loads users by ID
type UserLookup interface {
	Get(ctx context.Context, userID uint) (*domain.User, error)
}

// AdminOnlyMiddleware checks the user's role from the database on each request
func AdminOnlyMiddleware(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := CallerID(c) // Get userID from context
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		user, err := users.Get(c.Request.Context(), userID)
		// A missing user or a lookup failure both deny access
		if err != nil || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}
