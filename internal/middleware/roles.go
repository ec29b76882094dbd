package middleware

import (
	"net/http"                      // HTTP status codes
	"school_ledger/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// RequireRoles checks the caller's role from the database on each request,
// so a changed role takes effect without waiting for the token to expire
func RequireRoles(db *gorm.DB, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			abort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		var user domain.User // Fetch user from database
		if err := db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
			// Deleted users lose access immediately
			abort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Set("role", user.Role) // Current role for handlers
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "Insufficient permissions")
	}
}
