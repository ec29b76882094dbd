package middleware

import (
	"net/http"                     // HTTP status codes
	"school_ledger/internal/utils" // JWT utility functions

	"github.com/gin-gonic/gin" // Gin web framework
)

// abort stops the chain with an error envelope
func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

// JWTAuthMiddleware validates bearer tokens and stores the caller in the context
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := utils.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}
		claims, err := utils.ParseJWT(tokenStr, secret)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		c.Set("userID", claims.UserID) // Caller for handlers and audit logs
		c.Set("role", claims.Role)     // Role from the token, refreshed by RequireRoles
		c.Next()
	}
}
