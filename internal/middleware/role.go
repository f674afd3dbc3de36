package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/eventforms/backend/pkg/response"
)

// RequireAdmin allows only requests resolved as admin by ResolveAdmin.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			response.Forbidden(c, "not authorized")
			c.Abort()
			return
		}
		c.Next()
	}
}
