package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eventforms/backend/internal/auth"
	"github.com/eventforms/backend/pkg/response"
)

const (
	// ContextAdmin is the key for the resolved admin flag in gin context.
	ContextAdmin = "is_admin"
	// ContextUsername is the key for the authenticated admin's username.
	ContextUsername = "username"
)

// ResolveAdmin marks the request as admin when it carries a valid admin bearer token,
// or, when allowQueryFlag is set, the legacy admin=1 query parameter. It never rejects
// anonymous requests; a malformed or invalid bearer token is a 401.
func ResolveAdmin(jwtService *auth.JWTService, allowQueryFlag bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextAdmin, false)
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Unauthorized(c, "invalid authorization header")
				c.Abort()
				return
			}
			claims, err := jwtService.Validate(parts[1])
			if err != nil {
				response.Unauthorized(c, "invalid or expired token")
				c.Abort()
				return
			}
			c.Set(ContextAdmin, claims.Role == auth.RoleAdmin)
			c.Set(ContextUsername, claims.Username)
		} else if allowQueryFlag && c.Query("admin") == "1" {
			c.Set(ContextAdmin, true)
		}
		c.Next()
	}
}

// IsAdmin reports the flag set by ResolveAdmin.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(ContextAdmin)
}
