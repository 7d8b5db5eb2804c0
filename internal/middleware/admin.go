package middleware

import (
	"net/http" // HTTP status codes

	"inspection_system/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// RequireRoles checks the user's role from the database on each request, so a
// demoted user loses access before their token expires. With no roles given
// any existing user passes and only the role is refreshed.
func RequireRoles(db *gorm.DB, roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get(UserIDKey) // Get userID from context
		if !exists {
			abort(c, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		}
		var user domain.User // Fetch user from database
		if err := db.WithContext(c.Request.Context()).Select("id", "role").First(&user, userID).Error; err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "Unknown user")
			return
		}
		c.Set(RoleKey, string(user.Role)) // Authoritative role
		if len(roles) == 0 {
			c.Next()
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, string(domain.KindForbidden), "Insufficient role for this action")
	}
}

// AdminOnlyMiddleware restricts a group to admins
func AdminOnlyMiddleware(db *gorm.DB) gin.HandlerFunc {
	return RequireRoles(db, domain.RoleAdmin)
}

// AllowRoles gates a route on the role already placed in the context by
// RequireRoles earlier in the chain
func AllowRoles(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		current := domain.Role(c.GetString(RoleKey))
		for _, role := range roles {
			if current == role {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, string(domain.KindForbidden), "Insufficient role for this action")
	}
}
