package api

import (
	"net/http" // HTTP status codes

	"inspection_system/internal/domain"     // Roles
	"inspection_system/internal/middleware" // Context keys

	"github.com/gin-gonic/gin" // Gin web framework
)

// currentUser reads the authenticated user set by the auth middleware
func currentUser(c *gin.Context) (uint, domain.Role, bool) {
	id, exists := c.Get(middleware.UserIDKey) // Get userID from context
	userID, isUint := id.(uint)
	if !exists || !isUint || userID == 0 {
		fail(c, http.StatusUnauthorized, "unauthorized", "Unauthorized", nil)
		return 0, "", false
	}
	role := c.GetString(middleware.RoleKey)
	return userID, domain.Role(role), true
}
