package api

import (
	"net/http" // HTTP status codes

	"inspection_system/internal/domain"  // Roles
	"inspection_system/internal/service" // Revenue service

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Fixed-point percentages
)

// CreateSettingsRequest is a new revenue split version
type CreateSettingsRequest struct {
	DealerPercentage   decimal.Decimal `json:"dealer_percentage"`   // Dealer share, 0-100
	PlatformPercentage decimal.Decimal `json:"platform_percentage"` // Platform share, 0-100
	Activate           bool            `json:"activate"`            // Make it the active version now
}

// ListSettingsHandler returns every settings version
func ListSettingsHandler(revenue *service.Revenue) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := revenue.ListSettings(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusOK, "Revenue settings retrieved", rows)
	}
}

// CreateSettingsHandler stores a validated settings version
func CreateSettingsHandler(revenue *service.Revenue) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID, _, authed := currentUser(c)
		if !authed {
			return
		}
		var req CreateSettingsRequest
		if !bindJSON(c, &req) {
			return
		}
		settings, err := revenue.CreateSettings(c.Request.Context(), req.DealerPercentage, req.PlatformPercentage, req.Activate, adminID)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusCreated, "Revenue settings created", settings)
	}
}

// ActivateSettingsHandler switches the active settings version
func ActivateSettingsHandler(revenue *service.Revenue) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		settings, err := revenue.ActivateSettings(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusOK, "Revenue settings activated", settings)
	}
}

// ListSplitsHandler lists recorded splits; dealers only see their own
func ListSplitsHandler(revenue *service.Revenue) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, authed := currentUser(c)
		if !authed {
			return
		}
		var dealerID uint
		if role == domain.RoleDealer {
			dealerID = userID
		}
		page, pageSize := pagination(c)
		rows, total, err := revenue.ListSplits(c.Request.Context(), dealerID, page, pageSize)
		if err != nil {
			respondError(c, err)
			return
		}
		okPage(c, "Revenue splits retrieved", rows, page, pageSize, total)
	}
}
