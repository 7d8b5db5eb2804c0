package api

import (
	"context"  // Quote cache
	"net/http" // HTTP status codes
	"time"     // Cache TTL

	"inspection_system/internal/domain"  // Importing domain models
	"inspection_system/internal/service" // Inspection service
	"inspection_system/internal/utils"   // Cache helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
)

// CreateInspectionRequest books an inspection
type CreateInspectionRequest struct {
	Type         string `json:"type" binding:"required,oneof=basic standard comprehensive pre_purchase"` // Inspection type
	DealerID     uint   `json:"dealer_id" binding:"required"`                                            // Dealer beneficiary
	InspectorID  uint   `json:"inspector_id" binding:"required"`                                         // Assigned inspector
	VehicleMake  string `json:"vehicle_make" binding:"required,max=60"`                                  // Make
	VehicleModel string `json:"vehicle_model" binding:"required,max=60"`                                 // Model
	VehicleYear  int    `json:"vehicle_year" binding:"omitempty,min=1950,max=2100"`                      // Model year
	VIN          string `json:"vin" binding:"omitempty,max=17"`                                          // Vehicle identification number
}

// PhotoRequest attaches one photo
type PhotoRequest struct {
	URL     string `json:"url" binding:"required,url"` // Stored photo location
	Caption string `json:"caption" binding:"max=255"`  // Optional caption
}

// CompleteRequest carries the findings
type CompleteRequest struct {
	Findings        string `json:"findings" binding:"required"`                      // Inspection findings
	ConditionRating int    `json:"condition_rating" binding:"required,min=1,max=10"` // Overall rating
}

// quoteTTL bounds how long a cached fee quote is served
const quoteTTL = 5 * time.Minute

// QuoteHandler prices an inspection type
func QuoteHandler(inspections *service.Inspections, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		t := domain.InspectionType(c.Query("type"))
		cacheKey := "quote:" + string(t)
		var quote service.Quote
		if rdb != nil {
			if found, err := utils.GetCache(c.Request.Context(), rdb, cacheKey, &quote); err == nil && found {
				ok(c, http.StatusOK, "Fee quote", quote)
				return
			}
		}
		q, err := inspections.Quote(t)
		if err != nil {
			respondError(c, err)
			return
		}
		if rdb != nil {
			_ = utils.SetCache(context.WithoutCancel(c.Request.Context()), rdb, cacheKey, q, quoteTTL)
		}
		ok(c, http.StatusOK, "Fee quote", q)
	}
}

// CreateInspectionHandler books an inspection in pending_payment
func CreateInspectionHandler(inspections *service.Inspections) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID, _, authed := currentUser(c)
		if !authed {
			return
		}
		var req CreateInspectionRequest
		if !bindJSON(c, &req) {
			return
		}
		insp, err := inspections.Create(c.Request.Context(), customerID, service.CreateInspectionInput{
			Type:         domain.InspectionType(req.Type),
			DealerID:     req.DealerID,
			InspectorID:  req.InspectorID,
			VehicleMake:  req.VehicleMake,
			VehicleModel: req.VehicleModel,
			VehicleYear:  req.VehicleYear,
			VIN:          req.VIN,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusCreated, "Inspection created", insp)
	}
}

// GetInspectionHandler returns one inspection to its parties
func GetInspectionHandler(inspections *service.Inspections) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, authed := currentUser(c)
		if !authed {
			return
		}
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		insp, err := inspections.Get(c.Request.Context(), id, userID, role)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusOK, "Inspection retrieved", insp)
	}
}

// ListInspectionsHandler lists the caller's inspections
func ListInspectionsHandler(inspections *service.Inspections) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, authed := currentUser(c)
		if !authed {
			return
		}
		page, pageSize := pagination(c)
		rows, total, err := inspections.List(c.Request.Context(), userID, role, c.Query("status"), page, pageSize)
		if err != nil {
			respondError(c, err)
			return
		}
		okPage(c, "Inspections retrieved", rows, page, pageSize, total)
	}
}

// StartInspectionHandler moves a paid draft to in_progress
func StartInspectionHandler(inspections *service.Inspections) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, authed := currentUser(c)
		if !authed {
			return
		}
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		insp, err := inspections.Start(c.Request.Context(), id, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusOK, "Inspection started", insp)
	}
}

// AddPhotoHandler attaches a photo to an inspection in progress
func AddPhotoHandler(inspections *service.Inspections) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, authed := currentUser(c)
		if !authed {
			return
		}
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		var req PhotoRequest
		if !bindJSON(c, &req) {
			return
		}
		photo, err := inspections.AddPhoto(c.Request.Context(), id, userID, req.URL, req.Caption)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusCreated, "Photo added", photo)
	}
}

// CompleteInspectionHandler submits findings and completes the inspection
func CompleteInspectionHandler(inspections *service.Inspections) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, authed := currentUser(c)
		if !authed {
			return
		}
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		var req CompleteRequest
		if !bindJSON(c, &req) {
			return
		}
		insp, err := inspections.Complete(c.Request.Context(), id, userID, service.CompleteInput{
			Findings:        req.Findings,
			ConditionRating: req.ConditionRating,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusOK, "Inspection completed", insp)
	}
}
