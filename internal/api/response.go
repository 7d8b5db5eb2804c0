package api

import (
	"errors"   // Error inspection
	"fmt"      // Message formatting
	"net/http" // HTTP status codes
	"strconv"  // Query parsing

	"inspection_system/internal/domain" // Error taxonomy

	"github.com/gin-gonic/gin"               // Gin web framework
	"github.com/go-playground/validator/v10" // Binding error details
	"github.com/sirupsen/logrus"             // Structured logging
)

// Response is the envelope of every JSON reply
type Response struct {
	Success bool           `json:"success"`           // Whether the operation succeeded
	Code    string         `json:"code,omitempty"`    // Machine-readable code on failure
	Message string         `json:"message"`           // Human-readable message
	Data    any            `json:"data,omitempty"`    // Payload on success
	Details map[string]any `json:"details,omitempty"` // Context on failure
	Meta    *Meta          `json:"meta,omitempty"`    // Pagination for lists
}

// Meta describes one page of a list
type Meta struct {
	Page       int   `json:"page"`        // Current page
	PageSize   int   `json:"page_size"`   // Page size
	Total      int64 `json:"total"`       // Total rows
	TotalPages int   `json:"total_pages"` // Total pages
}

// statusByKind maps each error kind to its HTTP status
var statusByKind = map[domain.ErrorKind]int{
	domain.KindValidation:          http.StatusBadRequest,
	domain.KindPaymentRequired:     http.StatusPaymentRequired,
	domain.KindAlreadyProcessed:    http.StatusOK,
	domain.KindInsufficientBalance: http.StatusUnprocessableEntity,
	domain.KindGatewayUnavailable:  http.StatusServiceUnavailable,
	domain.KindIntegrityViolation:  http.StatusConflict,
	domain.KindSignatureRejected:   http.StatusOK,
	domain.KindNotFound:            http.StatusNotFound,
	domain.KindForbidden:           http.StatusForbidden,
	domain.KindInvalidTransition:   http.StatusConflict,
}

// ok writes a success envelope
func ok(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// okPage writes a success envelope with pagination
func okPage(c *gin.Context, message string, data any, page, pageSize int, total int64) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta: &Meta{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: (int(total) + pageSize - 1) / pageSize, // Calculate total pages
		},
	})
}

// fail writes an error envelope
func fail(c *gin.Context, status int, code, message string, details map[string]any) {
	c.AbortWithStatusJSON(status, Response{Success: false, Code: code, Message: message, Details: details})
}

// respondError maps an engine error onto the envelope; anything outside the
// taxonomy is logged and hidden behind a 500
func respondError(c *gin.Context, err error) {
	if appErr, ok := domain.AsAppError(err); ok {
		status, known := statusByKind[appErr.Kind]
		if !known {
			status = http.StatusInternalServerError
		}
		fail(c, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	logrus.WithFields(logrus.Fields{
		"path":   c.FullPath(),
		"method": c.Request.Method,
		"error":  err.Error(),
	}).Error("Unhandled error")
	fail(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
}

// bindJSON binds the body and writes a validation envelope on failure
func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		details := map[string]any{}
		if errs := formatValidationError(err); len(errs) > 0 {
			details["fields"] = errs
		}
		fail(c, http.StatusBadRequest, string(domain.KindValidation), "Invalid request", details)
		return false
	}
	return true
}

// formatValidationError renders binding failures one message per field
func formatValidationError(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	errs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := e.Field()
		switch e.Tag() {
		case "required":
			errs = append(errs, fmt.Sprintf("%s is required", field))
		case "email":
			errs = append(errs, fmt.Sprintf("%s must be a valid email", field))
		case "min":
			errs = append(errs, fmt.Sprintf("%s must have minimum length %s", field, e.Param()))
		case "max":
			errs = append(errs, fmt.Sprintf("%s must have maximum length %s", field, e.Param()))
		case "oneof":
			errs = append(errs, fmt.Sprintf("%s must be one of [%s]", field, e.Param()))
		default:
			errs = append(errs, fmt.Sprintf("%s is invalid (%s)", field, e.Tag()))
		}
	}
	return errs
}

// pagination reads page and page_size with the usual bounds
func pagination(c *gin.Context) (int, int) {
	page := 1      // Default page number
	pageSize := 20 // Default page size
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v // Set page if valid
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v // Set page size
		}
	}
	return page, pageSize
}

// idParam parses a positive numeric path parameter
func idParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		fail(c, http.StatusBadRequest, string(domain.KindValidation), "Invalid "+name, nil)
		return 0, false
	}
	return uint(v), true
}
