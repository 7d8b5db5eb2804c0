package api

import (
	"net/http" // HTTP status codes

	"inspection_system/internal/domain"  // Error taxonomy
	"inspection_system/internal/service" // Payment service

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Fixed-point money
)

// PayRequest starts paying an inspection fee
type PayRequest struct {
	Amount decimal.Decimal `json:"amount"`                                            // Must equal the fee
	Method string          `json:"method" binding:"omitempty,oneof=card bank wallet"` // Defaults to card
}

// VerifyPaymentRequest confirms a checkout after redirect
type VerifyPaymentRequest struct {
	Reference string `json:"reference" binding:"required"` // Gateway reference
}

// PayInspectionHandler starts a checkout, or pays from the wallet
func PayInspectionHandler(payments *service.Payments) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID, _, authed := currentUser(c)
		if !authed {
			return
		}
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		var req PayRequest
		if !bindJSON(c, &req) {
			return
		}
		result, err := payments.Pay(c.Request.Context(), service.PayInput{
			InspectionID: id,
			CustomerID:   customerID,
			Amount:       req.Amount,
			Method:       service.PaymentMethod(req.Method),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		if result.Confirmation != nil {
			ok(c, http.StatusOK, "Payment confirmed", result)
			return
		}
		ok(c, http.StatusCreated, "Payment initiated", result)
	}
}

// VerifyPaymentHandler runs the same idempotent confirmation as the webhook
func VerifyPaymentHandler(payments *service.Payments) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, authed := currentUser(c)
		if !authed {
			return
		}
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		var req VerifyPaymentRequest
		if !bindJSON(c, &req) {
			return
		}
		conf, err := payments.VerifyPayment(c.Request.Context(), service.VerifyPaymentInput{
			InspectionID: id,
			Reference:    req.Reference,
			CallerID:     userID,
			CallerRole:   role,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		if conf.AlreadyProcessed {
			c.JSON(http.StatusOK, Response{
				Success: true,
				Code:    string(domain.KindAlreadyProcessed),
				Message: "Payment already processed",
				Data:    conf,
			})
			return
		}
		ok(c, http.StatusOK, "Payment confirmed", conf)
	}
}
