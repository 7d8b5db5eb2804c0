package api

import (
	"net/http" // HTTP status codes

	"inspection_system/internal/domain"  // Importing domain models
	"inspection_system/internal/service" // Withdrawal service

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Fixed-point money
)

// WithdrawalRequestBody files a payout request
type WithdrawalRequestBody struct {
	Amount decimal.Decimal    `json:"amount"`       // Payout amount
	Bank   domain.BankDetails `json:"bank_details"` // Destination account, validated field by field
}

// ProcessWithdrawalRequest completes an approved payout
type ProcessWithdrawalRequest struct {
	PayoutReference string `json:"payout_reference" binding:"max=120"` // Transfer reference, generated when empty
}

// RejectWithdrawalRequest closes a request
type RejectWithdrawalRequest struct {
	Reason string `json:"reason" binding:"required,max=255"` // Shown to the requester
}

// CreateWithdrawalHandler files a payout request against the caller's wallet
func CreateWithdrawalHandler(withdrawals *service.Withdrawals) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, authed := currentUser(c)
		if !authed {
			return
		}
		var req WithdrawalRequestBody
		if !bindJSON(c, &req) {
			return
		}
		wr, err := withdrawals.Create(c.Request.Context(), userID, req.Amount, req.Bank)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusCreated, "Withdrawal request submitted", wr)
	}
}

// ListMyWithdrawalsHandler lists the caller's own requests
func ListMyWithdrawalsHandler(withdrawals *service.Withdrawals) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, authed := currentUser(c)
		if !authed {
			return
		}
		page, pageSize := pagination(c)
		rows, total, err := withdrawals.List(c.Request.Context(), service.WithdrawalFilter{
			Status:   domain.WithdrawalStatus(c.Query("status")),
			UserID:   userID,
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		okPage(c, "Withdrawal requests retrieved", rows, page, pageSize, total)
	}
}

// ListWithdrawalsHandler is the admin queue
func ListWithdrawalsHandler(withdrawals *service.Withdrawals) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize := pagination(c)
		rows, total, err := withdrawals.List(c.Request.Context(), service.WithdrawalFilter{
			Status:   domain.WithdrawalStatus(c.DefaultQuery("status", string(domain.WithdrawalPending))),
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		okPage(c, "Withdrawal requests retrieved", rows, page, pageSize, total)
	}
}

// ApproveWithdrawalHandler places a hold for an approved payout
func ApproveWithdrawalHandler(withdrawals *service.Withdrawals) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID, _, authed := currentUser(c)
		if !authed {
			return
		}
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		wr, err := withdrawals.Approve(c.Request.Context(), id, adminID)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusOK, "Withdrawal approved", wr)
	}
}

// ProcessWithdrawalHandler settles an approved payout
func ProcessWithdrawalHandler(withdrawals *service.Withdrawals) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID, _, authed := currentUser(c)
		if !authed {
			return
		}
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		var req ProcessWithdrawalRequest
		if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
			return
		}
		wr, err := withdrawals.Process(c.Request.Context(), id, adminID, req.PayoutReference)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusOK, "Withdrawal processed", wr)
	}
}

// RejectWithdrawalHandler closes a request and releases any hold
func RejectWithdrawalHandler(withdrawals *service.Withdrawals) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID, _, authed := currentUser(c)
		if !authed {
			return
		}
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		var req RejectWithdrawalRequest
		if !bindJSON(c, &req) {
			return
		}
		wr, err := withdrawals.Reject(c.Request.Context(), id, adminID, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusOK, "Withdrawal rejected", wr)
	}
}
