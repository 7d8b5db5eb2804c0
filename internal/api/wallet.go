package api

import (
	"net/http" // HTTP status codes
	"strconv"  // Header formatting

	"inspection_system/internal/domain"  // Importing domain models
	"inspection_system/internal/service" // Ledger service

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Fixed-point money
	"gorm.io/gorm"                  // GORM ORM library
)

// TransferRequest represents a transfer request
type TransferRequest struct {
	ToUsername string          `json:"to_username" binding:"required"` // Target username
	Amount     decimal.Decimal `json:"amount"`                         // Transfer amount
}

// DepositRequest represents an admin funding a wallet
type DepositRequest struct {
	UserID uint            `json:"user_id" binding:"required"` // Wallet owner
	Amount decimal.Decimal `json:"amount"`                     // Deposit amount
	Note   string          `json:"note" binding:"max=255"`     // Free-text description
}

// GetWalletHandler retrieves the wallet of the authenticated user
func GetWalletHandler(ledger *service.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, authed := currentUser(c)
		if !authed {
			return
		}
		wallet, cached, err := ledger.Wallet(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusOK, "Wallet retrieved", gin.H{
			"id":                wallet.ID,
			"user_id":           wallet.UserID,
			"ledger_balance":    wallet.LedgerBalance.StringFixed(2),
			"available_balance": wallet.AvailableBalance.StringFixed(2),
			"held_balance":      wallet.HeldBalance().StringFixed(2),
			"currency":          wallet.Currency,
			"cached":            cached, // Indicate whether response is from cache
		})
	}
}

// DepositHandler lets an admin fund a user's wallet
func DepositHandler(ledger *service.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DepositRequest
		if !bindJSON(c, &req) {
			return
		}
		tx, err := ledger.Deposit(c.Request.Context(), req.UserID, req.Amount, req.Note)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusCreated, "Deposit successful", tx)
	}
}

// TransferHandler allows a user to transfer funds to another user's wallet
func TransferHandler(db *gorm.DB, ledger *service.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		fromUserID, _, authed := currentUser(c)
		if !authed {
			return
		}
		var req TransferRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		var toUser domain.User // Find target user
		if err := db.WithContext(c.Request.Context()).Select("id").Where("username = ?", req.ToUsername).First(&toUser).Error; err != nil {
			respondError(c, domain.NotFound("target user"))
			return
		}
		out, in, err := ledger.Transfer(c.Request.Context(), fromUserID, toUser.ID, req.Amount)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusOK, "Transfer successful", gin.H{
			"transfer_out": out,
			"transfer_in":  in.ID,
		})
	}
}

// GetTransactionHistoryHandler returns the caller's transactions with pagination
func GetTransactionHistoryHandler(ledger *service.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, authed := currentUser(c)
		if !authed {
			return
		}
		page, pageSize := pagination(c)
		result, cached, err := ledger.History(c.Request.Context(), userID, page, pageSize)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("X-Cache-Hit", strconv.FormatBool(cached))
		okPage(c, "Transactions retrieved", result.Transactions, result.Page, result.PageSize, result.Total)
	}
}
