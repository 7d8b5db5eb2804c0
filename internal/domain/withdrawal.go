package domain

import (
	"time" // Timestamps

	"github.com/shopspring/decimal" // Fixed-point money
)

// WithdrawalStatus is the pipeline state of a payout request
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalApproved  WithdrawalStatus = "approved"
	WithdrawalRejected  WithdrawalStatus = "rejected"
	WithdrawalCompleted WithdrawalStatus = "completed"
)

// WithdrawalRequest Model
type WithdrawalRequest struct {
	ID                uint             `gorm:"primaryKey"`                  // Primary key
	WalletID          uint             `gorm:"index;not null"`              // Debited wallet
	UserID            uint             `gorm:"index;not null"`              // Requester
	Amount            decimal.Decimal  `gorm:"type:decimal(20,2);not null"` // Requested payout
	Currency          string           `gorm:"size:3;not null"`             // Wallet currency
	Status            WithdrawalStatus `gorm:"size:20;not null;index"`      // Pipeline state
	BankAccountName   string           `gorm:"size:120;not null"`           // Resolved by the gateway
	BankAccountNumber string           `gorm:"size:20;not null"`            // Destination account
	BankCode          string           `gorm:"size:10;not null"`            // Destination bank
	RejectionReason   *string          `gorm:"size:255"`                    // Set on reject
	HoldTransactionID *uint            // Locked entry created at approval
	PayoutReference   *string          `gorm:"size:120;uniqueIndex"` // Gateway transfer reference
	ApprovedBy        *uint            // Admin
	ApprovedAt        *time.Time
	ProcessedBy       *uint // Admin
	ProcessedAt       *time.Time
	RejectedAt        *time.Time
	CreatedAt         time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

// BankDetails is the payout destination supplied by the requester
type BankDetails struct {
	AccountNumber string `json:"account_number" binding:"required,numeric,min=10,max=10"` // NUBAN
	BankCode      string `json:"bank_code" binding:"required,numeric,min=3,max=6"`        // Gateway bank code
}
