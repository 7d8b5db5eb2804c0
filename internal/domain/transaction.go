package domain

import (
	"time" // Timestamps

	"github.com/shopspring/decimal" // Fixed-point money
)

// TransactionType is the kind of ledger entry
type TransactionType string

const (
	TxDeposit     TransactionType = "deposit"
	TxWithdraw    TransactionType = "withdraw"
	TxTransferIn  TransactionType = "transfer_in"
	TxTransferOut TransactionType = "transfer_out"
	TxPayment     TransactionType = "payment"
	TxCharge      TransactionType = "charge"
)

// TransactionStatus is the lifecycle state of a ledger entry
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
	TxReversed  TransactionStatus = "reversed"
	TxLocked    TransactionStatus = "locked" // Funds held, not yet debited
)

// Transaction Model
//
// A completed transaction is never edited. Corrections are new entries.
type Transaction struct {
	ID                  uint              `gorm:"primaryKey"`                  // Primary key
	WalletID            *uint             `gorm:"index"`                       // Wallet whose balance this entry moved, nil for gateway charges
	Type                TransactionType   `gorm:"size:20;not null;index"`      // Entry type
	Amount              decimal.Decimal   `gorm:"type:decimal(20,2);not null"` // Always positive
	Currency            string            `gorm:"size:3;not null"`             // ISO currency code
	Status              TransactionStatus `gorm:"size:20;not null;index"`      // Entry status
	Sender              string            `gorm:"size:120"`                    // Free-text or account reference
	Recipient           string            `gorm:"size:120"`                    // Free-text or account reference
	ExternalReference   *string           `gorm:"size:120;uniqueIndex"`        // Gateway reference, unique
	RelatedInspectionID *uint             `gorm:"index"`                       // Optional back-reference
	Description         string            `gorm:"size:255"`                    // Human note
	CompletedAt         *time.Time        `json:",omitempty"`                  // When it reached completed
	CreatedAt           time.Time         `gorm:"autoCreateTime;index"`        // Creation time
	UpdatedAt           time.Time         `gorm:"autoUpdateTime"`              // Last status change
}

// IsFinal reports whether the entry can no longer change
func (t Transaction) IsFinal() bool {
	return t.Status == TxCompleted || t.Status == TxFailed || t.Status == TxReversed
}

// StringPtr is a small helper for optional string columns
func StringPtr(s string) *string { return &s }

// UintPtr is a small helper for optional id columns
func UintPtr(v uint) *uint { return &v }
