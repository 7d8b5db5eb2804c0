package domain

import (
	"time" // Timestamps

	"github.com/shopspring/decimal" // Fixed-point money
)

// Wallet Model
//
// LedgerBalance is the authoritative total of completed entries. AvailableBalance
// is LedgerBalance minus funds held by approved withdrawals.
type Wallet struct {
	ID               uint            `gorm:"primaryKey"`                    // Primary key
	UserID           uint            `gorm:"uniqueIndex"`                   // Foreign key to User
	LedgerBalance    decimal.Decimal `gorm:"type:decimal(20,2);not null"`   // Committed balance
	AvailableBalance decimal.Decimal `gorm:"type:decimal(20,2);not null"`   // Spendable balance
	Currency         string          `gorm:"size:3;not null;default:'NGN'"` // ISO currency code
	RetiredAt        *time.Time      `json:",omitempty"`                    // Set when a zero-balance wallet is retired
	CreatedAt        time.Time       `gorm:"autoCreateTime"`                // Creation time
	UpdatedAt        time.Time       `gorm:"autoUpdateTime"`                // Last balance change
}

// NewWallet returns an empty wallet for a user
func NewWallet(userID uint, currency string) Wallet {
	return Wallet{
		UserID:           userID,
		LedgerBalance:    decimal.Zero,
		AvailableBalance: decimal.Zero,
		Currency:         currency,
	}
}

// HeldBalance is the amount reserved by pending payouts
func (w Wallet) HeldBalance() decimal.Decimal {
	return w.LedgerBalance.Sub(w.AvailableBalance)
}

// Consistent checks the balance invariants
func (w Wallet) Consistent() bool {
	return !w.AvailableBalance.IsNegative() && w.AvailableBalance.LessThanOrEqual(w.LedgerBalance)
}
