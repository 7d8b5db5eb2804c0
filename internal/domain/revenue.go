package domain

import (
	"time" // Timestamps

	"github.com/shopspring/decimal" // Fixed-point money
)

var hundred = decimal.NewFromInt(100)

// InspectionRevenueSettings Model
//
// Only one row may be active. ActiveMarker is 1 on the active row and NULL
// elsewhere, so the unique index enforces the single active row on engines
// without partial indexes.
type InspectionRevenueSettings struct {
	ID                 uint            `gorm:"primaryKey"`                 // Primary key
	DealerPercentage   decimal.Decimal `gorm:"type:decimal(5,2);not null"` // Dealer share in percent
	PlatformPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null"` // Platform share in percent
	IsActive           bool            `gorm:"not null;default:false"`     // Currently applied
	ActiveMarker       *uint8          `gorm:"uniqueIndex" json:"-"`       // 1 when active, NULL otherwise
	CreatedBy          uint            // Admin who created the row
	ActivatedAt        *time.Time      // When it became active
	DeactivatedAt      *time.Time      // When it was superseded, frozen after
	CreatedAt          time.Time       `gorm:"autoCreateTime"`
}

// TableName keeps the plural form stable
func (InspectionRevenueSettings) TableName() string { return "inspection_revenue_settings" }

// Validate checks the percentages sum to exactly 100
func (s InspectionRevenueSettings) Validate() error {
	if s.DealerPercentage.IsNegative() || s.PlatformPercentage.IsNegative() {
		return ValidationError("percentages must not be negative")
	}
	if !s.DealerPercentage.Add(s.PlatformPercentage).Equal(hundred) {
		return ValidationError("dealer and platform percentages must sum to 100, got %s + %s",
			s.DealerPercentage.String(), s.PlatformPercentage.String())
	}
	if !s.DealerPercentage.Equal(s.DealerPercentage.Round(2)) || !s.PlatformPercentage.Equal(s.PlatformPercentage.Round(2)) {
		return ValidationError("percentages support at most two decimal places")
	}
	return nil
}

// Split divides fee between dealer and platform. The dealer share is truncated
// to cents and the platform receives the remainder, so the two always sum to fee.
func (s InspectionRevenueSettings) Split(fee decimal.Decimal) (dealer, platform decimal.Decimal, err error) {
	if err := s.Validate(); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if fee.IsNegative() {
		return decimal.Zero, decimal.Zero, ValidationError("fee must not be negative")
	}
	dealer = fee.Mul(s.DealerPercentage).Div(hundred).Truncate(2)
	platform = fee.Sub(dealer)
	return dealer, platform, nil
}

// InspectionRevenueSplit Model
type InspectionRevenueSplit struct {
	ID                  uint            `gorm:"primaryKey"`                  // Primary key
	InspectionID        uint            `gorm:"uniqueIndex;not null"`        // At most one split per inspection
	SettingsID          uint            `gorm:"index;not null"`              // Settings row used
	DealerID            uint            `gorm:"index;not null"`              // Credited dealer
	TotalFee            decimal.Decimal `gorm:"type:decimal(20,2);not null"` // Fee collected
	DealerShare         decimal.Decimal `gorm:"type:decimal(20,2);not null"` // Credited to the dealer wallet
	PlatformShare       decimal.Decimal `gorm:"type:decimal(20,2);not null"` // Retained by the platform
	DealerPercentage    decimal.Decimal `gorm:"type:decimal(5,2);not null"`  // Snapshot of the settings
	PlatformPercentage  decimal.Decimal `gorm:"type:decimal(5,2);not null"`  // Snapshot of the settings
	DealerCredited      bool            `gorm:"not null;default:false"`      // Set with the wallet credit
	CreditTransactionID *uint           // Dealer wallet entry
	CreatedAt           time.Time       `gorm:"autoCreateTime;index"`
}
