package domain

import (
	"github.com/shopspring/decimal" // Fixed-point money
)

// InspectionType is a closed set of inspection packages
type InspectionType string

const (
	InspectionBasic         InspectionType = "basic"
	InspectionStandard      InspectionType = "standard"
	InspectionComprehensive InspectionType = "comprehensive"
	InspectionPrePurchase   InspectionType = "pre_purchase"
)

// InspectionTypes lists every known type in display order
var InspectionTypes = []InspectionType{InspectionBasic, InspectionStandard, InspectionComprehensive, InspectionPrePurchase}

// Valid reports whether t is a known type
func (t InspectionType) Valid() bool {
	switch t {
	case InspectionBasic, InspectionStandard, InspectionComprehensive, InspectionPrePurchase:
		return true
	}
	return false
}

// RequiredSignatories returns the roles that must sign the inspection document
func (t InspectionType) RequiredSignatories() []SignatoryRole {
	switch t {
	case InspectionComprehensive, InspectionPrePurchase:
		return []SignatoryRole{SignatoryInspector, SignatoryCustomer, SignatoryDealer}
	default:
		return []SignatoryRole{SignatoryInspector, SignatoryCustomer}
	}
}

// FeePolicy maps each inspection type to its fee
type FeePolicy map[InspectionType]decimal.Decimal

// DefaultFeePolicy is used when no override is configured
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		InspectionBasic:         decimal.NewFromInt(25000),
		InspectionStandard:      decimal.NewFromInt(50000),
		InspectionComprehensive: decimal.NewFromInt(75000),
		InspectionPrePurchase:   decimal.NewFromInt(60000),
	}
}

// Quote returns the fee for an inspection type, rounded to cents
func (p FeePolicy) Quote(t InspectionType) (decimal.Decimal, error) {
	if !t.Valid() {
		return decimal.Zero, ValidationError("unknown inspection type %q", t)
	}
	fee, ok := p[t]
	if !ok || !fee.IsPositive() {
		return decimal.Zero, ValidationError("no fee configured for inspection type %q", t)
	}
	return fee.Round(2), nil
}
