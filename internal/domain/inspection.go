package domain

import (
	"time" // Timestamps

	"github.com/shopspring/decimal" // Fixed-point money
)

// InspectionStatus is the workflow state of an inspection
type InspectionStatus string

const (
	InspectionPendingPayment InspectionStatus = "pending_payment"
	InspectionDraft          InspectionStatus = "draft"
	InspectionInProgress     InspectionStatus = "in_progress"
	InspectionCompleted      InspectionStatus = "completed"
	InspectionSigned         InspectionStatus = "signed"
	InspectionArchived       InspectionStatus = "archived"
	InspectionExpired        InspectionStatus = "expired" // Unpaid past the payment window
)

// PaymentStatus tracks whether the fee has been collected
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

// inspectionTransitions lists the only legal moves. An expired inspection can
// still be revived by a verified payment that lands late.
var inspectionTransitions = map[InspectionStatus][]InspectionStatus{
	InspectionPendingPayment: {InspectionDraft, InspectionExpired},
	InspectionExpired:        {InspectionDraft},
	InspectionDraft:          {InspectionInProgress},
	InspectionInProgress:     {InspectionCompleted},
	InspectionCompleted:      {InspectionSigned},
	InspectionSigned:         {InspectionArchived},
}

// CanTransitionTo reports whether next directly follows s
func (s InspectionStatus) CanTransitionTo(next InspectionStatus) bool {
	for _, allowed := range inspectionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// requiresPayment reports whether a state may only be held once paid
func (s InspectionStatus) requiresPayment() bool {
	switch s {
	case InspectionDraft, InspectionInProgress, InspectionCompleted, InspectionSigned, InspectionArchived:
		return true
	}
	return false
}

// VehicleInspection Model
type VehicleInspection struct {
	ID                   uint              `gorm:"primaryKey"`       // Primary key
	CustomerID           uint              `gorm:"index;not null"`   // Payer
	DealerID             uint              `gorm:"index;not null"`   // Split beneficiary
	InspectorID          uint              `gorm:"index;not null"`   // Executor
	Type                 InspectionType    `gorm:"size:30;not null"` // Drives fee and signatories
	VehicleMake          string            `gorm:"size:60"`          // Vehicle make
	VehicleModel         string            `gorm:"size:60"`          // Vehicle model
	VehicleYear          int               // Vehicle year
	VIN                  string            `gorm:"size:32"`                     // Vehicle identification number
	Status               InspectionStatus  `gorm:"size:20;not null;index"`      // Workflow state
	InspectionFee        decimal.Decimal   `gorm:"type:decimal(20,2);not null"` // Computed once at creation
	Currency             string            `gorm:"size:3;not null"`             // Fee currency
	PaymentStatus        PaymentStatus     `gorm:"size:20;not null"`            // Fee collection state
	PaymentTransactionID *uint             `gorm:"uniqueIndex"`                 // Set exactly once
	PaidAt               *time.Time        // Payment confirmation time
	Findings             string            `gorm:"type:text"` // Inspector report
	ConditionRating      int               // 1 to 10
	StartedAt            *time.Time        // in_progress entered
	CompletedAt          *time.Time        // completed entered
	SignedAt             *time.Time        // signed entered
	ArchivedAt           *time.Time        // archived entered
	ExpiredAt            *time.Time        // expired entered
	Photos               []InspectionPhoto `gorm:"foreignKey:InspectionID"` // Uploaded evidence
	CreatedAt            time.Time         `gorm:"autoCreateTime;index"`    // Creation time
	UpdatedAt            time.Time         `gorm:"autoUpdateTime"`          // Last change
}

// InspectionPhoto Model
type InspectionPhoto struct {
	ID           uint      `gorm:"primaryKey"`     // Primary key
	InspectionID uint      `gorm:"index;not null"` // Owning inspection
	URL          string    `gorm:"size:500;not null"`
	Caption      string    `gorm:"size:255"`
	UploadedBy   uint      // Inspector who uploaded
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// IsPaid reports whether the fee has been collected
func (i *VehicleInspection) IsPaid() bool {
	return i.PaymentStatus == PaymentPaid && i.PaymentTransactionID != nil
}

// RequirePaid is the gate for any work on the inspection
func (i *VehicleInspection) RequirePaid() error {
	if !i.IsPaid() || i.Status == InspectionPendingPayment || i.Status == InspectionExpired {
		return NewError(KindPaymentRequired, "inspection %d has not been paid", i.ID).
			WithDetail("inspection_fee", i.InspectionFee.StringFixed(2)).
			WithDetail("payment_status", i.PaymentStatus)
	}
	return nil
}

// TransitionTo moves the inspection to next, stamping the matching timestamp
func (i *VehicleInspection) TransitionTo(next InspectionStatus, now time.Time) error {
	if next.requiresPayment() && i.PaymentStatus != PaymentPaid {
		return NewError(KindPaymentRequired, "inspection %d has not been paid", i.ID)
	}
	if !i.Status.CanTransitionTo(next) {
		return NewError(KindInvalidTransition, "cannot move inspection from %s to %s", i.Status, next).
			WithDetail("status", i.Status)
	}
	i.Status = next
	switch next {
	case InspectionInProgress:
		i.StartedAt = &now
	case InspectionCompleted:
		i.CompletedAt = &now
	case InspectionSigned:
		i.SignedAt = &now
	case InspectionArchived:
		i.ArchivedAt = &now
	case InspectionExpired:
		i.ExpiredAt = &now
	}
	return nil
}

// SignerFor maps a signatory role to the user that must sign for it
func (i *VehicleInspection) SignerFor(role SignatoryRole) uint {
	switch role {
	case SignatoryInspector:
		return i.InspectorID
	case SignatoryCustomer:
		return i.CustomerID
	case SignatoryDealer:
		return i.DealerID
	}
	return 0
}
