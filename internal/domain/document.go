package domain

import (
	"time" // Timestamps
)

// DocumentStatus is the lifecycle of a generated inspection document
type DocumentStatus string

const (
	DocumentGenerating DocumentStatus = "generating"
	DocumentReady      DocumentStatus = "ready"
	DocumentSigned     DocumentStatus = "signed"
)

// SignatoryRole is a party whose signature a document may require
type SignatoryRole string

const (
	SignatoryInspector SignatoryRole = "inspector"
	SignatoryCustomer  SignatoryRole = "customer"
	SignatoryDealer    SignatoryRole = "dealer"
)

// SignatureStatus is the state of one signatory slot
type SignatureStatus string

const (
	SignaturePending  SignatureStatus = "pending"
	SignatureSigned   SignatureStatus = "signed"
	SignatureRejected SignatureStatus = "rejected"
)

// SignatureEventType names an entry in the audit trail
type SignatureEventType string

const (
	EventCreated  SignatureEventType = "created"
	EventSigned   SignatureEventType = "signed"
	EventRejected SignatureEventType = "rejected"
	EventResent   SignatureEventType = "resent"
)

// InspectionDocument Model
type InspectionDocument struct {
	ID           uint               `gorm:"primaryKey"`           // Primary key
	InspectionID uint               `gorm:"uniqueIndex;not null"` // One document per inspection
	Status       DocumentStatus     `gorm:"size:20;not null"`     // Lifecycle
	DocumentHash string             `gorm:"size:64"`              // SHA-256 of Content
	Version      int                `gorm:"not null;default:1"`   // Content version
	Content      string             `gorm:"type:text" json:"-"`   // Canonical report body the hash covers
	GeneratedAt  *time.Time         // Ready time
	SignedAt     *time.Time         // Fully signed time
	Signatures   []DigitalSignature `gorm:"foreignKey:DocumentID"` // Signatory slots
	CreatedAt    time.Time          `gorm:"autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"autoUpdateTime"`
}

// DigitalSignature Model
type DigitalSignature struct {
	ID              uint            `gorm:"primaryKey"`                                  // Primary key
	DocumentID      uint            `gorm:"not null;uniqueIndex:idx_signature_doc_role"` // Owning document
	Role            SignatoryRole   `gorm:"size:20;not null;uniqueIndex:idx_signature_doc_role"`
	SignerID        uint            `gorm:"index"`            // User expected to sign
	Status          SignatureStatus `gorm:"size:20;not null"` // Slot state
	SignatureHash   string          `gorm:"size:64"`          // SHA-256 of image and submission metadata
	SignedAt        *time.Time      // Submission time
	IPAddress       string          `gorm:"size:64"`
	UserAgent       string          `gorm:"size:255"`
	IsVerified      bool            `gorm:"not null;default:false"` // Hash and format checks passed
	RejectionReason string          `gorm:"size:255"`               // Last rejection note
	CreatedAt       time.Time       `gorm:"autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime"`
}

// Complete reports whether the slot counts toward finalizing the document
func (s DigitalSignature) Complete() bool {
	return s.Status == SignatureSigned && s.IsVerified
}

// SignatureEvent Model, append-only audit log of slot changes
type SignatureEvent struct {
	ID            uint               `gorm:"primaryKey"`       // Primary key, tie-breaker for ordering
	DocumentID    uint               `gorm:"index;not null"`   // Owning document
	SignatureID   uint               `gorm:"index;not null"`   // Affected slot
	Role          SignatoryRole      `gorm:"size:20;not null"` // Slot role
	Event         SignatureEventType `gorm:"size:20;not null"` // What happened
	ActorID       uint               // User who caused it, 0 for the system
	Reason        string             `gorm:"size:255"`
	IPAddress     string             `gorm:"size:64"`
	UserAgent     string             `gorm:"size:255"`
	SignatureHash string             `gorm:"size:64"`
	OccurredAt    time.Time          `gorm:"index;not null"`
}
