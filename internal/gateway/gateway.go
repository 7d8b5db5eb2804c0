// Package gateway is the adapter to the external card/bank payment processor.
package gateway

import (
	"context"       // Request scoping
	"encoding/json" // Webhook decoding
	"strconv"       // Metadata id parsing

	"github.com/shopspring/decimal" // Fixed-point money
)

// VerificationStatus is the gateway's view of a charge
type VerificationStatus string

const (
	StatusSuccess   VerificationStatus = "success"
	StatusFailed    VerificationStatus = "failed"
	StatusAbandoned VerificationStatus = "abandoned"
	StatusPending   VerificationStatus = "pending"
)

// Webhook event names
const (
	EventChargeSuccess    = "charge.success"
	EventTransferSuccess  = "transfer.success"
	EventTransferFailed   = "transfer.failed"
	EventTransferReversed = "transfer.reversed"
)

// SignatureHeader carries the HMAC of the raw webhook body
const SignatureHeader = "X-Paystack-Signature"

// Gateway is everything the engine consumes from the payment processor
type Gateway interface {
	// Initialize starts a checkout and returns where to send the customer
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResponse, error)
	// Verify asks the gateway for the authoritative state of a reference
	Verify(ctx context.Context, reference string) (*Verification, error)
	// ResolveAccount returns the registered name of a bank account
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error)
	// VerifyWebhookSignature checks the HMAC header of an inbound event
	VerifyWebhookSignature(payload []byte, signature string) bool
}

// InitializeRequest describes a charge to start
type InitializeRequest struct {
	Reference string            // Our reference, unique per attempt
	Email     string            // Customer email for the checkout page
	Amount    decimal.Decimal   // Major units
	Currency  string            // ISO code
	Metadata  map[string]string // Echoed back on verify and webhook
}

// InitializeResponse is the checkout handle
type InitializeResponse struct {
	Reference   string `json:"reference"`
	RedirectURL string `json:"redirect_url"`
	AccessCode  string `json:"access_code,omitempty"`
}

// Verification is the result of verifying a reference
type Verification struct {
	Reference string             `json:"reference"`
	Status    VerificationStatus `json:"status"`
	Amount    decimal.Decimal    `json:"amount"` // Major units
	Currency  string             `json:"currency"`
	Metadata  map[string]any     `json:"metadata,omitempty"`
}

// Succeeded reports a successful charge
func (v *Verification) Succeeded() bool { return v != nil && v.Status == StatusSuccess }

// InspectionID reads the inspection id echoed back in metadata
func (v *Verification) InspectionID() (uint, bool) {
	if v == nil || v.Metadata == nil {
		return 0, false
	}
	return metadataUint(v.Metadata["inspection_id"])
}

// ResolvedAccount is a bank account as known to the gateway
type ResolvedAccount struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	BankCode      string `json:"bank_code"`
}

// WebhookEvent is the envelope of an inbound gateway notification
type WebhookEvent struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

// WebhookData is the subset of event data the engine acts on
type WebhookData struct {
	Reference string          `json:"reference"`
	Amount    int64           `json:"amount"` // Minor units
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	Metadata  json.RawMessage `json:"metadata"`
}

// ParseWebhookEvent decodes a raw webhook body
func ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// MinorToMajor converts kobo/cents to major units
func MinorToMajor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(-2)
}

// MajorToMinor converts major units to kobo/cents, refusing fractional cents
func MajorToMinor(amount decimal.Decimal) (int64, bool) {
	shifted := amount.Shift(2)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, false
	}
	return shifted.IntPart(), true
}

// metadataUint accepts the id as a JSON number or string
func metadataUint(v any) (uint, bool) {
	switch id := v.(type) {
	case float64:
		if id > 0 {
			return uint(id), true
		}
	case string:
		n, err := strconv.ParseUint(id, 10, 64)
		if err == nil && n > 0 {
			return uint(n), true
		}
	case json.Number:
		n, err := strconv.ParseUint(id.String(), 10, 64)
		if err == nil && n > 0 {
			return uint(n), true
		}
	}
	return 0, false
}
