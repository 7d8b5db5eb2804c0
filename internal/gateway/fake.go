package gateway

import (
	"context" // Interface conformance
	"sync"    // Concurrent test access

	"inspection_system/internal/domain" // Error taxonomy

	"github.com/shopspring/decimal" // Fixed-point money
)

// Fake is an in-memory Gateway for tests and local development. Charges start
// pending after Initialize and succeed once Settle is called.
type Fake struct {
	Secret string // Webhook HMAC key

	// Optional overrides
	VerifyFunc  func(ctx context.Context, reference string) (*Verification, error)
	ResolveFunc func(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error)

	mu          sync.Mutex
	charges     map[string]*Verification
	verifyCalls map[string]int
}

// NewFake returns an empty fake gateway
func NewFake(secret string) *Fake {
	return &Fake{Secret: secret, charges: map[string]*Verification{}, verifyCalls: map[string]int{}}
}

// Initialize records a pending charge
func (f *Fake) Initialize(_ context.Context, req InitializeRequest) (*InitializeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta := map[string]any{}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	f.charges[req.Reference] = &Verification{
		Reference: req.Reference,
		Status:    StatusPending,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Metadata:  meta,
	}
	return &InitializeResponse{Reference: req.Reference, RedirectURL: "https://checkout.fake/" + req.Reference}, nil
}

// Settle marks a charge as paid with the given amount
func (f *Fake) Settle(reference string, amount decimal.Decimal, currency string, inspectionID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.charges[reference]
	if !ok {
		v = &Verification{Reference: reference, Metadata: map[string]any{}}
		f.charges[reference] = v
	}
	v.Status = StatusSuccess
	v.Amount = amount
	v.Currency = currency
	if inspectionID != 0 {
		v.Metadata["inspection_id"] = float64(inspectionID)
	}
}

// Fail marks a charge as failed
func (f *Fake) Fail(reference string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.charges[reference]; ok {
		v.Status = StatusFailed
	}
}

// Verify returns the recorded charge
func (f *Fake) Verify(ctx context.Context, reference string) (*Verification, error) {
	f.mu.Lock()
	f.verifyCalls[reference]++
	fn := f.VerifyFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, reference)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.charges[reference]
	if !ok {
		return nil, domain.ValidationError("transaction reference not found").WithCode("gateway_rejected")
	}
	cp := *v
	return &cp, nil
}

// VerifyCalls reports how many times a reference was verified
func (f *Fake) VerifyCalls(reference string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyCalls[reference]
}

// ResolveAccount resolves every ten-digit account to a fixed name
func (f *Fake) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error) {
	if f.ResolveFunc != nil {
		return f.ResolveFunc(ctx, accountNumber, bankCode)
	}
	if len(accountNumber) != 10 {
		return nil, domain.ValidationError("bank account could not be resolved")
	}
	return &ResolvedAccount{AccountNumber: accountNumber, AccountName: "TEST ACCOUNT " + accountNumber[6:], BankCode: bankCode}, nil
}

// VerifyWebhookSignature uses the same HMAC scheme as the real client
func (f *Fake) VerifyWebhookSignature(payload []byte, signature string) bool {
	return VerifySignature(f.Secret, payload, signature)
}
