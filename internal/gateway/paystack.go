package gateway

import (
	"bytes"         // Request bodies
	"context"       // Request scoping
	"crypto/hmac"   // Webhook signatures
	"crypto/sha512" // Paystack signs with HMAC-SHA512
	"encoding/hex"  // Signature encoding
	"encoding/json" // API payloads
	"errors"        // Error inspection
	"fmt"           // Error formatting
	"io"            // Body draining
	"net/http"      // Transport
	"net/url"       // Query building
	"strings"       // Header parsing
	"time"          // Timeouts and backoff

	"inspection_system/internal/domain" // Error taxonomy

	"github.com/cenkalti/backoff/v4" // Retry with exponential backoff
	"github.com/sirupsen/logrus"     // Structured logging
)

// PaystackOptions configures the client
type PaystackOptions struct {
	BaseURL     string        // API root, default https://api.paystack.co
	SecretKey   string        // Bearer token and webhook HMAC key
	CallbackURL string        // Redirect after checkout
	Timeout     time.Duration // Per-attempt timeout, default 10s
	MaxRetries  int           // Extra attempts on transient failure
	Backoff     time.Duration // Base backoff, doubled per attempt, default 250ms
	HTTPClient  *http.Client  // Optional custom client
}

// Paystack implements Gateway against the Paystack REST API
type Paystack struct {
	opt  PaystackOptions
	http *http.Client
}

// NewPaystack returns a client with defaults applied
func NewPaystack(opt PaystackOptions) *Paystack {
	if opt.BaseURL == "" {
		opt.BaseURL = "https://api.paystack.co"
	}
	opt.BaseURL = strings.TrimRight(opt.BaseURL, "/")
	if opt.Timeout == 0 {
		opt.Timeout = 10 * time.Second
	}
	if opt.Backoff == 0 {
		opt.Backoff = 250 * time.Millisecond
	}
	if opt.MaxRetries < 0 {
		opt.MaxRetries = 0
	}
	client := opt.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opt.Timeout}
	}
	return &Paystack{opt: opt, http: client}
}

// envelope is the common Paystack response wrapper
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// errTransient marks a failure worth retrying
var errTransient = errors.New("transient gateway failure")

// Initialize starts a checkout. The reference is ours, so a retried call that
// already succeeded is rejected by the gateway as a duplicate rather than charged twice.
func (p *Paystack) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	minor, ok := MajorToMinor(req.Amount)
	if !ok || minor <= 0 {
		return nil, domain.ValidationError("amount %s cannot be charged", req.Amount.String())
	}
	body := map[string]any{
		"reference": req.Reference,
		"email":     req.Email,
		"amount":    minor,
		"currency":  req.Currency,
		"metadata":  req.Metadata,
	}
	if p.opt.CallbackURL != "" {
		body["callback_url"] = p.opt.CallbackURL
	}
	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := p.do(ctx, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return nil, err
	}
	ref := data.Reference
	if ref == "" {
		ref = req.Reference
	}
	return &InitializeResponse{Reference: ref, RedirectURL: data.AuthorizationURL, AccessCode: data.AccessCode}, nil
}

// Verify fetches the authoritative state of a reference
func (p *Paystack) Verify(ctx context.Context, reference string) (*Verification, error) {
	if reference == "" {
		return nil, domain.ValidationError("reference is required")
	}
	var data struct {
		Reference string          `json:"reference"`
		Status    string          `json:"status"`
		Amount    int64           `json:"amount"`
		Currency  string          `json:"currency"`
		Metadata  json.RawMessage `json:"metadata"`
	}
	if err := p.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &data); err != nil {
		return nil, err
	}
	v := &Verification{
		Reference: data.Reference,
		Status:    VerificationStatus(data.Status),
		Amount:    MinorToMajor(data.Amount),
		Currency:  data.Currency,
	}
	// Metadata may be an object, a JSON string, or empty
	if len(data.Metadata) > 0 {
		var meta map[string]any
		if err := json.Unmarshal(data.Metadata, &meta); err != nil {
			var encoded string
			if json.Unmarshal(data.Metadata, &encoded) == nil {
				_ = json.Unmarshal([]byte(encoded), &meta)
			}
		}
		v.Metadata = meta
	}
	return v, nil
}

// ResolveAccount looks up the account holder name
func (p *Paystack) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error) {
	q := url.Values{}
	q.Set("account_number", accountNumber)
	q.Set("bank_code", bankCode)
	var data struct {
		AccountNumber string `json:"account_number"`
		AccountName   string `json:"account_name"`
	}
	if err := p.do(ctx, http.MethodGet, "/bank/resolve?"+q.Encode(), nil, &data); err != nil {
		return nil, err
	}
	if data.AccountName == "" {
		return nil, domain.ValidationError("bank account could not be resolved")
	}
	return &ResolvedAccount{AccountNumber: data.AccountNumber, AccountName: data.AccountName, BankCode: bankCode}, nil
}

// VerifyWebhookSignature compares the hex HMAC-SHA512 of the body in constant time
func (p *Paystack) VerifyWebhookSignature(payload []byte, signature string) bool {
	return VerifySignature(p.opt.SecretKey, payload, signature)
}

// VerifySignature checks an HMAC-SHA512 hex signature
func VerifySignature(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(got, Sign(secret, payload))
}

// Sign returns the raw HMAC-SHA512 of payload
func Sign(secret string, payload []byte) []byte {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}

// do runs one API call with bounded retries on transient failures
func (p *Paystack) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}
	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := p.attempt(ctx, method, path, payload, out)
		if err != nil && !errors.Is(err, errTransient) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(p.retryPolicy(), uint64(p.opt.MaxRetries)), ctx),
		func(err error, wait time.Duration) {
			logrus.WithFields(logrus.Fields{
				"method":  method,
				"path":    redactPath(path),
				"attempt": attempts,
				"wait":    wait.String(),
				"error":   err.Error(),
			}).Warn("Payment gateway call failed, retrying")
		})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errTransient):
		return domain.NewError(domain.KindGatewayUnavailable, "payment gateway unavailable").Wrap(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.NewError(domain.KindGatewayUnavailable, "payment gateway request cancelled").Wrap(err)
	}
	return err
}

// retryPolicy doubles the wait from the configured base without jitter
func (p *Paystack) retryPolicy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.opt.Backoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0 // Bounded by MaxRetries
	b.Reset()
	return b
}

// attempt performs one HTTP round trip
func (p *Paystack) attempt(ctx context.Context, method, path string, payload []byte, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, p.opt.Timeout)
	defer cancel()
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, p.opt.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.opt.SecretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errTransient, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading body: %v", errTransient, err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: status %d", errTransient, resp.StatusCode)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.NewError(domain.KindGatewayUnavailable, "unreadable gateway response").Wrap(err)
	}
	if resp.StatusCode >= 400 || !env.Status {
		return domain.ValidationError("payment gateway rejected request: %s", env.Message).
			WithCode("gateway_rejected").
			WithDetail("gateway_status", resp.StatusCode)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// redactPath drops query strings, which may carry account numbers
func redactPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
