package gateway_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"inspection_system/internal/domain"
	"inspection_system/internal/gateway"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.HandlerFunc) *gateway.Paystack {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return gateway.NewPaystack(gateway.PaystackOptions{
		BaseURL:    srv.URL,
		SecretKey:  "sk_test_123",
		MaxRetries: 2,
		Backoff:    time.Millisecond,
	})
}

func writeEnvelope(w http.ResponseWriter, status int, ok bool, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": ok, "message": "msg", "data": data})
}

func TestInitializeSendsMinorUnits(t *testing.T) {
	var body map[string]any
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		writeEnvelope(w, http.StatusOK, true, map[string]any{
			"authorization_url": "https://checkout.paystack.com/abc",
			"access_code":       "abc",
			"reference":         "INSP-1-X",
		})
	})

	resp, err := client.Initialize(t.Context(), gateway.InitializeRequest{
		Reference: "INSP-1-X",
		Email:     "carol@example.com",
		Amount:    decimal.RequireFromString("50000.50"),
		Currency:  "NGN",
		Metadata:  map[string]string{"inspection_id": "1"},
	})
	require.NoError(t, err)
	require.Equal(t, "INSP-1-X", resp.Reference)
	require.Equal(t, "https://checkout.paystack.com/abc", resp.RedirectURL)
	require.EqualValues(t, 5000050, body["amount"])

	_, err = client.Initialize(t.Context(), gateway.InitializeRequest{Reference: "R", Amount: decimal.RequireFromString("0.001")})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestVerifyParsesMetadata(t *testing.T) {
	tests := map[string]any{
		"object":         map[string]any{"inspection_id": 42},
		"encoded string": `{"inspection_id":"42"}`,
	}
	for name, meta := range tests {
		t.Run(name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/transaction/verify/INSP-42", r.URL.Path)
				writeEnvelope(w, http.StatusOK, true, map[string]any{
					"reference": "INSP-42",
					"status":    "success",
					"amount":    2500000,
					"currency":  "NGN",
					"metadata":  meta,
				})
			})
			v, err := client.Verify(t.Context(), "INSP-42")
			require.NoError(t, err)
			require.True(t, v.Succeeded())
			require.True(t, decimal.NewFromInt(25000).Equal(v.Amount))
			id, ok := v.InspectionID()
			require.True(t, ok)
			require.EqualValues(t, 42, id)
		})
	}
}

func TestTransientFailuresAreRetried(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeEnvelope(w, http.StatusOK, true, map[string]any{"reference": "R1", "status": "abandoned", "amount": 100})
	})
	v, err := client.Verify(t.Context(), "R1")
	require.NoError(t, err)
	require.False(t, v.Succeeded())
	require.EqualValues(t, 3, calls.Load())
}

func TestGatewayUnavailableAfterRetries(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := client.Verify(t.Context(), "R1")
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	require.EqualValues(t, 3, calls.Load())
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := client.Verify(ctx, "R1")
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	require.Zero(t, calls.Load())
}

func TestRejectedRequestIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusNotFound, false, nil)
	})
	_, err := client.Verify(t.Context(), "R1")
	require.ErrorIs(t, err, domain.ErrValidation)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, "gateway_rejected", appErr.Code)
	require.EqualValues(t, 1, calls.Load())
}

func TestResolveAccount(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bank/resolve", r.URL.Path)
		assert.Equal(t, "0123456789", r.URL.Query().Get("account_number"))
		writeEnvelope(w, http.StatusOK, true, map[string]any{"account_number": "0123456789", "account_name": "DAVE DEALER"})
	})
	acct, err := client.ResolveAccount(t.Context(), "0123456789", "058")
	require.NoError(t, err)
	require.Equal(t, "DAVE DEALER", acct.AccountName)
	require.Equal(t, "058", acct.BankCode)
}

func TestWebhookSignature(t *testing.T) {
	payload := []byte(`{"event":"charge.success"}`)
	sig := hex.EncodeToString(gateway.Sign("sk_test_123", payload))
	client := gateway.NewPaystack(gateway.PaystackOptions{SecretKey: "sk_test_123"})

	require.True(t, client.VerifyWebhookSignature(payload, sig))
	require.False(t, client.VerifyWebhookSignature(payload, ""))
	require.False(t, client.VerifyWebhookSignature([]byte(`{"event":"charge.failed"}`), sig))
	require.False(t, gateway.VerifySignature("", payload, sig))
}

func TestMinorUnitConversion(t *testing.T) {
	require.True(t, decimal.RequireFromString("123.45").Equal(gateway.MinorToMajor(12345)))

	minor, ok := gateway.MajorToMinor(decimal.RequireFromString("50000"))
	require.True(t, ok)
	require.EqualValues(t, 5000000, minor)

	_, ok = gateway.MajorToMinor(decimal.RequireFromString("1.005"))
	require.False(t, ok)
}
