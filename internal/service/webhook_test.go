package service

import (
	"encoding/hex"
	"testing"

	"inspection_system/internal/gateway"

	"github.com/stretchr/testify/require"
)

func TestWebhookSignature(t *testing.T) {
	f := newFixture(t)
	payload := []byte(`{"event":"charge.success","data":{"reference":"EXT-9"}}`)

	tests := map[string]string{
		"missing":   "",
		"not hex":   "zz",
		"wrong key": hex.EncodeToString(gateway.Sign("other", payload)),
		"truncated": hex.EncodeToString(gateway.Sign(f.gw.Secret, payload))[:64],
	}
	for name, sig := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.webhooks.Handle(t.Context(), payload, sig)
			require.ErrorIs(t, err, ErrWebhookSignature)
		})
	}
}

func TestWebhookIgnoresUnknownAndMalformedEvents(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, WebhookIgnored, f.deliver(t, "subscription.create", "SUB-1"))

	payload := []byte(`not json`)
	outcome, err := f.webhooks.Handle(t.Context(), payload, hex.EncodeToString(gateway.Sign(f.gw.Secret, payload)))
	require.NoError(t, err)
	require.Equal(t, WebhookIgnored, outcome)
}

func TestRedactPayload(t *testing.T) {
	payload := []byte(`{"event":"charge.success","data":{"reference":"R1","authorization":{"last4":"4081"},` +
		`"customer":{"email":"a@b.c"},"authorization_url":"https://checkout"}}`)
	out := redactPayload(payload)
	require.Contains(t, out, `"reference":"R1"`)
	require.NotContains(t, out, "4081")
	require.NotContains(t, out, "a@b.c")
	require.NotContains(t, out, "https://checkout")
	require.Contains(t, out, "[redacted]")

	require.Equal(t, "plain text", redactPayload([]byte("plain text")))
}
