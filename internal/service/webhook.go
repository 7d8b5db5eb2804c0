package service

import (
	"context"       // Request scoping
	"encoding/json" // Payload redaction
	"errors"        // Sentinel errors

	"inspection_system/internal/gateway" // Event parsing and signatures

	"github.com/sirupsen/logrus" // Structured logging
)

// ErrWebhookSignature is returned only when the HMAC header does not match
var ErrWebhookSignature = errors.New("invalid webhook signature")

// WebhookOutcome says what the engine did with an event
type WebhookOutcome string

const (
	WebhookProcessed        WebhookOutcome = "processed"
	WebhookAlreadyProcessed WebhookOutcome = "already_processed"
	WebhookIgnored          WebhookOutcome = "ignored"
	WebhookFailed           WebhookOutcome = "failed"
)

// Webhooks authenticates gateway events and routes them to the engine
type Webhooks struct {
	gw          gateway.Gateway // Signature verification
	payments    *Payments       // charge.* events
	withdrawals *Withdrawals    // transfer.* events
}

// NewWebhooks returns the webhook dispatcher
func NewWebhooks(gw gateway.Gateway, payments *Payments, withdrawals *Withdrawals) *Webhooks {
	return &Webhooks{gw: gw, payments: payments, withdrawals: withdrawals}
}

// Handle verifies and dispatches one raw event. Only a signature mismatch is
// returned as an error; business failures are logged with the redacted payload
// and reported through the outcome so the gateway stops retrying.
func (w *Webhooks) Handle(ctx context.Context, payload []byte, signature string) (WebhookOutcome, error) {
	if !w.gw.VerifyWebhookSignature(payload, signature) {
		logrus.WithFields(logrus.Fields{
			"bytes":         len(payload),
			"has_signature": signature != "",
		}).Warn("Webhook signature rejected")
		return "", ErrWebhookSignature
	}
	ev, err := gateway.ParseWebhookEvent(payload)
	if err != nil || ev.Event == "" {
		logrus.WithField("payload", redactPayload(payload)).Warn("Malformed webhook acknowledged")
		return WebhookIgnored, nil
	}
	fields := logrus.Fields{"event": ev.Event, "reference": ev.Data.Reference}

	switch ev.Event {
	case gateway.EventChargeSuccess:
		conf, err := w.payments.ConfirmPayment(ctx, ev.Data.Reference, SourceWebhook)
		if err != nil {
			fields["error"] = err.Error()
			fields["payload"] = redactPayload(payload)
			logrus.WithFields(fields).Error("Webhook payment confirmation failed")
			return WebhookFailed, nil
		}
		if conf.AlreadyProcessed {
			logrus.WithFields(fields).Info("Webhook for already confirmed payment")
			return WebhookAlreadyProcessed, nil
		}
		return WebhookProcessed, nil
	case gateway.EventTransferSuccess, gateway.EventTransferFailed, gateway.EventTransferReversed:
		if err := w.withdrawals.HandleTransferEvent(ctx, ev.Event, ev.Data.Reference); err != nil {
			fields["error"] = err.Error()
			fields["payload"] = redactPayload(payload)
			logrus.WithFields(fields).Error("Webhook transfer reconciliation failed")
			return WebhookFailed, nil
		}
		return WebhookProcessed, nil
	}
	logrus.WithFields(fields).Info("Unhandled webhook event acknowledged")
	return WebhookIgnored, nil
}

// redactedKeys hold card and customer data that must not reach the logs
var redactedKeys = []string{"authorization", "customer", "recipient", "authorization_url"}

// redactPayload renders the event for manual replay without card or customer data
func redactPayload(payload []byte) string {
	var ev map[string]any
	if err := json.Unmarshal(payload, &ev); err != nil {
		if len(payload) > 512 {
			payload = payload[:512]
		}
		return string(payload)
	}
	if data, ok := ev["data"].(map[string]any); ok {
		for _, key := range redactedKeys {
			if _, present := data[key]; present {
				data[key] = "[redacted]"
			}
		}
	}
	out, _ := json.Marshal(ev)
	return string(out)
}
