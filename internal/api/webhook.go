package api

import (
	"errors"   // Error inspection
	"io"       // Body reading
	"net/http" // HTTP status codes

	"inspection_system/internal/gateway" // Signature header
	"inspection_system/internal/service" // Webhook dispatcher

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Structured logging
)

// maxWebhookBytes bounds an inbound event body
const maxWebhookBytes = 1 << 20

// PaymentWebhookHandler acknowledges every authenticated event with 200 and
// answers 401 only when the signature does not verify
func PaymentWebhookHandler(webhooks *service.Webhooks) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
		if err != nil {
			logrus.WithField("error", err.Error()).Warn("Webhook body unreadable")
			fail(c, http.StatusBadRequest, "invalid_body", "Unreadable body", nil)
			return
		}
		outcome, err := webhooks.Handle(c.Request.Context(), payload, c.GetHeader(gateway.SignatureHeader))
		if errors.Is(err, service.ErrWebhookSignature) {
			fail(c, http.StatusUnauthorized, "invalid_signature", "Invalid signature", nil)
			return
		}
		if err != nil {
			// Dispatcher errors are already logged with the payload
			outcome = service.WebhookFailed
		}
		ok(c, http.StatusOK, "Event received", gin.H{"outcome": outcome})
	}
}
