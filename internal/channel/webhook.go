package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/civicnotify/go-notify-backend/internal/faults"
)

// defaultWebhookTimeout bounds a single outbound POST. A timeout classifies
// as transient.
const defaultWebhookTimeout = 10 * time.Second

// WebhookSender POSTs the message as JSON to the notification's webhook URL.
type WebhookSender struct {
	client *http.Client
}

// webhookPayload is the wire format of a webhook delivery.
type webhookPayload struct {
	MessageID string `json:"message_id"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// NewWebhookSender builds a sender with the given client timeout; a
// non-positive timeout falls back to the default.
func NewWebhookSender(timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookSender{client: &http.Client{Timeout: timeout}}
}

// Send delivers d to its webhook URL. Connection errors and timeouts are
// transient; response codes classify via faults.FromHTTPStatus.
func (s *WebhookSender) Send(ctx context.Context, d Delivery) error {
	body, err := json.Marshal(webhookPayload{
		MessageID: d.MessageID,
		Subject:   d.Subject,
		Body:      d.Body,
	})
	if err != nil {
		return faults.Permanent("encode webhook payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Address, bytes.NewReader(body))
	if err != nil {
		return faults.Permanent("build webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return faults.Transient("webhook request failed", err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	return faults.FromHTTPStatus(resp.StatusCode)
}
