// Package channel implements the outbound delivery channels (email via
// SMTP, webhook via HTTP POST). Senders classify their failures using the
// faults taxonomy so the pipeline can decide between retry and terminal
// failure.
package channel

import "context"

// Delivery is the channel-agnostic payload of one delivery attempt.
type Delivery struct {
	// Address is the channel-specific destination: an email address or a
	// webhook URL.
	Address   string
	MessageID string
	Subject   string
	Body      string
}

// Sender delivers a message over a single channel. Errors must classify
// under the faults taxonomy (transient for conditions that may
// self-correct, permanent otherwise).
type Sender interface {
	Send(ctx context.Context, d Delivery) error
}
