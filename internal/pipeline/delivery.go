// Delivery stage: consumes per-channel delivery events, sends the message
// through the channel's sender and records the resulting notification
// status. Failures are classified and routed through Recovery; expiry is a
// terminal lifecycle end handled here, never retried.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/civicnotify/go-notify-backend/internal/channel"
	"github.com/civicnotify/go-notify-backend/internal/domain"
	"github.com/civicnotify/go-notify-backend/internal/faults"
	"github.com/civicnotify/go-notify-backend/internal/queue"
	"github.com/civicnotify/go-notify-backend/internal/repo"
)

// Delivery is the per-channel delivery stage. One instance serves every
// channel; the queue name handed to Handle selects which.
type Delivery struct {
	Messages      *MessageStore
	Notifications *NotificationStore
	Statuses      *NotificationStatusStore
	Senders       map[domain.Channel]channel.Sender
	Recovery      *Recovery
	Log           zerolog.Logger
}

// Handle processes one delivery event from queueName.
func (d *Delivery) Handle(ctx context.Context, queueName string, msg *queue.Message) error {
	ev, err := decodeEvent[DeliveryEvent](msg.Payload)
	if err != nil || ev.NotificationID == "" || ev.MessageID == "" {
		droppedPayloads.WithLabelValues(queueName).Inc()
		d.Log.Error().Err(err).Str("message_id", msg.ID).Msg("malformed delivery payload, dropping")
		return nil
	}

	// Redelivered events for an already finished delivery are dropped so
	// the latest status never regresses from a terminal value.
	statusID := domain.NotificationStatusID(ev.NotificationID, ev.Channel)
	if last, err := d.Statuses.FindLastVersion(ctx, statusID, ev.NotificationID); err == nil && last.Status.IsTerminal() {
		d.Log.Debug().
			Str("notification_id", ev.NotificationID).
			Str("channel", string(ev.Channel)).
			Str("status", string(last.Status)).
			Msg("delivery already terminal, skipping")
		return nil
	}

	aerr := d.attempt(ctx, ev)
	switch {
	case aerr == nil:
		if err := d.recordStatus(ctx, ev, domain.NotificationSentToChannel); err != nil {
			// Redelivery will re-check the chain and re-record; the send
			// itself is idempotent-safe in this domain.
			return err
		}
		deliveryOutcomes.WithLabelValues(string(ev.Channel), "sent").Inc()
		return nil

	case faults.IsExpired(aerr):
		if err := d.recordStatus(ctx, ev, domain.NotificationExpired); err != nil {
			return err
		}
		deliveryOutcomes.WithLabelValues(string(ev.Channel), "expired").Inc()
		return nil

	default:
		deliveryOutcomes.WithLabelValues(string(ev.Channel), faults.Classify(aerr).String()).Inc()
		return d.Recovery.Handle(ctx, queueName, msg, aerr,
			func(ctx context.Context) error {
				return d.recordStatus(ctx, ev, domain.NotificationThrottled)
			},
			func(ctx context.Context) error {
				return d.recordStatus(ctx, ev, domain.NotificationFailed)
			},
		)
	}
}

// attempt performs one delivery try and returns a classified error.
func (d *Delivery) attempt(ctx context.Context, ev DeliveryEvent) error {
	m, err := d.Messages.FindLastVersion(ctx, ev.MessageID, ev.RecipientID)
	if errors.Is(err, repo.ErrNotFound) {
		return faults.Permanent("message not found", err)
	}
	if err != nil {
		return faults.Transient("read message", err)
	}

	if !time.Now().UTC().Before(m.ExpiresAt()) {
		return faults.Expired("message passed its time-to-live")
	}

	n, err := d.Notifications.FindLastVersion(ctx, ev.NotificationID, ev.MessageID)
	if errors.Is(err, repo.ErrNotFound) {
		return faults.Permanent("notification not found", err)
	}
	if err != nil {
		return faults.Transient("read notification", err)
	}

	addr, ok := n.ChannelAddress(ev.Channel)
	if !ok {
		return faults.Permanent("channel not configured for notification", nil)
	}
	sender, ok := d.Senders[ev.Channel]
	if !ok {
		return faults.Permanent("no sender registered for channel", nil)
	}

	var body string
	switch m.Kind {
	case domain.MessageKindFull:
		body = m.Body
	case domain.MessageKindStub:
		// Content lives out of band; deliver subject-only.
		body = ""
	default:
		return faults.Unknownf("unknown message kind %q", m.Kind)
	}

	return sender.Send(ctx, channel.Delivery{
		Address:   addr,
		MessageID: m.MessageID,
		Subject:   m.Subject,
		Body:      body,
	})
}

func (d *Delivery) recordStatus(ctx context.Context, ev DeliveryEvent, v domain.NotificationStatusValue) error {
	_, err := d.Statuses.Upsert(ctx, &domain.NotificationStatus{
		StatusID:       domain.NotificationStatusID(ev.NotificationID, ev.Channel),
		NotificationID: ev.NotificationID,
		MessageID:      ev.MessageID,
		Channel:        ev.Channel,
		Status:         v,
		UpdatedAt:      time.Now().UTC(),
	})
	return err
}
