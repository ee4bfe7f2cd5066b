// Resolver stage: consumes "message created" events, reads the recipient's
// profile and the sending service, materializes a Notification with the
// resolved channel addresses, and enqueues one delivery event per enabled
// channel.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/civicnotify/go-notify-backend/internal/domain"
	"github.com/civicnotify/go-notify-backend/internal/faults"
	"github.com/civicnotify/go-notify-backend/internal/queue"
	"github.com/civicnotify/go-notify-backend/internal/repo"
)

// errNoProfile distinguishes "recipient has no profile" from other
// permanent failures so the message status can record REJECTED instead of
// FAILED.
var errNoProfile = errors.New("recipient has no profile")

// notificationID derives the notification model id from the message id.
// Deterministic derivation keeps channel resolution idempotent under
// at-least-once redelivery: a second resolution of the same message
// conflicts on version 0 and reuses the stored notification.
func notificationID(messageID string) string { return "ntf-" + messageID }

// Resolver is the first pipeline stage.
type Resolver struct {
	Messages             *MessageStore
	Profiles             *ProfileStore
	Services             *ServiceStore
	Notifications        *NotificationStore
	NotificationStatuses *NotificationStatusStore
	MessageStatuses      *MessageStatusStore
	Queue                queue.Queue
	Recovery             *Recovery
	Log                  zerolog.Logger
}

// HandleMessageCreated processes one queue message from the
// created-messages queue.
func (r *Resolver) HandleMessageCreated(ctx context.Context, msg *queue.Message) error {
	ev, err := decodeEvent[MessageCreatedEvent](msg.Payload)
	if err != nil || ev.MessageID == "" || ev.RecipientID == "" {
		droppedPayloads.WithLabelValues(QueueCreatedMessages).Inc()
		r.Log.Error().Err(err).Str("message_id", msg.ID).Msg("malformed created-message payload, dropping")
		return nil
	}

	rerr := r.resolve(ctx, ev)
	if rerr == nil {
		resolvedMessages.Inc()
		return nil
	}

	return r.Recovery.Handle(ctx, QueueCreatedMessages, msg, rerr,
		func(ctx context.Context) error {
			return r.recordMessageStatus(ctx, ev.MessageID, domain.MessageThrottled)
		},
		func(ctx context.Context) error {
			status := domain.MessageFailed
			if errors.Is(rerr, errNoProfile) {
				status = domain.MessageRejected
			}
			return r.recordMessageStatus(ctx, ev.MessageID, status)
		},
	)
}

// resolve performs the stage's domain action and returns a classified
// error on failure.
func (r *Resolver) resolve(ctx context.Context, ev MessageCreatedEvent) error {
	m, err := r.Messages.FindLastVersion(ctx, ev.MessageID, ev.RecipientID)
	if errors.Is(err, repo.ErrNotFound) {
		return faults.Permanent("message not found", err)
	}
	if err != nil {
		return faults.Transient("read message", err)
	}

	p, err := r.Profiles.FindLastVersion(ctx, ev.RecipientID, ev.RecipientID)
	if errors.Is(err, repo.ErrNotFound) {
		return faults.Permanent("profile lookup", errNoProfile)
	}
	if err != nil {
		return faults.Transient("read profile", err)
	}

	n := &domain.Notification{
		NotificationID: notificationID(ev.MessageID),
		MessageID:      ev.MessageID,
		RecipientID:    ev.RecipientID,
	}
	if p.EmailEnabled && p.Email != "" {
		n.EmailAddress = p.Email
	}
	if p.WebhookEnabled {
		svc, err := r.Services.FindLastVersion(ctx, m.ServiceID, m.ServiceID)
		switch {
		case err == nil && svc.Authorized:
			n.WebhookURL = svc.WebhookURL
		case err != nil && !errors.Is(err, repo.ErrNotFound):
			return faults.Transient("read service", err)
		}
	}

	stored, err := r.Notifications.Create(ctx, n)
	if errors.Is(err, repo.ErrConflict) {
		// Redelivery: the notification already exists, fan out from it.
		stored, err = r.Notifications.FindLastVersion(ctx, n.NotificationID, n.MessageID)
	}
	if err != nil {
		return faults.Transient("store notification", err)
	}

	enabled := make([]domain.Channel, 0, len(domain.Channels))
	for _, ch := range domain.Channels {
		if _, ok := stored.ChannelAddress(ch); ok {
			enabled = append(enabled, ch)
		}
	}
	if len(enabled) == 0 {
		return faults.Permanent("no delivery channel enabled for recipient", nil)
	}

	for _, ch := range enabled {
		payload, err := EncodeEvent(DeliveryEvent{
			NotificationID: stored.NotificationID,
			MessageID:      stored.MessageID,
			RecipientID:    stored.RecipientID,
			Channel:        ch,
		})
		if err != nil {
			return faults.Permanent("encode delivery event", err)
		}
		if _, err := r.Queue.Enqueue(ctx, QueueForChannel(ch), payload, 0); err != nil {
			return faults.Transient("enqueue delivery event", err)
		}
		if err := r.recordQueuedStatus(ctx, stored, ch); err != nil {
			return faults.Transient("record queued status", err)
		}
	}

	if err := r.recordMessageStatus(ctx, ev.MessageID, domain.MessageProcessed); err != nil {
		return faults.Transient("record processed status", err)
	}
	return nil
}

// recordQueuedStatus appends QUEUED for a channel unless the chain already
// ended in a terminal status (a redelivered resolution must not regress a
// finished delivery).
func (r *Resolver) recordQueuedStatus(ctx context.Context, n *domain.Notification, ch domain.Channel) error {
	statusID := domain.NotificationStatusID(n.NotificationID, ch)
	last, err := r.NotificationStatuses.FindLastVersion(ctx, statusID, n.NotificationID)
	if err == nil && last.Status.IsTerminal() {
		return nil
	}
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	_, err = r.NotificationStatuses.Upsert(ctx, &domain.NotificationStatus{
		StatusID:       statusID,
		NotificationID: n.NotificationID,
		MessageID:      n.MessageID,
		Channel:        ch,
		Status:         domain.NotificationQueued,
		UpdatedAt:      time.Now().UTC(),
	})
	return err
}

func (r *Resolver) recordMessageStatus(ctx context.Context, messageID string, v domain.MessageStatusValue) error {
	_, err := r.MessageStatuses.Upsert(ctx, &domain.MessageStatus{
		MessageID: messageID,
		Status:    v,
		UpdatedAt: time.Now().UTC(),
	})
	return err
}
