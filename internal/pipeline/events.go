// Package pipeline implements the queue-driven notification pipeline: the
// stage that resolves a created message into per-channel notifications, the
// per-channel delivery stage, and the recovery orchestrator that decides
// between retry-with-backoff and terminal failure recording.
//
// Every stage follows the same skeleton: decode the incoming event payload
// (a malformed payload is logged and dropped; it can never succeed), run
// the stage's domain action, and route any failure through Recovery.
package pipeline

import (
	"encoding/json"

	"github.com/civicnotify/go-notify-backend/internal/domain"
	"github.com/civicnotify/go-notify-backend/internal/repo"
)

// Queue names of the three pipeline stages.
const (
	QueueCreatedMessages      = "created-messages"
	QueueEmailNotifications   = "email-notifications"
	QueueWebhookNotifications = "webhook-notifications"
)

// QueueForChannel maps a delivery channel to its stage queue.
func QueueForChannel(ch domain.Channel) string {
	if ch == domain.ChannelWebhook {
		return QueueWebhookNotifications
	}
	return QueueEmailNotifications
}

// MessageCreatedEvent triggers channel resolution for a freshly accepted
// message.
type MessageCreatedEvent struct {
	MessageID   string `json:"message_id"`
	RecipientID string `json:"recipient_id"`
}

// DeliveryEvent triggers one delivery attempt of a notification over a
// single channel.
type DeliveryEvent struct {
	NotificationID string         `json:"notification_id"`
	MessageID      string         `json:"message_id"`
	RecipientID    string         `json:"recipient_id"`
	Channel        domain.Channel `json:"channel"`
}

// EncodeEvent serializes an event payload for enqueueing.
func EncodeEvent(v any) ([]byte, error) { return json.Marshal(v) }

// decodeEvent parses a queue payload into the expected event type.
func decodeEvent[T any](payload []byte) (T, error) {
	var ev T
	err := json.Unmarshal(payload, &ev)
	return ev, err
}

// Store aliases for the versioned stores the pipeline writes through.
type (
	MessageStore            = repo.VersionedStore[domain.Message, *domain.Message]
	ProfileStore            = repo.VersionedStore[domain.Profile, *domain.Profile]
	ServiceStore            = repo.VersionedStore[domain.Service, *domain.Service]
	NotificationStore       = repo.VersionedStore[domain.Notification, *domain.Notification]
	NotificationStatusStore = repo.VersionedStore[domain.NotificationStatus, *domain.NotificationStatus]
	MessageStatusStore      = repo.VersionedStore[domain.MessageStatus, *domain.MessageStatus]
)
