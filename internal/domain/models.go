// Package domain defines the persistence models for the notification
// backend: recipient profiles, sender services, messages, notifications and
// their status records. Every entity is stored as an immutable chain of
// versioned revisions; the shared Revision columns carry the bookkeeping
// (deterministic id, model id, partition key, version counter) that the
// repo layer relies on for optimistic concurrency.
package domain

import (
	"fmt"
	"time"
)

// versionDigits is the zero-padded width of the version component inside a
// revision id. 16 digits keep lexicographic and numeric ordering identical
// for any version count this system can realistically produce.
const versionDigits = 16

// RevisionID builds the deterministic document id for a given model id and
// version, e.g. "msg-42-0000000000000003".
func RevisionID(modelID string, version int64) string {
	return fmt.Sprintf("%s-%0*d", modelID, versionDigits, version)
}

// Revision holds the versioning columns shared by every versioned entity.
// Rows carrying these columns are append-only: an update inserts a new row
// with version+1 and never touches an existing one. The primary key on ID
// is the optimistic-concurrency guard: two writers racing to append the
// same (model id, version) pair collide on the same ID and exactly one
// insert succeeds.
type Revision struct {
	ID           string    `json:"id"            gorm:"type:TEXT NOT NULL;primaryKey"`
	ModelID      string    `json:"model_id"      gorm:"type:TEXT NOT NULL;index"`
	PartitionKey string    `json:"partition_key" gorm:"type:TEXT NOT NULL;index"`
	Version      int64     `json:"version"       gorm:"type:INTEGER NOT NULL"`
	CreatedAt    time.Time `json:"created_at"`
}

// Rev exposes the embedded revision columns for the generic store.
func (r *Revision) Rev() *Revision { return r }

// Versioned is implemented by every entity stored through the versioned
// repository. ModelKeys returns the stable business key and the partition
// key used to route reads and writes; both always travel together (reads
// before writes are scoped per (model id, partition key) pair).
type Versioned interface {
	Rev() *Revision
	ModelKeys() (modelID, partitionKey string)
}

// Channel identifies a notification delivery channel.
type Channel string

const (
	ChannelEmail   Channel = "EMAIL"
	ChannelWebhook Channel = "WEBHOOK"
)

// Channels lists every known channel; used for exhaustive fan-out.
var Channels = []Channel{ChannelEmail, ChannelWebhook}

// NotificationStatusValue is the per-channel delivery state of a notification.
type NotificationStatusValue string

const (
	NotificationQueued        NotificationStatusValue = "QUEUED"
	NotificationSentToChannel NotificationStatusValue = "SENT_TO_CHANNEL"
	NotificationExpired       NotificationStatusValue = "EXPIRED"
	NotificationFailed        NotificationStatusValue = "FAILED"
	NotificationThrottled     NotificationStatusValue = "THROTTLED"
)

// IsTerminal reports whether the status marks the end of a notification's
// lifecycle. THROTTLED is a transient holding state, QUEUED the initial one.
func (v NotificationStatusValue) IsTerminal() bool {
	switch v {
	case NotificationSentToChannel, NotificationExpired, NotificationFailed:
		return true
	}
	return false
}

// MessageStatusValue is the processing state of an inbound message.
type MessageStatusValue string

const (
	MessageAccepted  MessageStatusValue = "ACCEPTED"
	MessageThrottled MessageStatusValue = "THROTTLED"
	MessageProcessed MessageStatusValue = "PROCESSED"
	MessageFailed    MessageStatusValue = "FAILED"
	MessageRejected  MessageStatusValue = "REJECTED"
)

// MessageKind discriminates the message payload variants. The discriminant
// must be checked exhaustively wherever code branches on message shape.
type MessageKind string

const (
	// MessageKindFull carries subject and body inline.
	MessageKindFull MessageKind = "FULL"
	// MessageKindStub references externally stored content (body empty).
	MessageKindStub MessageKind = "STUB"
)

// Profile is a recipient's notification profile, keyed by the recipient id
// (e.g. a fiscal code). It controls which channels may be used and where
// email deliveries go.
type Profile struct {
	Revision `gorm:"embedded"`

	RecipientID  string `json:"recipient_id"  gorm:"type:TEXT NOT NULL"`
	Email        string `json:"email"         gorm:"type:TEXT NOT NULL;default:''"`
	EmailEnabled bool   `json:"email_enabled" gorm:"not null;default:true"`
	// WebhookEnabled opts the recipient into webhook delivery for services
	// that expose a webhook endpoint.
	WebhookEnabled bool `json:"webhook_enabled" gorm:"not null;default:false"`
}

func (Profile) TableName() string { return "profiles" }

// ModelKeys partitions profiles by their own recipient id.
func (p *Profile) ModelKeys() (string, string) { return p.RecipientID, p.RecipientID }

// Service is a registered sender. Its webhook URL, when set, is the target
// for webhook-channel deliveries of messages it sends.
type Service struct {
	Revision `gorm:"embedded"`

	ServiceID  string `json:"service_id"  gorm:"type:TEXT NOT NULL"`
	Name       string `json:"name"        gorm:"type:TEXT NOT NULL"`
	WebhookURL string `json:"webhook_url" gorm:"type:TEXT NOT NULL;default:''"`
	Authorized bool   `json:"authorized"  gorm:"not null;default:true"`
}

func (Service) TableName() string { return "services" }

func (s *Service) ModelKeys() (string, string) { return s.ServiceID, s.ServiceID }

// Message is a citizen-facing message submitted by a service for delivery
// to a single recipient. TTL bounds how long delivery may be attempted.
type Message struct {
	Revision `gorm:"embedded"`

	MessageID   string      `json:"message_id"   gorm:"type:TEXT NOT NULL"`
	RecipientID string      `json:"recipient_id" gorm:"type:TEXT NOT NULL;index"`
	ServiceID   string      `json:"service_id"   gorm:"type:TEXT NOT NULL"`
	Kind        MessageKind `json:"kind"         gorm:"type:TEXT NOT NULL"`
	Subject     string      `json:"subject"      gorm:"type:TEXT NOT NULL"`
	Body        string      `json:"body"         gorm:"type:TEXT NOT NULL;default:''"`
	TTLSeconds  int64       `json:"ttl_seconds"  gorm:"type:INTEGER NOT NULL"`
}

func (Message) TableName() string { return "messages" }

// ModelKeys partitions messages by recipient so that per-recipient reads
// stay local.
func (m *Message) ModelKeys() (string, string) { return m.MessageID, m.RecipientID }

// ExpiresAt returns the instant delivery attempts must stop.
func (m *Message) ExpiresAt() time.Time {
	return m.CreatedAt.Add(time.Duration(m.TTLSeconds) * time.Second)
}

// Notification is the fan-out record produced when a message's recipient
// channels have been resolved. It snapshots the delivery addresses so the
// delivery stages do not re-read the profile.
type Notification struct {
	Revision `gorm:"embedded"`

	NotificationID string `json:"notification_id" gorm:"type:TEXT NOT NULL"`
	MessageID      string `json:"message_id"      gorm:"type:TEXT NOT NULL;index"`
	RecipientID    string `json:"recipient_id"    gorm:"type:TEXT NOT NULL"`
	EmailAddress   string `json:"email_address"   gorm:"type:TEXT NOT NULL;default:''"`
	WebhookURL     string `json:"webhook_url"     gorm:"type:TEXT NOT NULL;default:''"`
}

func (Notification) TableName() string { return "notifications" }

// ModelKeys partitions notifications by the message they belong to.
func (n *Notification) ModelKeys() (string, string) { return n.NotificationID, n.MessageID }

// ChannelAddress returns the delivery address for a channel and whether the
// channel is enabled for this notification.
func (n *Notification) ChannelAddress(ch Channel) (string, bool) {
	switch ch {
	case ChannelEmail:
		return n.EmailAddress, n.EmailAddress != ""
	case ChannelWebhook:
		return n.WebhookURL, n.WebhookURL != ""
	}
	return "", false
}

// NotificationStatusID composes the status model id from a notification id
// and a channel ("<notificationId>:<channel>").
func NotificationStatusID(notificationID string, ch Channel) string {
	return notificationID + ":" + string(ch)
}

// NotificationStatus records the per-channel delivery state of a
// notification. Its model id is NotificationStatusID(notification, channel),
// so each channel owns an independent version chain.
type NotificationStatus struct {
	Revision `gorm:"embedded"`

	StatusID       string                  `json:"status_id"       gorm:"type:TEXT NOT NULL"`
	NotificationID string                  `json:"notification_id" gorm:"type:TEXT NOT NULL;index"`
	MessageID      string                  `json:"message_id"      gorm:"type:TEXT NOT NULL"`
	Channel        Channel                 `json:"channel"         gorm:"type:TEXT NOT NULL"`
	Status         NotificationStatusValue `json:"status"          gorm:"type:TEXT NOT NULL"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

func (NotificationStatus) TableName() string { return "notification_status" }

func (s *NotificationStatus) ModelKeys() (string, string) { return s.StatusID, s.NotificationID }

// MessageStatus records the processing state of a message.
type MessageStatus struct {
	Revision `gorm:"embedded"`

	MessageID string             `json:"message_id" gorm:"type:TEXT NOT NULL"`
	Status    MessageStatusValue `json:"status"     gorm:"type:TEXT NOT NULL"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func (MessageStatus) TableName() string { return "message_status" }

func (s *MessageStatus) ModelKeys() (string, string) { return s.MessageID, s.MessageID }
