// Package queue provides the at-least-once message queue the notification
// pipeline runs on: the message envelope, the queue service contract, a
// SQLite-backed implementation with visibility timeouts and poison-message
// handling, and the exponential backoff retry scheduler.
package queue

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEmpty indicates that no message is currently visible on the queue.
	ErrEmpty = errors.New("queue is empty")

	// ErrReceiptMismatch indicates that the message no longer exists or the
	// supplied pop receipt is stale (another consumer re-claimed it).
	ErrReceiptMismatch = errors.New("message not found or pop receipt mismatch")
)

// Message is the at-least-once delivery envelope handed to consumers. The
// queue service owns its lifecycle; consumers only read the payload and may
// ask to delay the next visibility via the pop receipt.
type Message struct {
	ID    string `gorm:"type:TEXT NOT NULL;primaryKey"`
	Queue string `gorm:"type:TEXT NOT NULL;index:idx_queue_visible,priority:1"`
	// Payload is the serialized domain event.
	Payload []byte `gorm:"type:BLOB NOT NULL"`
	// PopReceipt proves receipt ownership; required to delete the message
	// or change its visibility. Refreshed on every dequeue.
	PopReceipt string `gorm:"type:TEXT NOT NULL;default:''"`
	// DequeueCount is incremented each time the message is handed out.
	DequeueCount int64     `gorm:"type:INTEGER NOT NULL;default:0"`
	VisibleAt    time.Time `gorm:"index:idx_queue_visible,priority:2"`
	EnqueuedAt   time.Time
}

// TableName implements the GORM tabler interface.
func (Message) TableName() string { return "queue_messages" }

// PoisonMessage is a message moved aside after exceeding the maximum
// dequeue count, kept for manual inspection.
type PoisonMessage struct {
	ID           string `gorm:"type:TEXT NOT NULL;primaryKey"`
	Queue        string `gorm:"type:TEXT NOT NULL;index"`
	Payload      []byte `gorm:"type:BLOB NOT NULL"`
	DequeueCount int64  `gorm:"type:INTEGER NOT NULL"`
	EnqueuedAt   time.Time
	PoisonedAt   time.Time
}

// TableName implements the GORM tabler interface.
func (PoisonMessage) TableName() string { return "queue_poison" }

// Queue is the queue-service contract consumed by workers and the retry
// scheduler.
type Queue interface {
	// Enqueue appends a payload, optionally delayed, and returns the
	// message id.
	Enqueue(ctx context.Context, queue string, payload []byte, delay time.Duration) (string, error)

	// Dequeue claims the next visible message for the given visibility
	// window, refreshing its pop receipt and incrementing its dequeue
	// count. Returns ErrEmpty when nothing is visible.
	Dequeue(ctx context.Context, queue string, visibility time.Duration) (*Message, error)

	// Delete acknowledges a message. The pop receipt must match the one
	// issued by the claiming Dequeue.
	Delete(ctx context.Context, queue, id, popReceipt string) error

	// UpdateVisibility reschedules the message to become visible again
	// delay from now.
	UpdateVisibility(ctx context.Context, queue, id, popReceipt string, delay time.Duration) error
}
