// SQLite-backed queue service. A single table holds every queue; messages
// are claimed inside a transaction by refreshing their pop receipt and
// pushing their visibility into the future, which gives each message exactly
// one owner per visibility window. Messages that exceed the configured
// maximum dequeue count are moved to the poison table on dequeue.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

var queuePoisoned = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "queue_poison_messages_total",
		Help: "Messages moved to the poison table after exhausting their dequeue budget.",
	},
	[]string{"queue"},
)

func init() {
	prometheus.MustRegister(queuePoisoned)
}

// errPoisoned signals inside a claim transaction that the candidate was
// moved aside; the claim loop then looks at the next message.
var errPoisoned = errors.New("message poisoned")

// SQLQueue implements Queue on top of a GORM database handle.
type SQLQueue struct {
	db *gorm.DB
	// maxDequeueCount is the platform-level poison threshold; it must equal
	// the scheduler's MaxRetries+1 (validated at config load).
	maxDequeueCount int64
}

// NewSQLQueue returns a queue service backed by db.
func NewSQLQueue(db *gorm.DB, maxDequeueCount int64) *SQLQueue {
	return &SQLQueue{db: db, maxDequeueCount: maxDequeueCount}
}

// Migrate creates or updates the queue tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Message{}, &PoisonMessage{})
}

// Enqueue appends a payload to the named queue.
func (q *SQLQueue) Enqueue(ctx context.Context, queue string, payload []byte, delay time.Duration) (string, error) {
	now := time.Now().UTC()
	msg := &Message{
		ID:         uuid.NewString(),
		Queue:      queue,
		Payload:    payload,
		VisibleAt:  now.Add(delay),
		EnqueuedAt: now,
	}
	if err := q.db.WithContext(ctx).Create(msg).Error; err != nil {
		return "", err
	}
	return msg.ID, nil
}

// Dequeue claims the next visible message. Candidates whose dequeue count
// would exceed the maximum are moved to the poison table and skipped.
func (q *SQLQueue) Dequeue(ctx context.Context, queue string, visibility time.Duration) (*Message, error) {
	for {
		var msg Message
		err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := time.Now().UTC()
			if err := tx.
				Where("queue = ? AND visible_at <= ?", queue, now).
				Order("visible_at ASC, enqueued_at ASC").
				First(&msg).Error; err != nil {
				return err
			}

			if msg.DequeueCount+1 > q.maxDequeueCount {
				poison := &PoisonMessage{
					ID:           msg.ID,
					Queue:        msg.Queue,
					Payload:      msg.Payload,
					DequeueCount: msg.DequeueCount,
					EnqueuedAt:   msg.EnqueuedAt,
					PoisonedAt:   now,
				}
				if err := tx.Create(poison).Error; err != nil {
					return err
				}
				if err := tx.Delete(&Message{}, "id = ?", msg.ID).Error; err != nil {
					return err
				}
				return errPoisoned
			}

			msg.PopReceipt = uuid.NewString()
			msg.DequeueCount++
			msg.VisibleAt = now.Add(visibility)
			return tx.Model(&Message{}).Where("id = ?", msg.ID).Updates(map[string]any{
				"pop_receipt":   msg.PopReceipt,
				"dequeue_count": msg.DequeueCount,
				"visible_at":    msg.VisibleAt,
			}).Error
		})

		switch {
		case errors.Is(err, errPoisoned):
			queuePoisoned.WithLabelValues(queue).Inc()
			continue
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrEmpty
		case err != nil:
			return nil, err
		}
		return &msg, nil
	}
}

// Delete acknowledges a claimed message.
func (q *SQLQueue) Delete(ctx context.Context, queue, id, popReceipt string) error {
	res := q.db.WithContext(ctx).
		Where("queue = ? AND id = ? AND pop_receipt = ?", queue, id, popReceipt).
		Delete(&Message{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrReceiptMismatch
	}
	return nil
}

// UpdateVisibility reschedules a claimed message delay from now.
func (q *SQLQueue) UpdateVisibility(ctx context.Context, queue, id, popReceipt string, delay time.Duration) error {
	res := q.db.WithContext(ctx).
		Model(&Message{}).
		Where("queue = ? AND id = ? AND pop_receipt = ?", queue, id, popReceipt).
		Update("visible_at", time.Now().UTC().Add(delay))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrReceiptMismatch
	}
	return nil
}
