// Exponential backoff for queue redelivery. The retry budget is derived
// from the backoff bounds rather than configured ad hoc, so the curve can
// never exceed the maximum message TTL of the domain.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

const (
	// MinBackoff is the base delay of the backoff curve.
	MinBackoff = 285 * time.Millisecond
	// MaxBackoff is the ceiling, matching the maximum message TTL (7 days).
	MaxBackoff = 7 * 24 * time.Hour
)

// MaxRetries = floor(log2(MaxBackoff/MinBackoff)). The queue's configured
// maximum dequeue count must equal MaxRetries+1, or retries either stop
// prematurely or run past the poison threshold; config.Load validates the
// equality.
var MaxRetries = func() int {
	n := 0
	for d := MinBackoff; d*2 <= MaxBackoff; d *= 2 {
		n++
	}
	return n
}()

// ErrNeverDequeued reports a scheduling request for a message whose dequeue
// count is zero. Such a message was never actually delivered to a consumer,
// so asking to back it off is a programming error.
var ErrNeverDequeued = errors.New("cannot schedule retry: message was never dequeued")

// DelayForRetry returns the redelivery delay for the given retry count,
// rounded up to whole seconds, and false once the retry budget is
// exhausted (retry > MaxRetries).
func DelayForRetry(retry int) (time.Duration, bool) {
	if retry < 0 || retry > MaxRetries {
		return 0, false
	}
	d := MinBackoff << uint(retry)
	secs := d / time.Second
	if d%time.Second != 0 {
		secs++
	}
	return secs * time.Second, true
}

// Scheduler computes backoff delays and applies them to checked-out
// messages via the queue service.
type Scheduler struct {
	Queue Queue
	Log   zerolog.Logger
}

// ScheduleRetry delays the message's next visibility according to its
// dequeue count. It returns true while the retry budget allows another
// attempt, even when the underlying visibility update fails, which is
// logged and swallowed: the message will surface again at its current
// timeout and be retried anyway, just without the intended backoff. It
// returns false, with no queue call, once retries are exhausted.
func (s *Scheduler) ScheduleRetry(ctx context.Context, queueName string, msg *Message) (bool, error) {
	if msg.DequeueCount < 1 {
		return false, ErrNeverDequeued
	}

	delay, ok := DelayForRetry(int(msg.DequeueCount))
	if !ok {
		return false, nil
	}

	if err := s.Queue.UpdateVisibility(ctx, queueName, msg.ID, msg.PopReceipt, delay); err != nil {
		s.Log.Warn().
			Err(err).
			Str("queue", queueName).
			Str("message_id", msg.ID).
			Dur("delay", delay).
			Msg("failed to update message visibility")
	}
	return true, nil
}
