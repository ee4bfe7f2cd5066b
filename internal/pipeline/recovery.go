// Recovery orchestration: given a classified failure from a pipeline stage,
// invoke the correct side-effecting callback exactly once and decide whether
// the handler invocation is re-raised (so the queue redelivers the message)
// or ends here.
package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/civicnotify/go-notify-backend/internal/faults"
	"github.com/civicnotify/go-notify-backend/internal/queue"
)

// maxRecoveryDepth caps the retry-the-retry-recorder loop: a permanent
// failure whose status-recording callback itself keeps failing is fed back
// through the transient path at most this many times per invocation.
const maxRecoveryDepth = 3

// Recovery routes a failed processing attempt to its recovery action.
//
// Transient errors: warn, schedule backoff via the retry scheduler, invoke
// onTransient best-effort, then re-raise while the retry budget allows
// another attempt; once the budget is exhausted the message is left to the
// queue's poison handling and the invocation ends normally.
//
// Everything else (permanent, unknown, decode failures): error log, invoke
// onPermanent to record the terminal status. When recording itself fails,
// that failure is treated as a fresh transient error so the failure record
// is never silently lost.
//
// Expired messages never reach Recovery; the delivery stage records their
// terminal status directly.
type Recovery struct {
	Scheduler *queue.Scheduler
	Log       zerolog.Logger
}

// Handle runs the recovery state machine for one processing attempt. A
// non-nil return value means the caller must fail the invocation so the
// message is redelivered.
func (r *Recovery) Handle(ctx context.Context, queueName string, msg *queue.Message, cause error, onTransient, onPermanent func(context.Context) error) error {
	for depth := 0; depth < maxRecoveryDepth; depth++ {
		if faults.Classify(cause) == faults.KindTransient {
			r.Log.Warn().
				Err(cause).
				Str("queue", queueName).
				Str("message_id", msg.ID).
				Int64("dequeue_count", msg.DequeueCount).
				Msg("transient failure, scheduling retry")

			retryable, err := r.Scheduler.ScheduleRetry(ctx, queueName, msg)
			if err != nil {
				// ErrNeverDequeued: programming error, surface immediately.
				return err
			}
			if onTransient != nil {
				if terr := onTransient(ctx); terr != nil {
					r.Log.Warn().Err(terr).Str("message_id", msg.ID).
						Msg("failed to record throttled status")
				}
			}
			if retryable {
				return faults.Transient("retry scheduled", cause)
			}
			r.Log.Warn().Str("message_id", msg.ID).Msg("max retries reached, abandoning message")
			return nil
		}

		r.Log.Error().
			Err(cause).
			Str("queue", queueName).
			Str("message_id", msg.ID).
			Msg("permanent failure")

		if onPermanent == nil {
			return nil
		}
		if perr := onPermanent(ctx); perr != nil {
			// Failing to record the terminal status is itself retried as
			// if it were transient.
			cause = faults.Transient("failed to record permanent failure", perr)
			continue
		}
		return nil
	}

	return faults.Transient("recovery depth exhausted", cause)
}
