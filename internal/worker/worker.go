// Package worker runs the queue consumer loops. Each worker owns one queue:
// it claims a message, hands it to its handler and acknowledges it when the
// handler returns nil. A failing handler leaves the message checked out, so
// it surfaces again once its visibility timeout (possibly pushed out by the
// retry scheduler) elapses. That redelivery is the platform-level retry
// the recovery orchestrator re-raises into.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/civicnotify/go-notify-backend/internal/queue"
)

var (
	workerProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_messages_processed_total",
			Help: "Queue messages handled and acknowledged.",
		},
		[]string{"queue"},
	)
	workerFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_messages_failed_total",
			Help: "Handler invocations that failed and left the message for redelivery.",
		},
		[]string{"queue"},
	)
)

func init() {
	prometheus.MustRegister(workerProcessed, workerFailed)
}

// Handler processes one claimed queue message. Returning nil acknowledges
// the message; returning an error leaves it for redelivery.
type Handler func(ctx context.Context, msg *queue.Message) error

// Worker polls a single queue and dispatches claimed messages to a Handler.
type Worker struct {
	Queue        queue.Queue
	QueueName    string
	Visibility   time.Duration
	PollInterval time.Duration
	Handler      Handler
	Log          zerolog.Logger
}

// Run consumes the queue until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	poll := w.PollInterval
	if poll <= 0 {
		poll = time.Second
	}

	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := w.Queue.Dequeue(ctx, w.QueueName, w.Visibility)
		if err != nil {
			if !errors.Is(err, queue.ErrEmpty) {
				w.Log.Error().Err(err).Str("queue", w.QueueName).Msg("dequeue failed")
			}
			if !w.sleep(ctx, poll) {
				return
			}
			continue
		}

		if herr := w.Handler(ctx, msg); herr != nil {
			workerFailed.WithLabelValues(w.QueueName).Inc()
			w.Log.Warn().
				Err(herr).
				Str("queue", w.QueueName).
				Str("message_id", msg.ID).
				Int64("dequeue_count", msg.DequeueCount).
				Msg("handler failed, message left for redelivery")
			continue
		}

		if derr := w.Queue.Delete(ctx, w.QueueName, msg.ID, msg.PopReceipt); derr != nil {
			// The message will be redelivered; handlers are expected to
			// tolerate at-least-once semantics.
			w.Log.Warn().Err(derr).Str("queue", w.QueueName).Str("message_id", msg.ID).
				Msg("failed to acknowledge message")
			continue
		}
		workerProcessed.WithLabelValues(w.QueueName).Inc()
	}
}

// sleep waits for d or context cancellation; it reports false on cancel.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
