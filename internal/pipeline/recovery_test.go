package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/civicnotify/go-notify-backend/internal/faults"
	"github.com/civicnotify/go-notify-backend/internal/queue"
)

// stubQueue records visibility updates; the rest is inert.
type stubQueue struct {
	visibilityUpdates int
}

func (q *stubQueue) Enqueue(context.Context, string, []byte, time.Duration) (string, error) {
	return "", nil
}
func (q *stubQueue) Dequeue(context.Context, string, time.Duration) (*queue.Message, error) {
	return nil, queue.ErrEmpty
}
func (q *stubQueue) Delete(context.Context, string, string, string) error { return nil }
func (q *stubQueue) UpdateVisibility(context.Context, string, string, string, time.Duration) error {
	q.visibilityUpdates++
	return nil
}

func newRecovery(q queue.Queue) *Recovery {
	return &Recovery{
		Scheduler: &queue.Scheduler{Queue: q, Log: zerolog.Nop()},
		Log:       zerolog.Nop(),
	}
}

func claimedMsg(count int64) *queue.Message {
	return &queue.Message{ID: "m1", PopReceipt: "pr", DequeueCount: count}
}

func TestRecovery_TransientSchedulesAndReRaises(t *testing.T) {
	q := &stubQueue{}
	r := newRecovery(q)

	transientCalls := 0
	err := r.Handle(context.Background(), "q", claimedMsg(1),
		faults.Transient("send failed", errors.New("conn reset")),
		func(context.Context) error { transientCalls++; return nil },
		func(context.Context) error { t.Fatal("onPermanent must not run"); return nil },
	)

	if !faults.IsTransient(err) {
		t.Fatalf("want re-raised transient, got %v", err)
	}
	if transientCalls != 1 {
		t.Fatalf("onTransient calls = %d, want 1", transientCalls)
	}
	if q.visibilityUpdates != 1 {
		t.Fatalf("visibility updates = %d, want 1", q.visibilityUpdates)
	}
}

func TestRecovery_TransientBudgetExhausted(t *testing.T) {
	q := &stubQueue{}
	r := newRecovery(q)

	err := r.Handle(context.Background(), "q", claimedMsg(int64(queue.MaxRetries+1)),
		faults.Transient("send failed", nil),
		nil, nil,
	)
	if err != nil {
		t.Fatalf("exhausted budget must end the invocation, got %v", err)
	}
	if q.visibilityUpdates != 0 {
		t.Fatalf("exhausted budget must not touch the queue, got %d", q.visibilityUpdates)
	}
}

func TestRecovery_TransientNeverDequeued(t *testing.T) {
	r := newRecovery(&stubQueue{})

	err := r.Handle(context.Background(), "q", claimedMsg(0),
		faults.Transient("send failed", nil),
		nil, nil,
	)
	if !errors.Is(err, queue.ErrNeverDequeued) {
		t.Fatalf("want ErrNeverDequeued, got %v", err)
	}
}

func TestRecovery_PermanentRecordsOnce(t *testing.T) {
	r := newRecovery(&stubQueue{})

	permanentCalls := 0
	err := r.Handle(context.Background(), "q", claimedMsg(1),
		faults.Permanent("bad recipient", nil),
		func(context.Context) error { t.Fatal("onTransient must not run"); return nil },
		func(context.Context) error { permanentCalls++; return nil },
	)
	if err != nil {
		t.Fatalf("permanent failure must end the invocation, got %v", err)
	}
	if permanentCalls != 1 {
		t.Fatalf("onPermanent calls = %d, want 1", permanentCalls)
	}
}

func TestRecovery_UnknownRoutesToPermanent(t *testing.T) {
	r := newRecovery(&stubQueue{})

	permanentCalls := 0
	err := r.Handle(context.Background(), "q", claimedMsg(1),
		errors.New("unclassified"),
		nil,
		func(context.Context) error { permanentCalls++; return nil },
	)
	if err != nil {
		t.Fatalf("unknown failure must end the invocation, got %v", err)
	}
	if permanentCalls != 1 {
		t.Fatalf("onPermanent calls = %d, want 1", permanentCalls)
	}
}

func TestRecovery_FailingRecorderBecomesTransient(t *testing.T) {
	q := &stubQueue{}
	r := newRecovery(q)

	recordErr := errors.New("status write failed")
	err := r.Handle(context.Background(), "q", claimedMsg(1),
		faults.Permanent("bad recipient", nil),
		nil,
		func(context.Context) error { return recordErr },
	)

	// The failed terminal-status write is retried through the transient path
	// so the failure record is not lost silently.
	if !faults.IsTransient(err) {
		t.Fatalf("want transient re-raise, got %v", err)
	}
	if !errors.Is(err, recordErr) {
		t.Fatalf("cause lost: %v", err)
	}
	if q.visibilityUpdates != 1 {
		t.Fatalf("visibility updates = %d, want 1", q.visibilityUpdates)
	}
}

func TestRecovery_DepthIsBounded(t *testing.T) {
	// A permanent failure with no recorder and a transient loop can never
	// recurse forever; with nil onPermanent the permanent path ends at once.
	r := newRecovery(&stubQueue{})
	err := r.Handle(context.Background(), "q", claimedMsg(1),
		faults.Permanent("bad recipient", nil), nil, nil)
	if err != nil {
		t.Fatalf("nil recorder must end the invocation, got %v", err)
	}
}
