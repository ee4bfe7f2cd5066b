package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestMaxRetries_DerivedFromBounds(t *testing.T) {
	// The budget is the number of doublings of MinBackoff that stay within
	// MaxBackoff.
	n := 0
	for d := MinBackoff; d*2 <= MaxBackoff; d *= 2 {
		n++
	}
	if MaxRetries != n {
		t.Fatalf("MaxRetries = %d, want %d", MaxRetries, n)
	}
	if MaxRetries != 21 {
		t.Fatalf("MaxRetries = %d, want 21 for 285ms..7d", MaxRetries)
	}
}

func TestDelayForRetry_CeilsToSeconds(t *testing.T) {
	// 285ms doubled once is 570ms, which rounds up to a whole second.
	d, ok := DelayForRetry(1)
	if !ok {
		t.Fatal("retry 1 must be within budget")
	}
	if d != time.Second {
		t.Fatalf("DelayForRetry(1) = %v, want 1s", d)
	}
	if d%time.Second != 0 {
		t.Fatalf("delay not whole seconds: %v", d)
	}
}

func TestDelayForRetry_MonotoneAndBounded(t *testing.T) {
	prev := time.Duration(0)
	for r := 0; r <= MaxRetries; r++ {
		d, ok := DelayForRetry(r)
		if !ok {
			t.Fatalf("retry %d rejected inside budget", r)
		}
		if d < prev {
			t.Fatalf("delay decreased at retry %d: %v < %v", r, d, prev)
		}
		// Ceiling to seconds adds at most one second over the raw curve.
		if d > MaxBackoff+time.Second {
			t.Fatalf("retry %d exceeds ceiling: %v", r, d)
		}
		prev = d
	}
}

func TestDelayForRetry_OutsideBudget(t *testing.T) {
	if _, ok := DelayForRetry(MaxRetries + 1); ok {
		t.Fatal("retry beyond budget must be rejected")
	}
	if _, ok := DelayForRetry(-1); ok {
		t.Fatal("negative retry must be rejected")
	}
}

// recordingQueue counts UpdateVisibility calls; other methods are unused here.
type recordingQueue struct {
	updates int
	lastDly time.Duration
	err     error
}

func (q *recordingQueue) Enqueue(context.Context, string, []byte, time.Duration) (string, error) {
	return "", nil
}
func (q *recordingQueue) Dequeue(context.Context, string, time.Duration) (*Message, error) {
	return nil, ErrEmpty
}
func (q *recordingQueue) Delete(context.Context, string, string, string) error { return nil }
func (q *recordingQueue) UpdateVisibility(_ context.Context, _ string, _ string, _ string, d time.Duration) error {
	q.updates++
	q.lastDly = d
	return q.err
}

func TestScheduleRetry_WithinBudget(t *testing.T) {
	q := &recordingQueue{}
	s := &Scheduler{Queue: q, Log: zerolog.Nop()}

	retryable, err := s.ScheduleRetry(context.Background(), "q", &Message{
		ID: "m1", PopReceipt: "pr", DequeueCount: 1,
	})
	if err != nil {
		t.Fatalf("ScheduleRetry: %v", err)
	}
	if !retryable {
		t.Fatal("first retry must be allowed")
	}
	if q.updates != 1 {
		t.Fatalf("want one visibility update, got %d", q.updates)
	}
	if q.lastDly != time.Second {
		t.Fatalf("delay = %v, want 1s for dequeue count 1", q.lastDly)
	}
}

func TestScheduleRetry_ExhaustedBudgetSkipsQueue(t *testing.T) {
	q := &recordingQueue{}
	s := &Scheduler{Queue: q, Log: zerolog.Nop()}

	retryable, err := s.ScheduleRetry(context.Background(), "q", &Message{
		ID: "m1", PopReceipt: "pr", DequeueCount: int64(MaxRetries + 1),
	})
	if err != nil {
		t.Fatalf("ScheduleRetry: %v", err)
	}
	if retryable {
		t.Fatal("exhausted budget must not be retryable")
	}
	if q.updates != 0 {
		t.Fatalf("exhausted budget must not touch the queue, got %d updates", q.updates)
	}
}

func TestScheduleRetry_NeverDequeued(t *testing.T) {
	s := &Scheduler{Queue: &recordingQueue{}, Log: zerolog.Nop()}

	_, err := s.ScheduleRetry(context.Background(), "q", &Message{ID: "m1"})
	if !errors.Is(err, ErrNeverDequeued) {
		t.Fatalf("want ErrNeverDequeued, got %v", err)
	}
}

func TestScheduleRetry_UpdateFailureStillRetryable(t *testing.T) {
	q := &recordingQueue{err: errors.New("receipt stale")}
	s := &Scheduler{Queue: q, Log: zerolog.Nop()}

	retryable, err := s.ScheduleRetry(context.Background(), "q", &Message{
		ID: "m1", PopReceipt: "pr", DequeueCount: 2,
	})
	if err != nil {
		t.Fatalf("ScheduleRetry: %v", err)
	}
	if !retryable {
		t.Fatal("a failed visibility update must not cancel the retry")
	}
}
