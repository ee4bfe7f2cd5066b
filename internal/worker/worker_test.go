package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/civicnotify/go-notify-backend/internal/queue"
)

func newWorkerQueue(t *testing.T) *queue.SQLQueue {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("worker_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := queue.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return queue.NewSQLQueue(db, 5)
}

func TestWorker_ProcessesAndAcks(t *testing.T) {
	q := newWorkerQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := q.Enqueue(ctx, "jobs", []byte("payload"), 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	var handled atomic.Int32
	w := &Worker{
		Queue:        q,
		QueueName:    "jobs",
		Visibility:   time.Minute,
		PollInterval: 5 * time.Millisecond,
		Handler: func(_ context.Context, msg *queue.Message) error {
			if string(msg.Payload) != "payload" {
				t.Errorf("unexpected payload %q", msg.Payload)
			}
			handled.Add(1)
			return nil
		},
		Log: zerolog.Nop(),
	}

	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()

	deadline := time.After(2 * time.Second)
	for handled.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("message never handled")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if n := handled.Load(); n != 1 {
		t.Fatalf("handled %d times, want 1", n)
	}
	// Acked: nothing left to claim.
	if _, err := q.Dequeue(context.Background(), "jobs", time.Minute); !errors.Is(err, queue.ErrEmpty) {
		t.Fatalf("message not acknowledged: %v", err)
	}
}

func TestWorker_FailingHandlerLeavesMessage(t *testing.T) {
	q := newWorkerQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := q.Enqueue(ctx, "jobs", []byte("p"), 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	var calls atomic.Int32
	w := &Worker{
		Queue:        q,
		QueueName:    "jobs",
		Visibility:   0, // immediately reclaimable
		PollInterval: 5 * time.Millisecond,
		Handler: func(context.Context, *queue.Message) error {
			calls.Add(1)
			return errors.New("handler boom")
		},
		Log: zerolog.Nop(),
	}

	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()

	deadline := time.After(2 * time.Second)
	for calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("message not redelivered, calls = %d", calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestWorker_StopsOnCancel(t *testing.T) {
	q := newWorkerQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		Queue:        q,
		QueueName:    "jobs",
		Visibility:   time.Minute,
		PollInterval: 5 * time.Millisecond,
		Handler:      func(context.Context, *queue.Message) error { return nil },
		Log:          zerolog.Nop(),
	}

	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
