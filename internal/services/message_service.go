// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// accepts citizen messages for delivery. It validates inputs, appends the
// message and its ACCEPTED status through the versioned store, and enqueues
// the "message created" event that starts the notification pipeline.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// message/recipient identifiers.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/civicnotify/go-notify-backend/internal/domain"
	"github.com/civicnotify/go-notify-backend/internal/pipeline"
	"github.com/civicnotify/go-notify-backend/internal/queue"
	"github.com/civicnotify/go-notify-backend/internal/repo"
)

// MessageService owns the intake lifecycle of messages.
type MessageService struct {
	Messages *pipeline.MessageStore
	Statuses *pipeline.MessageStatusStore
	Queue    queue.Queue

	// Guards
	MaxSubjectRunes int
	MaxBodyRunes    int

	// TTL policy
	DefaultTTL time.Duration
	MaxTTL     time.Duration
}

// CreateMessageInput is the validated submission payload.
type CreateMessageInput struct {
	RecipientID string
	ServiceID   string
	Subject     string
	Body        string
	TTLSeconds  int64
}

// Create validates the submission, appends the message at version 0,
// records the ACCEPTED status and enqueues the created event. The stored
// message revision is returned.
func (s *MessageService) Create(ctx context.Context, in CreateMessageInput) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("recipient.id", in.RecipientID),
			attribute.String("service.id", in.ServiceID),
		),
	)
	defer span.End()

	in.Subject = strings.TrimSpace(in.Subject)
	if strings.TrimSpace(in.RecipientID) == "" {
		return nil, ErrEmptyRecipient
	}
	if in.Subject == "" {
		return nil, ErrEmptySubject
	}
	if s.MaxSubjectRunes > 0 && utf8.RuneCountInString(in.Subject) > s.MaxSubjectRunes {
		return nil, ErrTooLong
	}
	if s.MaxBodyRunes > 0 && utf8.RuneCountInString(in.Body) > s.MaxBodyRunes {
		return nil, ErrTooLong
	}

	ttl := in.TTLSeconds
	if ttl == 0 {
		ttl = int64(s.DefaultTTL / time.Second)
	}
	if ttl <= 0 || (s.MaxTTL > 0 && ttl > int64(s.MaxTTL/time.Second)) {
		return nil, ErrInvalidTTL
	}

	kind := domain.MessageKindFull
	if in.Body == "" {
		kind = domain.MessageKindStub
	}

	msg := &domain.Message{
		MessageID:   uuid.NewString(),
		RecipientID: in.RecipientID,
		ServiceID:   in.ServiceID,
		Kind:        kind,
		Subject:     in.Subject,
		Body:        in.Body,
		TTLSeconds:  ttl,
	}
	stored, err := s.Messages.Create(ctx, msg)
	if err != nil {
		return nil, err
	}

	if _, err := s.Statuses.Upsert(ctx, &domain.MessageStatus{
		MessageID: stored.MessageID,
		Status:    domain.MessageAccepted,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	payload, err := pipeline.EncodeEvent(pipeline.MessageCreatedEvent{
		MessageID:   stored.MessageID,
		RecipientID: stored.RecipientID,
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.Queue.Enqueue(ctx, pipeline.QueueCreatedMessages, payload, 0); err != nil {
		return nil, err
	}

	return stored, nil
}

// Get returns the latest revision of a message together with its latest
// processing status (empty when no status was recorded yet).
func (s *MessageService) Get(ctx context.Context, messageID, recipientID string) (*domain.Message, domain.MessageStatusValue, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("message.id", messageID)),
	)
	defer span.End()

	m, err := s.Messages.FindLastVersion(ctx, messageID, recipientID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, "", ErrMessageNotFound
	}
	if err != nil {
		return nil, "", err
	}

	st, err := s.Statuses.FindLastVersion(ctx, messageID, messageID)
	if errors.Is(err, repo.ErrNotFound) {
		return m, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return m, st.Status, nil
}
