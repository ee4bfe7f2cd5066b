// Package services – ProfileService
//
// Owns recipient profiles: upserts append a new revision to the profile's
// version chain, reads return the latest revision, and History exposes the
// full chain for audit.
package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/civicnotify/go-notify-backend/internal/domain"
	"github.com/civicnotify/go-notify-backend/internal/pipeline"
	"github.com/civicnotify/go-notify-backend/internal/repo"
)

// ProfileService owns recipient profile reads and writes.
type ProfileService struct {
	Profiles *pipeline.ProfileStore
}

// UpsertProfileInput is the validated profile payload.
type UpsertProfileInput struct {
	RecipientID    string
	Email          string
	EmailEnabled   bool
	WebhookEnabled bool
}

// Upsert appends a new profile revision (version 0 on first write).
func (s *ProfileService) Upsert(ctx context.Context, in UpsertProfileInput) (*domain.Profile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "Upsert",
		trace.WithAttributes(attribute.String("recipient.id", in.RecipientID)),
	)
	defer span.End()

	if strings.TrimSpace(in.RecipientID) == "" {
		return nil, ErrEmptyRecipient
	}
	in.Email = strings.TrimSpace(in.Email)
	if in.EmailEnabled && (in.Email == "" || !strings.Contains(in.Email, "@")) {
		return nil, ErrInvalidEmail
	}

	return s.Profiles.Upsert(ctx, &domain.Profile{
		RecipientID:    in.RecipientID,
		Email:          in.Email,
		EmailEnabled:   in.EmailEnabled,
		WebhookEnabled: in.WebhookEnabled,
	})
}

// Get returns the latest profile revision for a recipient.
func (s *ProfileService) Get(ctx context.Context, recipientID string) (*domain.Profile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("recipient.id", recipientID)),
	)
	defer span.End()

	p, err := s.Profiles.FindLastVersion(ctx, recipientID, recipientID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	return p, err
}

// History returns a page of the profile's revision chain in version order.
func (s *ProfileService) History(ctx context.Context, recipientID string, offset, limit int) ([]domain.Profile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(
			attribute.String("recipient.id", recipientID),
			attribute.Int("offset", offset),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.Profiles.ListVersions(ctx, recipientID, recipientID, offset, limit)
}
