// Package services – NotificationService
//
// Read-side queries over notification delivery state: the latest per-channel
// status for a notification. Delivery state is only ever written by the
// pipeline; this service exposes it to the API layer.
package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/civicnotify/go-notify-backend/internal/domain"
	"github.com/civicnotify/go-notify-backend/internal/pipeline"
	"github.com/civicnotify/go-notify-backend/internal/repo"
)

// NotificationService answers delivery-status queries.
type NotificationService struct {
	Statuses *pipeline.NotificationStatusStore
}

// ChannelStatus pairs a channel with its latest recorded status.
type ChannelStatus struct {
	Channel   domain.Channel                 `json:"channel"`
	Status    domain.NotificationStatusValue `json:"status"`
	Version   int64                          `json:"version"`
	UpdatedAt string                         `json:"updated_at"`
}

// Status returns the latest status per channel for a notification. It
// returns ErrNotificationNotFound when no channel has any recorded status.
func (s *NotificationService) Status(ctx context.Context, notificationID string) ([]ChannelStatus, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "Status",
		trace.WithAttributes(attribute.String("notification.id", notificationID)),
	)
	defer span.End()

	out := make([]ChannelStatus, 0, len(domain.Channels))
	for _, ch := range domain.Channels {
		statusID := domain.NotificationStatusID(notificationID, ch)
		st, err := s.Statuses.FindLastVersion(ctx, statusID, notificationID)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ChannelStatus{
			Channel:   ch,
			Status:    st.Status,
			Version:   st.Version,
			UpdatedAt: st.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	if len(out) == 0 {
		return nil, ErrNotificationNotFound
	}
	return out, nil
}
