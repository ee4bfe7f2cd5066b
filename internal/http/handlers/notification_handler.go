// Notification HTTP handlers.
//
// This file exposes the read side of delivery state:
//   - GET /notifications/{id}/status   (latest status per channel)
//
// The delivery pipeline is the only writer of notification state; this
// endpoint surfaces what it has recorded so far.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicnotify/go-notify-backend/internal/services"
)

// NotificationService defines delivery-status queries consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type NotificationService interface {
	// Status returns the latest recorded status per channel.
	Status(ctx context.Context, notificationID string) ([]services.ChannelStatus, error)
}

// NotificationStatusResponse is the JSON envelope for per-channel delivery
// state of a single notification.
type NotificationStatusResponse struct {
	NotificationID string                   `json:"notification_id"`
	Channels       []services.ChannelStatus `json:"channels"`
}

// GetNotificationStatus returns the latest status for every channel the
// notification has been fanned out to.
func (h *Handlers) GetNotificationStatus(c *gin.Context) {
	ctx := c.Request.Context()
	notificationID := c.Param("id")

	if notificationID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "notification id required")
		return
	}

	channels, err := h.notifSvc.Status(ctx, notificationID)
	if err != nil {
		switch err {
		case services.ErrNotificationNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "notification not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, NotificationStatusResponse{
		NotificationID: notificationID,
		Channels:       channels,
	})
}
