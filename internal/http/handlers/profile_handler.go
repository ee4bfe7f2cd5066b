// Profile HTTP handlers.
//
// This file exposes REST endpoints for recipient delivery preferences:
//   - PUT /profiles/{recipient}           (append a new profile revision)
//   - GET /profiles/{recipient}           (latest revision)
//   - GET /profiles/{recipient}/history   (paginated revision chain)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicnotify/go-notify-backend/internal/domain"
	"github.com/civicnotify/go-notify-backend/internal/services"
	"github.com/civicnotify/go-notify-backend/internal/utils"
)

// ProfileService defines profile lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ProfileService interface {
	// Upsert appends a new profile revision for a recipient.
	Upsert(ctx context.Context, in services.UpsertProfileInput) (*domain.Profile, error)
	// Get returns the latest profile revision.
	Get(ctx context.Context, recipientID string) (*domain.Profile, error)
	// History returns a page of the profile's revision chain.
	History(ctx context.Context, recipientID string, offset, limit int) ([]domain.Profile, error)
}

// PutProfileRequest is the JSON payload for updating delivery preferences.
type PutProfileRequest struct {
	// Email is the delivery address; required when EmailEnabled is true.
	Email string `json:"email"`
	// EmailEnabled opts the recipient into the email channel.
	EmailEnabled bool `json:"email_enabled"`
	// WebhookEnabled opts the recipient into the webhook channel.
	WebhookEnabled bool `json:"webhook_enabled"`
}

// ProfileResponse is the JSON envelope for a single profile revision.
type ProfileResponse struct {
	Profile *domain.Profile `json:"profile"`
}

// ProfileHistoryResponse contains a page of profile revisions in version
// order plus the paging parameters that produced it.
type ProfileHistoryResponse struct {
	Revisions []domain.Profile `json:"revisions"`
	Offset    int              `json:"offset"`
	Limit     int              `json:"limit"`
}

// clampHistoryPage parses offset/limit from query parameters, applies sane
// defaults and caps, and returns the validated (offset, limit).
func clampHistoryPage(c *gin.Context) (offset, limit int) {
	const (
		defaultLimit = 20
		maxLimit     = 100
	)
	return utils.ClampPage(
		utils.AtoiDefault(c.Query("offset"), 0),
		utils.AtoiDefault(c.Query("limit"), defaultLimit),
		defaultLimit, maxLimit,
	)
}

// PutProfile appends a new revision of the recipient's delivery preferences.
// The first write creates version 0; later writes extend the chain.
func (h *Handlers) PutProfile(c *gin.Context) {
	ctx := c.Request.Context()
	recipientID := c.Param("recipient")

	var req PutProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid profile payload")
		return
	}

	p, err := h.profSvc.Upsert(ctx, services.UpsertProfileInput{
		RecipientID:    recipientID,
		Email:          req.Email,
		EmailEnabled:   req.EmailEnabled,
		WebhookEnabled: req.WebhookEnabled,
	})
	if err != nil {
		switch err {
		case services.ErrEmptyRecipient:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "recipient required")
		case services.ErrInvalidEmail:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "valid email required when email channel is enabled")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeUpsertFailed, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, ProfileResponse{Profile: p})
}

// GetProfile returns the latest profile revision for a recipient.
func (h *Handlers) GetProfile(c *gin.Context) {
	ctx := c.Request.Context()
	recipientID := c.Param("recipient")

	p, err := h.profSvc.Get(ctx, recipientID)
	if err != nil {
		switch err {
		case services.ErrProfileNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "profile not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, ProfileResponse{Profile: p})
}

// GetProfileHistory returns a page of the recipient's profile revision chain
// in ascending version order.
func (h *Handlers) GetProfileHistory(c *gin.Context) {
	ctx := c.Request.Context()
	recipientID := c.Param("recipient")

	offset, limit := clampHistoryPage(c)

	revs, err := h.profSvc.History(ctx, recipientID, offset, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if len(revs) == 0 && offset == 0 {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "profile not found")
		return
	}

	ok(c, http.StatusOK, ProfileHistoryResponse{
		Revisions: revs,
		Offset:    offset,
		Limit:     limit,
	})
}
