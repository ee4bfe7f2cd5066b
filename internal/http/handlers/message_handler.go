// Message HTTP handlers.
//
// This file exposes REST endpoints for message intake and inspection:
//   - POST /messages          (submit a message for delivery)
//   - GET  /messages/{id}     (fetch the latest revision and processing status)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (length and TTL constraints)
//   - delegate to application services (MessageService)
//   - translate service errors into stable HTTP error codes
//
// Submission is asynchronous: a 202 Accepted response only means the message
// was durably recorded and queued for resolution; delivery state is exposed
// separately via the notification status endpoint.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/civicnotify/go-notify-backend/internal/domain"
	"github.com/civicnotify/go-notify-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// MessageService defines message intake operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MessageService interface {
	// Create records a message at version 0 and enqueues it for resolution.
	Create(ctx context.Context, in services.CreateMessageInput) (*domain.Message, error)
	// Get returns the latest message revision and its processing status.
	Get(ctx context.Context, messageID, recipientID string) (*domain.Message, domain.MessageStatusValue, error)
}

//
// DTOs
//

// PostMessageRequest is the JSON payload for submitting a message.
//
// Body may be empty, in which case only the subject is delivered. TTLSeconds
// of zero selects the service default.
type PostMessageRequest struct {
	// RecipientID identifies the recipient the message is addressed to.
	RecipientID string `json:"recipient_id" binding:"required,min=1"`
	// ServiceID identifies the sending service (used for webhook routing).
	ServiceID string `json:"service_id"`
	// Subject is the short delivery headline. It must be non-empty.
	Subject string `json:"subject" binding:"required,min=1"`
	// Body is the optional full message text.
	Body string `json:"body"`
	// TTLSeconds bounds how long delivery may be retried; 0 uses the default.
	TTLSeconds int64 `json:"ttl_seconds"`
}

// PostMessageResponse is the JSON envelope for an accepted message.
type PostMessageResponse struct {
	Message *domain.Message `json:"message"`
}

// GetMessageResponse pairs the latest message revision with its latest
// recorded processing status.
type GetMessageResponse struct {
	Message *domain.Message           `json:"message"`
	Status  domain.MessageStatusValue `json:"status,omitempty"`
}

//
// Handlers
//

// PostMessage accepts a message submission and returns 202 Accepted with
// the stored revision once the message is durably queued.
func (h *Handlers) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "recipient_id and subject required")
		return
	}

	// Early size cap to fail fast at the edge; the service enforces the
	// configured limits a second time.
	maxSubject := discoverMaxSubjectRunes(h.msgSvc)
	if maxSubject > 0 && utf8.RuneCountInString(req.Subject) > maxSubject {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("subject too long: max %d runes", maxSubject))
		return
	}

	m, err := h.msgSvc.Create(ctx, services.CreateMessageInput{
		RecipientID: req.RecipientID,
		ServiceID:   req.ServiceID,
		Subject:     req.Subject,
		Body:        req.Body,
		TTLSeconds:  req.TTLSeconds,
	})
	if err != nil {
		switch err {
		case services.ErrEmptyRecipient, services.ErrEmptySubject:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "recipient_id and subject required")
		case services.ErrTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "subject or body too long")
		case services.ErrInvalidTTL:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ttl_seconds out of range")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	ok(c, http.StatusAccepted, PostMessageResponse{Message: m})
}

// GetMessage returns the latest revision of a message and its processing
// status. The recipient query parameter is required because messages are
// partitioned by recipient.
func (h *Handlers) GetMessage(c *gin.Context) {
	ctx := c.Request.Context()
	messageID := c.Param("id")
	recipientID := c.Query("recipient")

	if messageID == "" || recipientID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message id and recipient required")
		return
	}

	m, status, err := h.msgSvc.Get(ctx, messageID, recipientID)
	if err != nil {
		switch err {
		case services.ErrMessageNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, GetMessageResponse{Message: m, Status: status})
}

// discoverMaxSubjectRunes inspects the concrete MessageService for a
// configured subject-length limit. If unavailable, it returns a conservative
// fallback.
func discoverMaxSubjectRunes(msgSvc MessageService) int {
	const fallback = 120
	if ms, ok := msgSvc.(*services.MessageService); ok {
		if ms.MaxSubjectRunes > 0 {
			return ms.MaxSubjectRunes
		}
	}
	return fallback
}
