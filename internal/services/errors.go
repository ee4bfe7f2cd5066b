// Package services defines the business logic for messages, profiles and
// notification status queries. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into HTTP status codes happens at the handler layer.
package services

import "errors"

var (
	// ErrMessageNotFound indicates that no revision exists for the
	// requested message id.
	ErrMessageNotFound = errors.New("message not found")

	// ErrProfileNotFound indicates that the recipient has no profile.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrNotificationNotFound indicates that no status chain exists for
	// the requested notification.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrEmptySubject is returned when a message is submitted without a
	// subject.
	ErrEmptySubject = errors.New("subject is empty")

	// ErrEmptyRecipient is returned when a message or profile operation
	// is missing the recipient id.
	ErrEmptyRecipient = errors.New("recipient id is empty")

	// ErrTooLong is returned when subject or body exceed the configured
	// length limits.
	ErrTooLong = errors.New("content too long")

	// ErrInvalidTTL is returned when the requested time-to-live is not
	// positive or exceeds the maximum.
	ErrInvalidTTL = errors.New("ttl out of range")

	// ErrInvalidEmail is returned when a profile enables the email
	// channel without a usable address.
	ErrInvalidEmail = errors.New("email address required when email channel is enabled")
)
