// Package faults defines the runtime error taxonomy shared by the delivery
// pipeline and the retry machinery: transient (retry-eligible), permanent
// (terminal failure), expired (terminal lifecycle end) and unknown
// (conservatively treated as permanent to avoid infinite retry loops).
//
// Lower layers return these as values; only the recovery orchestrator is
// allowed to re-raise one to trigger platform-level redelivery.
package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind enumerates the error classes of the taxonomy.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransient
	KindPermanent
	KindExpired
)

// String returns the lowercase name of the kind, for logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindExpired:
		return "expired"
	}
	return "unknown"
}

// Fault is a classified runtime error carrying a message and an optional
// wrapped cause.
type Fault struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap exposes the cause to errors.Is/As chains.
func (f *Fault) Unwrap() error { return f.Cause }

// Transient wraps cause as a retry-eligible error.
func Transient(msg string, cause error) error {
	return &Fault{Kind: KindTransient, Message: msg, Cause: cause}
}

// Permanent wraps cause as a terminal, non-retryable failure.
func Permanent(msg string, cause error) error {
	return &Fault{Kind: KindPermanent, Message: msg, Cause: cause}
}

// Expired marks a message that passed its time-to-live. Not a delivery
// failure: an expected lifecycle end, handled by the pipeline stage itself.
func Expired(msg string) error {
	return &Fault{Kind: KindExpired, Message: msg}
}

// Unknownf builds an unclassified error; Classify maps it to the permanent
// path.
func Unknownf(format string, args ...any) error {
	return &Fault{Kind: KindUnknown, Message: fmt.Sprintf(format, args...)}
}

// Classify maps an arbitrary error to a taxonomy kind.
//
// Rules:
//   - a *Fault anywhere in the chain decides the kind,
//   - context deadline / net timeouts are transient,
//   - everything else is unknown (and thus routed to the permanent path).
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return KindTransient
	}
	return KindUnknown
}

// IsTransient reports whether err classifies as retry-eligible.
func IsTransient(err error) bool { return Classify(err) == KindTransient }

// IsExpired reports whether err marks a TTL expiry.
func IsExpired(err error) bool { return Classify(err) == KindExpired }

// FromHTTPStatus classifies a delivery response status code. 2xx is success
// (nil). 429 and 5xx may self-correct and are transient; any other non-2xx
// is permanent (a client error will not fix itself on retry).
func FromHTTPStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		return Transient(fmt.Sprintf("delivery endpoint returned %d", code), nil)
	default:
		return Permanent(fmt.Sprintf("delivery endpoint returned %d", code), nil)
	}
}
