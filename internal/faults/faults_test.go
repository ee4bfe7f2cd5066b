package faults

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

// timeoutErr implements net.Error with Timeout() == true.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify_FaultKindWins(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{Transient("t", nil), KindTransient},
		{Permanent("p", nil), KindPermanent},
		{Expired("e"), KindExpired},
		{Unknownf("u"), KindUnknown},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestClassify_WrappedFault(t *testing.T) {
	err := fmt.Errorf("outer: %w", Permanent("inner", errors.New("cause")))
	if got := Classify(err); got != KindPermanent {
		t.Fatalf("wrapped fault: got %v, want %v", got, KindPermanent)
	}
}

func TestClassify_TimeoutsAreTransient(t *testing.T) {
	if got := Classify(context.DeadlineExceeded); got != KindTransient {
		t.Fatalf("deadline: got %v", got)
	}
	if got := Classify(timeoutErr{}); got != KindTransient {
		t.Fatalf("net timeout: got %v", got)
	}
}

func TestClassify_UnknownDefault(t *testing.T) {
	if got := Classify(errors.New("boom")); got != KindUnknown {
		t.Fatalf("plain error: got %v", got)
	}
	if got := Classify(nil); got != KindUnknown {
		t.Fatalf("nil: got %v", got)
	}
}

func TestFault_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("root")
	err := Transient("wrap", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is must reach the cause")
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindTransient: "transient",
		KindPermanent: "permanent",
		KindExpired:   "expired",
		KindUnknown:   "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", k, got, want)
		}
	}
}

func TestFromHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want Kind
		nil_ bool
	}{
		{http.StatusOK, 0, true},
		{http.StatusCreated, 0, true},
		{http.StatusNoContent, 0, true},
		{http.StatusTooManyRequests, KindTransient, false},
		{http.StatusInternalServerError, KindTransient, false},
		{http.StatusBadGateway, KindTransient, false},
		{http.StatusServiceUnavailable, KindTransient, false},
		{http.StatusBadRequest, KindPermanent, false},
		{http.StatusNotFound, KindPermanent, false},
		{http.StatusUnauthorized, KindPermanent, false},
		{http.StatusGone, KindPermanent, false},
	}
	for _, tc := range cases {
		err := FromHTTPStatus(tc.code)
		if tc.nil_ {
			if err != nil {
				t.Fatalf("status %d: want nil, got %v", tc.code, err)
			}
			continue
		}
		if got := Classify(err); got != tc.want {
			t.Fatalf("status %d: got %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestIsHelpers(t *testing.T) {
	if !IsTransient(Transient("t", nil)) {
		t.Fatal("IsTransient(transient) = false")
	}
	if IsTransient(Permanent("p", nil)) {
		t.Fatal("IsTransient(permanent) = true")
	}
	if !IsExpired(Expired("e")) {
		t.Fatal("IsExpired(expired) = false")
	}
	if IsExpired(Transient("t", nil)) {
		t.Fatal("IsExpired(transient) = true")
	}
}
