package domain

import (
	"testing"
	"time"
)

func TestRevisionID_Format(t *testing.T) {
	if got, want := RevisionID("msg-42", 3), "msg-42-0000000000000003"; got != want {
		t.Fatalf("RevisionID = %q, want %q", got, want)
	}
}

func TestRevisionID_OrderingMatchesVersions(t *testing.T) {
	prev := RevisionID("m", 0)
	for v := int64(1); v < 40; v++ {
		cur := RevisionID("m", v)
		if !(prev < cur) {
			t.Fatalf("ordering broken between versions %d and %d: %q !< %q", v-1, v, prev, cur)
		}
		prev = cur
	}
}

func TestNotificationStatusValue_IsTerminal(t *testing.T) {
	terminal := []NotificationStatusValue{
		NotificationSentToChannel, NotificationExpired, NotificationFailed,
	}
	open := []NotificationStatusValue{
		NotificationQueued, NotificationThrottled,
	}
	for _, v := range terminal {
		if !v.IsTerminal() {
			t.Fatalf("%s must be terminal", v)
		}
	}
	for _, v := range open {
		if v.IsTerminal() {
			t.Fatalf("%s must not be terminal", v)
		}
	}
}

func TestMessage_ExpiresAt(t *testing.T) {
	m := Message{TTLSeconds: 3600}
	m.CreatedAt = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	want := time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC)
	if got := m.ExpiresAt(); !got.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", got, want)
	}
}

func TestNotification_ChannelAddress(t *testing.T) {
	n := Notification{EmailAddress: "a@b.it"}
	if addr, ok := n.ChannelAddress(ChannelEmail); !ok || addr != "a@b.it" {
		t.Fatalf("email address: %q %v", addr, ok)
	}
	if _, ok := n.ChannelAddress(ChannelWebhook); ok {
		t.Fatal("webhook must be disabled when URL is empty")
	}
	if _, ok := n.ChannelAddress(Channel("SMS")); ok {
		t.Fatal("unknown channel must report disabled")
	}
}

func TestNotificationStatusID(t *testing.T) {
	if got, want := NotificationStatusID("ntf-1", ChannelWebhook), "ntf-1:WEBHOOK"; got != want {
		t.Fatalf("NotificationStatusID = %q, want %q", got, want)
	}
}

func TestModelKeys(t *testing.T) {
	p := &Profile{RecipientID: "r"}
	if id, pk := p.ModelKeys(); id != "r" || pk != "r" {
		t.Fatalf("profile keys: %q %q", id, pk)
	}
	m := &Message{MessageID: "m", RecipientID: "r"}
	if id, pk := m.ModelKeys(); id != "m" || pk != "r" {
		t.Fatalf("message keys: %q %q", id, pk)
	}
	n := &Notification{NotificationID: "n", MessageID: "m"}
	if id, pk := n.ModelKeys(); id != "n" || pk != "m" {
		t.Fatalf("notification keys: %q %q", id, pk)
	}
	s := &NotificationStatus{StatusID: "n:EMAIL", NotificationID: "n"}
	if id, pk := s.ModelKeys(); id != "n:EMAIL" || pk != "n" {
		t.Fatalf("status keys: %q %q", id, pk)
	}
}
