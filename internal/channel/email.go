package channel

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/civicnotify/go-notify-backend/internal/faults"
)

// EmailSender delivers messages through a single SMTP relay.
type EmailSender struct {
	addr string // host:port
	from string
	auth smtp.Auth
}

// NewEmailSender configures an SMTP sender. Username may be empty for
// relays that do not require authentication.
func NewEmailSender(host string, port int, username, password, from string) *EmailSender {
	s := &EmailSender{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
	}
	if username != "" {
		s.auth = smtp.PlainAuth("", username, password, host)
	}
	return s
}

// Send delivers d to its email address. SMTP failures are reported as
// transient: the relay is a networked dependency and the queue's backoff
// bounds how long we keep trying.
func (s *EmailSender) Send(ctx context.Context, d Delivery) error {
	if err := ctx.Err(); err != nil {
		return faults.Transient("email delivery canceled", err)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", d.Address)
	fmt.Fprintf(&msg, "Subject: %s\r\n", d.Subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(d.Body)

	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{d.Address}, []byte(msg.String())); err != nil {
		return faults.Transient("smtp send failed", err)
	}
	return nil
}
