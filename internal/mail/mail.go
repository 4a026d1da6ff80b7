// Package mail renders and delivers account emails.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/iliyamo/account-service/internal/config"
)

// Message is a rendered email. It is also the payload of the outbound queue.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
	Kind    string `json:"kind"`
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// SMTPSender delivers over SMTP with gomail.
type SMTPSender struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:     cfg.FromEmail,
		fromName: cfg.FromName,
	}
}

// Send dials, sends and closes. ctx is checked before dialing only since
// gomail has no context support.
func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := buildMessage(s.from, s.fromName, m)
	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send %s to %s: %w", m.Kind, m.To, err)
	}
	return nil
}

func buildMessage(from, fromName string, m Message) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", from, fromName)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	if m.Text != "" {
		msg.SetBody("text/plain", m.Text)
		if m.HTML != "" {
			msg.AddAlternative("text/html", m.HTML)
		}
	} else {
		msg.SetBody("text/html", m.HTML)
	}
	return msg
}

// LogSender writes messages to the log instead of sending them. Used when no
// SMTP host is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, m Message) error {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "mail not sent, no transport configured",
		"to", m.To, "subject", m.Subject, "kind", m.Kind)
	l.DebugContext(ctx, "mail body", "to", m.To, "text", m.Text)
	return nil
}
