package email

import (
	"context"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/lab-portal-api/internal/config"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
)

// Sender is the part of gomail.Dialer the notifier needs.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier mails the rendered payload to the lab inbox, copying the
// patient.
type SMTPNotifier struct {
	cfg      config.SMTPConfig
	notifyTo string
	sender   Sender
}

func NewSMTPNotifier(cfg config.SMTPConfig, notifyTo string) *SMTPNotifier {
	return &SMTPNotifier{
		cfg:      cfg,
		notifyTo: notifyTo,
		sender:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// WithSender swaps the transport, used by tests.
func (n *SMTPNotifier) WithSender(s Sender) *SMTPNotifier {
	n.sender = s
	return n
}

func (n *SMTPNotifier) Send(ctx context.Context, payload Payload) error {
	if err := payload.Validate(); err != nil {
		return apperrors.BadRequest(err.Error(), nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := n.Message(payload)
	if err := n.sender.DialAndSend(msg); err != nil {
		return apperrors.Upstream("smtp delivery failed", 0, err)
	}
	return nil
}

// Message builds the gomail message for payload.
func (n *SMTPNotifier) Message(payload Payload) *gomail.Message {
	to := payload[FieldToEmail]
	if to == "" {
		to = n.notifyTo
	}

	subject := n.cfg.Subject
	if subject == "" {
		subject = "Nueva solicitud"
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", to)
	if cc := payload[FieldPatientEmail]; cc != "" && cc != to {
		m.SetHeader("Cc", cc)
	}
	m.SetHeader("Subject", subject+" "+payload[FieldOrderReference])
	m.SetBody("text/plain", payload.Render())
	return m
}
