// Package mailer delivers contact-form notifications to the portfolio
// owner over SMTP.
package mailer

import (
	"context"
	"fmt"

	"portfolio/config"

	"github.com/wneessen/go-mail"
)

// Sender delivers one contact-form submission. No retry: a failed send is
// reported to the caller as-is.
type Sender interface {
	Send(ctx context.Context, name, email, message string) error
}

// SMTPSender sends via STARTTLS with the operator's address and app
// password. The submitter's address goes into Reply-To so the owner can
// answer directly.
type SMTPSender struct {
	cfg config.SMTPConfig
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, name, email, message string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.Email); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(s.cfg.Email); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	if err := msg.ReplyTo(email); err != nil {
		return fmt.Errorf("invalid reply-to address: %w", err)
	}
	msg.Subject(fmt.Sprintf("Portfolio Contact: %s", name))

	body := fmt.Sprintf(`New message from your portfolio:

Name: %s
Email: %s

Message:
%s
`, name, email, message)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(s.cfg.Host,
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Email),
		mail.WithPassword(s.cfg.AppPassword),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}
