package notifier

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// placeholderSender is the address shipped in sample environments
const placeholderSender = "your-email@gmail.com"

// EmailConfig holds SMTP delivery settings
type EmailConfig struct {
	SMTPServer     string
	SMTPPort       int
	SenderEmail    string
	SenderPassword string
	Recipients     []string
}

// EmailNotifier mails the report over SMTP. The dialer upgrades with STARTTLS
// when the server offers it.
type EmailNotifier struct {
	config EmailConfig
	dialer *gomail.Dialer
	sender gomail.Sender
}

// NewEmailNotifier creates a new email notifier instance
func NewEmailNotifier(config EmailConfig) *EmailNotifier {
	return &EmailNotifier{
		config: config,
		dialer: gomail.NewDialer(config.SMTPServer, config.SMTPPort, config.SenderEmail, config.SenderPassword),
	}
}

// WithSender replaces SMTP dialing with the given sender
func (e *EmailNotifier) WithSender(sender gomail.Sender) *EmailNotifier {
	e.sender = sender
	return e
}

func (e *EmailNotifier) Name() string { return "email" }

// Configured reports whether a real sender and at least one recipient are set
func (e *EmailNotifier) Configured() bool {
	return e.config.SenderEmail != "" &&
		e.config.SenderEmail != placeholderSender &&
		len(e.config.Recipients) > 0
}

// Notify sends the composed report to every recipient
func (e *EmailNotifier) Notify(ctx context.Context, report *Report) error {
	if !e.Configured() {
		return fmt.Errorf("%w: set SENDER_EMAIL, SENDER_PASSWORD and RECIPIENT_EMAIL", ErrNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rendered := ComposeReport(report)

	m := gomail.NewMessage()
	m.SetHeader("From", e.config.SenderEmail)
	m.SetHeader("To", e.config.Recipients...)
	m.SetHeader("Subject", rendered.Subject)
	m.SetBody("text/plain", rendered.Body)

	if e.sender != nil {
		if err := gomail.Send(e.sender, m); err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	}

	if err := e.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email via %s:%d: %w", e.config.SMTPServer, e.config.SMTPPort, err)
	}
	return nil
}
