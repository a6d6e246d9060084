// Package mailer delivers account e-mails: SMTP through gomail when a relay
// is configured, the service log otherwise.
package mailer

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/dmitrijs2005/securenotes/internal/logging"
)

// Mailer sends the password-reset link to an address.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
}

// SMTPOptions configures the relay.
type SMTPOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// dialAndSend is a seam for tests.
var dialAndSend = func(d *gomail.Dialer, m ...*gomail.Message) error {
	return d.DialAndSend(m...)
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	logger logging.Logger
}

func NewSMTPMailer(opts SMTPOptions, logger logging.Logger) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(opts.Host, opts.Port, opts.User, opts.Password),
		from:   opts.From,
		logger: logger,
	}
}

const resetBody = `<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
<h2>Reset your SecureNotes password</h2>
<p>Follow the link below to choose a new password:</p>
<p><a href="%[1]s">%[1]s</a></p>
<p>The link expires in 30 minutes. If you did not ask for it, ignore this e-mail.</p>
</div>`

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Reset your password")
	msg.SetBody("text/html", fmt.Sprintf(resetBody, link))

	if err := dialAndSend(m.dialer, msg); err != nil {
		m.logger.Error(ctx, "password reset mail failed", "to", to, "error", err)
		return fmt.Errorf("send mail: %w", err)
	}
	m.logger.Info(ctx, "password reset mail sent", "to", to)
	return nil
}

// LogMailer writes the link to the log. It stands in for SMTP in
// development.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	m.logger.Info(ctx, "password reset link", "to", to, "link", link)
	return nil
}
