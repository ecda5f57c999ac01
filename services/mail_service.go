package services

import (
	"context"
	"crypto/tls"

	"reminder-mailer/config"

	"go.uber.org/zap"
	mail "gopkg.in/gomail.v2"
)

// Message is a single plain-text email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Transport submits one message using the given credentials.
type Transport interface {
	Send(ctx context.Context, creds *config.Credentials, msg Message) error
}

// SMTPTransport delivers mail with an authenticated SMTP session per send.
type SMTPTransport struct {
	log *zap.SugaredLogger
}

// NewSMTPTransport creates a new SMTPTransport instance
func NewSMTPTransport(log *zap.SugaredLogger) *SMTPTransport {
	return &SMTPTransport{log: log}
}

// Send dials the server, sends msg and closes the session. Secure selects
// implicit TLS; otherwise STARTTLS is used when the server offers it.
func (t *SMTPTransport) Send(ctx context.Context, creds *config.Credentials, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	d := newDialer(creds)
	if creds.SkipTLSVerify {
		t.log.Warn("TLS certificate verification is DISABLED")
	}

	t.log.Debugw("Dialing SMTP server", "host", creds.Host, "port", creds.Port, "secure", creds.Secure)
	return d.DialAndSend(m)
}

func newDialer(creds *config.Credentials) *mail.Dialer {
	d := mail.NewDialer(creds.Host, creds.Port, creds.User, creds.Pass)
	d.SSL = creds.Secure
	d.TLSConfig = &tls.Config{
		ServerName:         creds.Host,
		InsecureSkipVerify: creds.SkipTLSVerify,
	}
	return d
}
