package services

import (
	"context"
	"fmt"
	"time"

	"reminder-mailer/config"
	"reminder-mailer/database"
	"reminder-mailer/metrics"

	"go.uber.org/zap"
)

// DefaultSubject is used for records created without a subject.
const DefaultSubject = "Reminder"

// Processor turns newly created queue records into sent mail.
type Processor struct {
	smtp      config.SMTPConfig
	transport Transport
	log       *zap.SugaredLogger
	now       func() time.Time
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithClock overrides the time source used for status timestamps.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a new Processor instance
func NewProcessor(smtp config.SMTPConfig, transport Transport, log *zap.SugaredLogger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		smtp:      smtp,
		transport: transport,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SendQueuedEmail handles one newly created record. It performs at most one
// SMTP submission and exactly one write-back through ref. Validation,
// configuration and delivery failures are recorded on the record and not
// returned; the returned error only reports a failed write-back.
func (p *Processor) SendQueuedEmail(ctx context.Context, rec *database.QueuedEmail, ref database.Updater) error {
	if rec == nil {
		rec = &database.QueuedEmail{}
	}
	to := valueOr(rec.To, "")
	subject := valueOr(rec.Subject, DefaultSubject)
	body := valueOr(rec.Body, "")

	if to == "" {
		return p.fail(ctx, rec.ID, ref, &ValidationError{Msg: MissingRecipientMessage})
	}

	creds, err := p.smtp.Resolve()
	if err != nil {
		return p.fail(ctx, rec.ID, ref, err)
	}

	start := time.Now()
	err = p.transport.Send(ctx, creds, Message{
		From:    creds.User,
		To:      to,
		Subject: subject,
		Body:    body,
	})
	metrics.SMTPSendDuration.WithLabelValues(creds.Host).Observe(time.Since(start).Seconds())
	if err != nil {
		return p.fail(ctx, rec.ID, ref, &DeliveryError{Err: err})
	}

	now := p.now()
	if err := ref.Update(ctx, database.StatusUpdate{
		Status:    database.StatusSent,
		SentAt:    &now,
		UpdatedAt: now,
	}); err != nil {
		metrics.WriteBackFailures.Inc()
		return fmt.Errorf("failed to record sent status for %s: %w", rec.ID, err)
	}

	metrics.EmailsProcessed.WithLabelValues(database.StatusSent, "none").Inc()
	p.log.Infow("Email sent", "id", rec.ID, "to", to)
	return nil
}

// fail records cause on the record as its terminal error.
func (p *Processor) fail(ctx context.Context, id string, ref database.Updater, cause error) error {
	kind := ErrorKind(cause)
	msg := cause.Error()
	p.log.Warnw("Email not sent", "id", id, "kind", kind, "error", msg)

	if err := ref.Update(ctx, database.StatusUpdate{
		Status:    database.StatusError,
		Error:     &msg,
		UpdatedAt: p.now(),
	}); err != nil {
		metrics.WriteBackFailures.Inc()
		return fmt.Errorf("failed to record %s error for %s: %w", kind, id, err)
	}

	metrics.EmailsProcessed.WithLabelValues(database.StatusError, kind).Inc()
	return nil
}

// valueOr returns def for nil or empty values.
func valueOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}
