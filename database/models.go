package database

import (
	"context"
	"time"
)

// Record statuses. A record is created pending and moves to exactly one of
// the terminal statuses.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusError   = "error"
)

// CreatedChannel is the notification channel the insert trigger publishes
// new record ids on.
const CreatedChannel = "email_queue_created"

// QueuedEmail represents a row in the email_queue table
type QueuedEmail struct {
	ID        string     `json:"id"`
	To        *string    `json:"to,omitempty"`
	Subject   *string    `json:"subject,omitempty"`
	Body      *string    `json:"body,omitempty"`
	Status    string     `json:"status"`
	Error     *string    `json:"error,omitempty"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Terminal reports whether the record already carries its final status.
func (e *QueuedEmail) Terminal() bool {
	return e.Status == StatusSent || e.Status == StatusError
}

// NewEmail holds the caller supplied fields of a record to enqueue.
// Nil fields are stored as NULL.
type NewEmail struct {
	To      *string `json:"to"`
	Subject *string `json:"subject"`
	Body    *string `json:"body"`
}

// StatusUpdate is the partial write-back applied to a record. Nil pointers
// leave the matching column untouched.
type StatusUpdate struct {
	Status    string
	Error     *string
	SentAt    *time.Time
	UpdatedAt time.Time
}

// Updater is the write-back handle for one record.
type Updater interface {
	Update(ctx context.Context, u StatusUpdate) error
}
