package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no record matches the given id.
	ErrNotFound = errors.New("email record not found")
	// ErrNotPending is returned when a write-back targets a record that is
	// missing or already terminal.
	ErrNotPending = errors.New("email record is not pending")
)

const selectColumns = `SELECT id, "to", subject, body, status, error, sent_at, updated_at, created_at FROM email_queue`

// QueueStore persists queued email records in PostgreSQL.
type QueueStore struct {
	db *sql.DB
}

// NewQueueStore creates a new QueueStore instance
func NewQueueStore(db *sql.DB) *QueueStore {
	return &QueueStore{db: db}
}

// Ping checks that the database is reachable.
func (s *QueueStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts a new pending record. The insert trigger announces it on
// CreatedChannel.
func (s *QueueStore) Create(ctx context.Context, in NewEmail) (*QueuedEmail, error) {
	rec := &QueuedEmail{
		ID:      uuid.NewString(),
		To:      in.To,
		Subject: in.Subject,
		Body:    in.Body,
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO email_queue (id, "to", subject, body) VALUES ($1, $2, $3, $4) RETURNING status, created_at`,
		rec.ID, in.To, in.Subject, in.Body,
	).Scan(&rec.Status, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert email record: %w", err)
	}
	return rec, nil
}

// Get loads a single record by id.
func (s *QueueStore) Get(ctx context.Context, id string) (*QueuedEmail, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	rec, err := scanEmail(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load email record %s: %w", id, err)
	}
	return rec, nil
}

// ListPending returns the oldest records still waiting for processing.
func (s *QueueStore) ListPending(ctx context.Context, limit int) ([]*QueuedEmail, error) {
	return s.query(ctx, selectColumns+` WHERE status = $1 ORDER BY created_at ASC LIMIT $2`, StatusPending, limit)
}

// List returns the most recent records, optionally filtered by status.
func (s *QueueStore) List(ctx context.Context, status string, limit int) ([]*QueuedEmail, error) {
	if status == "" {
		return s.query(ctx, selectColumns+` ORDER BY created_at DESC LIMIT $1`, limit)
	}
	return s.query(ctx, selectColumns+` WHERE status = $1 ORDER BY created_at DESC LIMIT $2`, status, limit)
}

// ApplyUpdate writes a terminal status onto a pending record. Only the
// status, error, sent_at and updated_at columns are touched.
func (s *QueueStore) ApplyUpdate(ctx context.Context, id string, u StatusUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE email_queue
		 SET status = $2, error = COALESCE($3, error), sent_at = COALESCE($4, sent_at), updated_at = $5
		 WHERE id = $1 AND status = 'pending'`,
		id, u.Status, u.Error, u.SentAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update email record %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s: %w", id, ErrNotPending)
	}
	return nil
}

// StatusDistribution counts records per status. Every known status is present
// in the result, zero when no record carries it.
func (s *QueueStore) StatusDistribution(ctx context.Context) (map[string]int, error) {
	counts := map[string]int{StatusPending: 0, StatusSent: 0, StatusError: 0}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM email_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get email status distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status distribution row: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over status distribution rows: %w", err)
	}
	return counts, nil
}

// Ref returns the write-back handle for the record with the given id.
func (s *QueueStore) Ref(id string) Updater {
	return &RecordRef{ID: id, store: s}
}

func (s *QueueStore) query(ctx context.Context, query string, args ...any) ([]*QueuedEmail, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query email records: %w", err)
	}
	defer rows.Close()

	var out []*QueuedEmail
	for rows.Next() {
		rec, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over email records: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmail(row rowScanner) (*QueuedEmail, error) {
	var rec QueuedEmail
	err := row.Scan(&rec.ID, &rec.To, &rec.Subject, &rec.Body, &rec.Status, &rec.Error, &rec.SentAt, &rec.UpdatedAt, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecordRef is the write-back handle for one queued email record.
type RecordRef struct {
	ID    string
	store *QueueStore
}

// Update applies the partial status update to the referenced record.
func (r *RecordRef) Update(ctx context.Context, u StatusUpdate) error {
	return r.store.ApplyUpdate(ctx, r.ID, u)
}
