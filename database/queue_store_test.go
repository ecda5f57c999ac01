package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var emailColumns = []string{"id", "to", "subject", "body", "status", "error", "sent_at", "updated_at", "created_at"}

func newMockStore(t *testing.T) (*QueueStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewQueueStore(db), mock
}

func strPtr(s string) *string { return &s }

func TestQueueStore_Create(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO email_queue (id, "to", subject, body) VALUES ($1, $2, $3, $4) RETURNING status, created_at`)).
		WithArgs(sqlmock.AnyArg(), "a@b.com", nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"status", "created_at"}).AddRow(StatusPending, created))

	rec, err := store.Create(context.Background(), NewEmail{To: strPtr("a@b.com")})
	require.NoError(t, err)

	assert.Len(t, rec.ID, 36)
	assert.Equal(t, "a@b.com", *rec.To)
	assert.Nil(t, rec.Subject)
	assert.Nil(t, rec.Body)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, created, rec.CreatedAt)
}

func TestQueueStore_CreateError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO email_queue`).WillReturnError(errors.New("connection reset"))

	_, err := store.Create(context.Background(), NewEmail{})
	assert.ErrorContains(t, err, "failed to insert email record: connection reset")
}

func TestQueueStore_Get(t *testing.T) {
	store, mock := newMockStore(t)
	id := "6f1c2d7e-0b5a-4c1e-9d3f-2a7b8c9d0e1f"
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sent := created.Add(time.Second)

	mock.ExpectQuery(regexp.QuoteMeta(selectColumns + ` WHERE id = $1`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(emailColumns).
			AddRow(id, "a@b.com", "Hi", "Body", StatusSent, nil, sent, sent, created))

	rec, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "Hi", *rec.Subject)
	assert.Equal(t, StatusSent, rec.Status)
	assert.Nil(t, rec.Error)
	require.NotNil(t, rec.SentAt)
	assert.Equal(t, sent, *rec.SentAt)
	assert.True(t, rec.Terminal())
}

func TestQueueStore_GetNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := "6f1c2d7e-0b5a-4c1e-9d3f-2a7b8c9d0e1f"

	mock.ExpectQuery(regexp.QuoteMeta(selectColumns + ` WHERE id = $1`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(emailColumns))

	_, err := store.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueueStore_GetMalformedID(t *testing.T) {
	store, _ := newMockStore(t)

	_, err := store.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueueStore_ListPending(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(selectColumns+` WHERE status = $1 ORDER BY created_at ASC LIMIT $2`)).
		WithArgs(StatusPending, 10).
		WillReturnRows(sqlmock.NewRows(emailColumns).
			AddRow("id-1", "a@b.com", nil, nil, StatusPending, nil, nil, nil, created).
			AddRow("id-2", nil, nil, nil, StatusPending, nil, nil, nil, created.Add(time.Minute)))

	recs, err := store.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "id-1", recs[0].ID)
	assert.Nil(t, recs[1].To)
	assert.False(t, recs[1].Terminal())
}

func TestQueueStore_List(t *testing.T) {
	t.Run("all statuses", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectColumns + ` ORDER BY created_at DESC LIMIT $1`)).
			WithArgs(50).
			WillReturnRows(sqlmock.NewRows(emailColumns))

		recs, err := store.List(context.Background(), "", 50)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("filtered", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectColumns+` WHERE status = $1 ORDER BY created_at DESC LIMIT $2`)).
			WithArgs(StatusError, 5).
			WillReturnRows(sqlmock.NewRows(emailColumns).
				AddRow("id-1", "a@b.com", nil, nil, StatusError, "delivery error: dial tcp", nil, time.Now(), time.Now()))

		recs, err := store.List(context.Background(), StatusError, 5)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "delivery error: dial tcp", *recs[0].Error)
	})
}

func TestQueueStore_ApplyUpdate(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 5, 0, time.UTC)
	updateSQL := regexp.QuoteMeta(`UPDATE email_queue`)

	t.Run("sent", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(updateSQL).
			WithArgs("id-1", StatusSent, nil, now, now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.Ref("id-1").Update(context.Background(), StatusUpdate{Status: StatusSent, SentAt: &now, UpdatedAt: now})
		assert.NoError(t, err)
	})

	t.Run("error", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(updateSQL).
			WithArgs("id-1", StatusError, "Missing 'to' field", nil, now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.ApplyUpdate(context.Background(), "id-1", StatusUpdate{Status: StatusError, Error: strPtr("Missing 'to' field"), UpdatedAt: now})
		assert.NoError(t, err)
	})

	t.Run("already terminal", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(updateSQL).WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.ApplyUpdate(context.Background(), "id-1", StatusUpdate{Status: StatusSent, SentAt: &now, UpdatedAt: now})
		assert.ErrorIs(t, err, ErrNotPending)
	})

	t.Run("exec failure", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(updateSQL).WillReturnError(errors.New("deadlock detected"))

		err := store.ApplyUpdate(context.Background(), "id-1", StatusUpdate{Status: StatusSent, UpdatedAt: now})
		assert.ErrorContains(t, err, "deadlock detected")
	})
}

func TestQueueStore_StatusDistribution(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status, COUNT(*) FROM email_queue GROUP BY status`)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow(StatusSent, 7).
			AddRow(StatusError, 2))

	counts, err := store.StatusDistribution(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{StatusPending: 0, StatusSent: 7, StatusError: 2}, counts)
}
