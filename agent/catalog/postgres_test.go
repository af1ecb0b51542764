package catalog

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgresStoreFromDB(db, time.Second), mock
}

var bookColumns = []string{"id", "title", "author", "isbn", "total_copies", "available_copies", "created_at"}

func TestPostgresStoreLockBookUsesRowLock(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .*FROM "books" AS "b".*b\.id = 7.*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(bookColumns).
			AddRow(7, "1984", "George Orwell", "978-0451524935", 2, 1, time.Now()))
	mock.ExpectCommit()

	var got *Book
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		got, err = tx.LockBook(ctx, 7)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "1984", got.Title)
	assert.Equal(t, 1, got.AvailableCopies)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLockBookMissing(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows(bookColumns))
	mock.ExpectRollback()

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.LockBook(ctx, 99)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRollsBackOnCallbackError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`(?s)UPDATE "books" AS "b" SET available_copies = 0.*b\.id = 3`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		if err := tx.UpdateAvailability(ctx, 3, 0); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreBeginFailureIsUnavailable(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

	err := store.RunInTx(context.Background(), func(context.Context, Tx) error {
		t.Fatal("callback must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPostgresStoreCommitFailureIsUnavailable(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(sql.ErrConnDone)

	err := store.RunInTx(context.Background(), func(context.Context, Tx) error { return nil })
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPostgresStoreSearchOrdersByTitle(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)FROM "books" AS "b".*b\.title ILIKE '%100.*%'.*ORDER BY lower\(b\.title\) ASC`).
		WillReturnRows(sqlmock.NewRows(bookColumns))
	mock.ExpectCommit()

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		books, err := tx.SearchBooksByTitle(ctx, "100%")
		assert.Empty(t, books)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorePingFailure(t *testing.T) {
	t.Parallel()

	sqldb, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })
	store := NewPostgresStoreFromDB(db, time.Second)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.ErrorIs(t, store.Ping(context.Background()), ErrUnavailable)
}

var reservationColumns = []string{"id", "book_id", "user_id", "status", "created_at", "due_at", "renewed_at"}

func TestPostgresStoreLockReservationLocksActiveRow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 10, 9, 30, 0, 0, time.UTC)
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .*FROM "reservations" AS "r".*r\.id = 5.*r\.status = 'active'.*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(reservationColumns).
			AddRow(5, 7, 3, "active", now, now.Add(14*24*time.Hour), nil))
	mock.ExpectCommit()

	var got *Reservation
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		got, err = tx.LockReservation(ctx, 5)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, now.Add(14*24*time.Hour), got.DueAt.UTC())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLockReservationEndedElsewhere(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)FROM "reservations" AS "r".*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(reservationColumns))
	mock.ExpectRollback()

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.LockReservation(ctx, 5)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpdateReservationOnlyTouchesActiveRows(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`(?s)UPDATE "reservations" AS "r" SET .*"r"\."id" = 5.*r\.status = 'active'`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.UpdateReservation(ctx, &Reservation{ID: 5, Status: StatusCancelled, DueAt: time.Now()})
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
