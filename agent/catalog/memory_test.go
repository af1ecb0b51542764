package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errAbort = errors.New("abort")

func TestMemoryStoreRollsBackOnError(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(Book{Title: "1984", Author: "George Orwell", TotalCopies: 1, AvailableCopies: 1})
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		if err := tx.UpdateAvailability(ctx, 1, 0); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	b, ok := store.Book(1)
	require.True(t, ok)
	assert.Equal(t, 1, b.AvailableCopies)
}

func TestMemoryStoreRejectsInvariantBreak(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(Book{Title: "1984", Author: "George Orwell", TotalCopies: 1, AvailableCopies: 1})
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.UpdateAvailability(ctx, 1, 2)
	})
	assert.ErrorIs(t, err, ErrInvariant)

	err = store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		u, err := tx.UpsertUser(ctx, "a@b.c", "")
		if err != nil {
			return err
		}
		now := time.Now()
		for i := 0; i < 2; i++ {
			r := &Reservation{BookID: 1, UserID: u.ID, Status: StatusActive, CreatedAt: now, DueAt: now}
			if err := tx.InsertReservation(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestMemoryStoreUpsertUserIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	var first, second *User
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		if first, err = tx.UpsertUser(ctx, " Ana@Example.com ", "Ana"); err != nil {
			return err
		}
		second, err = tx.UpsertUser(ctx, "ana@example.com", "")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "ana@example.com", second.Email)
}

func TestMemoryStoreSearchAndListOrderedByTitle(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(Seed()...)
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		books, err := tx.SearchBooksByTitle(ctx, "SOLEDAD")
		require.NoError(t, err)
		require.Len(t, books, 1)
		assert.Equal(t, "Cien años de soledad", books[0].Title)

		byAuthor, err := tx.ListBooksByAuthor(ctx, "orwell")
		require.NoError(t, err)
		require.Len(t, byAuthor, 2)
		assert.Equal(t, "1984", byAuthor[0].Title)
		assert.Equal(t, "Rebelión en la granja", byAuthor[1].Title)

		all, err := tx.ListBooks(ctx)
		require.NoError(t, err)
		assert.Len(t, all, len(Seed()))
		for i := 1; i < len(all); i++ {
			assert.LessOrEqual(t, strings.ToLower(all[i-1].Title), strings.ToLower(all[i].Title))
		}
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStoreUnavailable(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	store.SetUnavailable(true)

	called := false
	err := store.RunInTx(context.Background(), func(context.Context, Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, called)
	assert.ErrorIs(t, store.Ping(context.Background()), ErrUnavailable)
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `100\% real\_ok\\`, escapeLike(`100% real_ok\`))
}
