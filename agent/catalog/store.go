package catalog

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrUnavailable = errors.New("catalog store unavailable")
	ErrInvariant   = errors.New("catalog invariant violated")
)

// Store opens transactions over the catalog. Every operation the engine runs
// happens inside exactly one RunInTx call; returning an error from fn rolls
// the transaction back.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the set of reads and writes available inside a transaction. Text
// arguments are passed as query arguments, never concatenated into statements.
type Tx interface {
	// UpsertUser returns the user for email, creating it on first contact.
	UpsertUser(ctx context.Context, email, name string) (*User, error)
	// SearchBooksByTitle returns books whose title contains fragment,
	// case-insensitively, ordered by title.
	SearchBooksByTitle(ctx context.Context, fragment string) ([]Book, error)
	// LockBook re-reads a book and holds it until the transaction ends.
	LockBook(ctx context.Context, id int64) (*Book, error)
	UpdateAvailability(ctx context.Context, id int64, available int) error
	// ActiveReservations lists the user's active reservations with Book set.
	ActiveReservations(ctx context.Context, userID int64) ([]Reservation, error)
	// LockReservation re-reads an active reservation and holds it until the
	// transaction ends. A reservation that is no longer active is ErrNotFound.
	LockReservation(ctx context.Context, id int64) (*Reservation, error)
	CountActiveReservations(ctx context.Context, bookID int64) (int, error)
	InsertReservation(ctx context.Context, r *Reservation) error
	// UpdateReservation writes status and dates of a reservation that is
	// still active. ErrNotFound when it is not.
	UpdateReservation(ctx context.Context, r *Reservation) error
	ListBooksByAuthor(ctx context.Context, fragment string) ([]Book, error)
	ListBooks(ctx context.Context) ([]Book, error)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// escapeLike makes fragment match literally inside a LIKE pattern.
func escapeLike(fragment string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(fragment)
}
