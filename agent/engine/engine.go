package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/library-mail-agent/agent/catalog"
	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
)

const (
	DefaultLoanPeriod    = 14 * 24 * time.Hour
	DefaultRenewalPeriod = 14 * 24 * time.Hour
)

// errSettled rolls back a transaction whose outcome is already decided and
// must leave no writes behind.
var errSettled = errors.New("outcome settled without writes")

type Config struct {
	LoanPeriod    time.Duration
	RenewalPeriod time.Duration
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine runs one Operation per transaction against the catalog store.
type Engine struct {
	store catalog.Store
	cfg   Config
	now   func() time.Time
}

func New(store catalog.Store, cfg Config, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("catalog store is required")
	}
	if cfg.LoanPeriod <= 0 {
		cfg.LoanPeriod = DefaultLoanPeriod
	}
	if cfg.RenewalPeriod <= 0 {
		cfg.RenewalPeriod = DefaultRenewalPeriod
	}
	e := &Engine{
		store: store,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Execute never returns an error: store failures become a system_degraded
// outcome and every business result is an Outcome kind.
func (e *Engine) Execute(ctx context.Context, who contractx.Requester, op contractx.Operation) contractx.Outcome {
	if op == nil {
		return contractx.Rejected(contractx.ReasonUnknownIntent, "nil operation")
	}

	var out contractx.Outcome
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx catalog.Tx) error {
		user, err := tx.UpsertUser(ctx, who.Email, who.Name)
		if err != nil {
			return err
		}
		out, err = e.run(ctx, tx, user, op)
		if err != nil {
			return err
		}
		if out.Kind != contractx.OutcomeSuccess {
			return errSettled
		}
		return nil
	})
	if err != nil && !errors.Is(err, errSettled) {
		log.Warn().Err(err).Str("operation", string(op.Kind())).Msg("catalog transaction failed")
		return contractx.Degraded(op.Kind(), contractx.ReasonStoreFailure, err.Error())
	}

	out.Operation = op.Kind()
	out.Subject = op.Subject()
	return out
}

func (e *Engine) run(ctx context.Context, tx catalog.Tx, user *catalog.User, op contractx.Operation) (contractx.Outcome, error) {
	switch o := op.(type) {
	case contractx.ReserveBook:
		return e.reserve(ctx, tx, user, o.Title)
	case contractx.RenewReservation:
		return e.renew(ctx, tx, user, o.Title)
	case contractx.CancelReservation:
		return e.cancel(ctx, tx, user, o.Title)
	case contractx.ListByAuthor:
		books, err := tx.ListBooksByAuthor(ctx, o.Author)
		if err != nil {
			return contractx.Outcome{}, err
		}
		return contractx.Outcome{Kind: contractx.OutcomeSuccess, Books: books}, nil
	case contractx.ListCatalog:
		books, err := tx.ListBooks(ctx)
		if err != nil {
			return contractx.Outcome{}, err
		}
		return contractx.Outcome{Kind: contractx.OutcomeSuccess, Books: books}, nil
	default:
		return contractx.Rejected(contractx.ReasonUnknownIntent, fmt.Sprintf("unsupported operation %T", op)), nil
	}
}

func (e *Engine) reserve(ctx context.Context, tx catalog.Tx, user *catalog.User, title string) (contractx.Outcome, error) {
	candidates, err := tx.SearchBooksByTitle(ctx, title)
	if err != nil {
		return contractx.Outcome{}, err
	}
	matched, ok := matchTitle(candidates, title, func(b catalog.Book) string { return b.Title })
	if len(matched) == 0 {
		return contractx.Outcome{Kind: contractx.OutcomeNotFound, Detail: "no book matches title"}, nil
	}
	if !ok {
		return contractx.Outcome{
			Kind:   contractx.OutcomeRejected,
			Reason: contractx.ReasonAmbiguous,
			Detail: fmt.Sprintf("%d books match title", len(matched)),
			Books:  matched,
		}, nil
	}

	book, err := tx.LockBook(ctx, matched[0].ID)
	if errors.Is(err, catalog.ErrNotFound) {
		return contractx.Outcome{Kind: contractx.OutcomeNotFound, Detail: "book vanished before lock"}, nil
	}
	if err != nil {
		return contractx.Outcome{}, err
	}

	held, err := tx.ActiveReservations(ctx, user.ID)
	if err != nil {
		return contractx.Outcome{}, err
	}
	for _, r := range held {
		if r.BookID == book.ID {
			r := r
			return contractx.Outcome{
				Kind:        contractx.OutcomeConflict,
				Reason:      contractx.ReasonAlreadyReserved,
				Detail:      fmt.Sprintf("reservation %d already active", r.ID),
				Book:        book,
				Reservation: &r,
			}, nil
		}
	}

	if book.AvailableCopies <= 0 {
		return contractx.Outcome{
			Kind:   contractx.OutcomeConflict,
			Reason: contractx.ReasonNoCopies,
			Detail: fmt.Sprintf("book %d has no available copies", book.ID),
			Book:   book,
		}, nil
	}

	active, err := tx.CountActiveReservations(ctx, book.ID)
	if err != nil {
		return contractx.Outcome{}, err
	}
	if active >= book.TotalCopies {
		return contractx.Outcome{}, fmt.Errorf("%w: book %d has %d active reservations for %d copies",
			catalog.ErrInvariant, book.ID, active, book.TotalCopies)
	}

	now := e.now()
	res := &catalog.Reservation{
		BookID:    book.ID,
		UserID:    user.ID,
		Status:    catalog.StatusActive,
		CreatedAt: now,
		DueAt:     now.Add(e.cfg.LoanPeriod),
	}
	if err := tx.InsertReservation(ctx, res); err != nil {
		return contractx.Outcome{}, err
	}
	book.AvailableCopies--
	if err := tx.UpdateAvailability(ctx, book.ID, book.AvailableCopies); err != nil {
		return contractx.Outcome{}, err
	}
	res.Book = book

	return contractx.Outcome{Kind: contractx.OutcomeSuccess, Book: book, Reservation: res}, nil
}

func (e *Engine) renew(ctx context.Context, tx catalog.Tx, user *catalog.User, title string) (contractx.Outcome, error) {
	held, out, err := findHeld(ctx, tx, user, title)
	if held == nil || err != nil {
		return out, err
	}
	res, err := tx.LockReservation(ctx, held.ID)
	if errors.Is(err, catalog.ErrNotFound) {
		return heldGone(), nil
	}
	if err != nil {
		return contractx.Outcome{}, err
	}
	res.Book = held.Book

	now := e.now()
	res.DueAt = res.DueAt.Add(e.cfg.RenewalPeriod)
	res.RenewedAt = &now
	if err := tx.UpdateReservation(ctx, res); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return heldGone(), nil
		}
		return contractx.Outcome{}, err
	}
	return contractx.Outcome{Kind: contractx.OutcomeSuccess, Book: res.Book, Reservation: res}, nil
}

// cancel locks the book before the reservation, the same order reserve
// takes, and re-reads the reservation under that lock.
func (e *Engine) cancel(ctx context.Context, tx catalog.Tx, user *catalog.User, title string) (contractx.Outcome, error) {
	held, out, err := findHeld(ctx, tx, user, title)
	if held == nil || err != nil {
		return out, err
	}

	book, err := tx.LockBook(ctx, held.BookID)
	if err != nil {
		return contractx.Outcome{}, err
	}
	res, err := tx.LockReservation(ctx, held.ID)
	if errors.Is(err, catalog.ErrNotFound) {
		return heldGone(), nil
	}
	if err != nil {
		return contractx.Outcome{}, err
	}

	res.Status = catalog.StatusCancelled
	if err := tx.UpdateReservation(ctx, res); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return heldGone(), nil
		}
		return contractx.Outcome{}, err
	}
	book.AvailableCopies++
	if err := tx.UpdateAvailability(ctx, book.ID, book.AvailableCopies); err != nil {
		return contractx.Outcome{}, err
	}
	res.Book = book
	return contractx.Outcome{Kind: contractx.OutcomeSuccess, Book: book, Reservation: res}, nil
}

// heldGone reports a reservation that another transaction ended between
// the lookup and the lock.
func heldGone() contractx.Outcome {
	return contractx.Outcome{Kind: contractx.OutcomeNotFound, Detail: "reservation no longer active"}
}

// findHeld resolves the requester's active reservation whose book title
// matches. A nil reservation comes with the outcome to report instead.
func findHeld(ctx context.Context, tx catalog.Tx, user *catalog.User, title string) (*catalog.Reservation, contractx.Outcome, error) {
	held, err := tx.ActiveReservations(ctx, user.ID)
	if err != nil {
		return nil, contractx.Outcome{}, err
	}
	matched, ok := matchTitle(held, title, func(r catalog.Reservation) string {
		if r.Book == nil {
			return ""
		}
		return r.Book.Title
	})
	if len(matched) == 0 {
		return nil, contractx.Outcome{Kind: contractx.OutcomeNotFound, Detail: "no active reservation matches title"}, nil
	}
	if !ok {
		return nil, contractx.Outcome{
			Kind:   contractx.OutcomeRejected,
			Reason: contractx.ReasonAmbiguous,
			Detail: fmt.Sprintf("%d active reservations match title", len(matched)),
		}, nil
	}
	res := matched[0]
	return &res, contractx.Outcome{}, nil
}

// matchTitle prefers case-insensitive exact matches and falls back to
// substring matches. ok is false when more than one candidate remains.
func matchTitle[T any](items []T, title string, titleOf func(T) string) (matched []T, ok bool) {
	want := strings.ToLower(strings.TrimSpace(title))
	if want == "" {
		return nil, false
	}

	var exact, partial []T
	for _, it := range items {
		got := strings.ToLower(titleOf(it))
		switch {
		case got == want:
			exact = append(exact, it)
		case strings.Contains(got, want):
			partial = append(partial, it)
		}
	}
	if len(exact) > 0 {
		return exact, len(exact) == 1
	}
	return partial, len(partial) == 1
}
