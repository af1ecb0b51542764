package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Transactions are serialized by a
// mutex and run against a copy of the data that is swapped in on commit.
type MemoryStore struct {
	mu          sync.Mutex
	data        memoryData
	unavailable bool
	now         func() time.Time
}

type memoryData struct {
	books        map[int64]Book
	users        map[int64]User
	reservations map[int64]Reservation
	nextID       int64
}

func NewMemoryStore(books ...Book) *MemoryStore {
	s := &MemoryStore{
		data: memoryData{
			books:        make(map[int64]Book, len(books)),
			users:        make(map[int64]User),
			reservations: make(map[int64]Reservation),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, b := range books {
		s.data.nextID++
		b.ID = s.data.nextID
		if b.CreatedAt.IsZero() {
			b.CreatedAt = s.now()
		}
		s.data.books[b.ID] = b
	}
	return s
}

// SetUnavailable makes every following transaction fail as if the backing
// database was unreachable.
func (s *MemoryStore) SetUnavailable(down bool) {
	s.mu.Lock()
	s.unavailable = down
	s.mu.Unlock()
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unavailable {
		return fmt.Errorf("%w: memory store marked down", ErrUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	work := s.data.clone()
	tx := &memoryTx{data: &work, now: s.now}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := work.check(); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return ErrUnavailable
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Book returns a committed snapshot of a book; used by tests and the CLI.
func (s *MemoryStore) Book(id int64) (Book, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data.books[id]
	return b, ok
}

func (d memoryData) clone() memoryData {
	out := memoryData{
		books:        make(map[int64]Book, len(d.books)),
		users:        make(map[int64]User, len(d.users)),
		reservations: make(map[int64]Reservation, len(d.reservations)),
		nextID:       d.nextID,
	}
	for k, v := range d.books {
		out.books[k] = v
	}
	for k, v := range d.users {
		out.users[k] = v
	}
	for k, v := range d.reservations {
		if v.RenewedAt != nil {
			at := *v.RenewedAt
			v.RenewedAt = &at
		}
		v.Book = nil
		out.reservations[k] = v
	}
	return out
}

// check enforces the constraints Postgres would enforce at commit.
func (d memoryData) check() error {
	active := make(map[int64]int)
	pairs := make(map[[2]int64]bool)
	for _, r := range d.reservations {
		if _, ok := d.books[r.BookID]; !ok {
			return fmt.Errorf("%w: reservation %d references missing book %d", ErrInvariant, r.ID, r.BookID)
		}
		if _, ok := d.users[r.UserID]; !ok {
			return fmt.Errorf("%w: reservation %d references missing user %d", ErrInvariant, r.ID, r.UserID)
		}
		if r.Status != StatusActive {
			continue
		}
		key := [2]int64{r.BookID, r.UserID}
		if pairs[key] {
			return fmt.Errorf("%w: duplicate active reservation book=%d user=%d", ErrInvariant, r.BookID, r.UserID)
		}
		pairs[key] = true
		active[r.BookID]++
	}
	for _, b := range d.books {
		if b.AvailableCopies < 0 || b.AvailableCopies > b.TotalCopies {
			return fmt.Errorf("%w: book %d available=%d total=%d", ErrInvariant, b.ID, b.AvailableCopies, b.TotalCopies)
		}
		if active[b.ID] > b.TotalCopies {
			return fmt.Errorf("%w: book %d has %d active reservations for %d copies", ErrInvariant, b.ID, active[b.ID], b.TotalCopies)
		}
	}
	return nil
}

type memoryTx struct {
	data *memoryData
	now  func() time.Time
}

func (t *memoryTx) UpsertUser(_ context.Context, email, name string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("upsert user: empty email")
	}
	for _, u := range t.data.users {
		if u.Email == email {
			return &u, nil
		}
	}
	t.data.nextID++
	u := User{ID: t.data.nextID, Email: email, Name: strings.TrimSpace(name), CreatedAt: t.now()}
	t.data.users[u.ID] = u
	return &u, nil
}

func (t *memoryTx) SearchBooksByTitle(_ context.Context, fragment string) ([]Book, error) {
	needle := strings.ToLower(fragment)
	return t.filterBooks(func(b Book) bool {
		return strings.Contains(strings.ToLower(b.Title), needle)
	}), nil
}

func (t *memoryTx) LockBook(_ context.Context, id int64) (*Book, error) {
	b, ok := t.data.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (t *memoryTx) UpdateAvailability(_ context.Context, id int64, available int) error {
	b, ok := t.data.books[id]
	if !ok {
		return ErrNotFound
	}
	b.AvailableCopies = available
	t.data.books[id] = b
	return nil
}

func (t *memoryTx) ActiveReservations(_ context.Context, userID int64) ([]Reservation, error) {
	out := make([]Reservation, 0, 2)
	for _, r := range t.data.reservations {
		if r.UserID != userID || r.Status != StatusActive {
			continue
		}
		if b, ok := t.data.books[r.BookID]; ok {
			r.Book = &b
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memoryTx) LockReservation(_ context.Context, id int64) (*Reservation, error) {
	r, ok := t.data.reservations[id]
	if !ok || r.Status != StatusActive {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (t *memoryTx) CountActiveReservations(_ context.Context, bookID int64) (int, error) {
	n := 0
	for _, r := range t.data.reservations {
		if r.BookID == bookID && r.Status == StatusActive {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) InsertReservation(_ context.Context, r *Reservation) error {
	t.data.nextID++
	r.ID = t.data.nextID
	stored := *r
	stored.Book = nil
	t.data.reservations[r.ID] = stored
	return nil
}

func (t *memoryTx) UpdateReservation(_ context.Context, r *Reservation) error {
	if cur, ok := t.data.reservations[r.ID]; !ok || cur.Status != StatusActive {
		return ErrNotFound
	}
	stored := *r
	stored.Book = nil
	t.data.reservations[r.ID] = stored
	return nil
}

func (t *memoryTx) ListBooksByAuthor(_ context.Context, fragment string) ([]Book, error) {
	needle := strings.ToLower(fragment)
	return t.filterBooks(func(b Book) bool {
		return strings.Contains(strings.ToLower(b.Author), needle)
	}), nil
}

func (t *memoryTx) ListBooks(context.Context) ([]Book, error) {
	return t.filterBooks(func(Book) bool { return true }), nil
}

func (t *memoryTx) filterBooks(keep func(Book) bool) []Book {
	out := make([]Book, 0, len(t.data.books))
	for _, b := range t.data.books {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := strings.ToLower(out[i].Title), strings.ToLower(out[j].Title)
		if ti == tj {
			return out[i].ID < out[j].ID
		}
		return ti < tj
	})
	return out
}
