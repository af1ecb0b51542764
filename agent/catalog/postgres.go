package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PostgresConfig struct {
	DSN          string        `envconfig:"DSN" split_words:"true"`
	Timeout      time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"5s"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"10"`
}

// PostgresStore runs catalog transactions on Postgres through bun. Book rows
// are taken with SELECT ... FOR UPDATE so concurrent reservations queue up on
// the row instead of overselling copies.
type PostgresStore struct {
	db      *bun.DB
	timeout time.Duration
	now     func() time.Time
}

func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}
	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(cfg.Timeout),
	)
	sqldb := sql.OpenDB(connector)
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return NewPostgresStoreFromDB(bun.NewDB(sqldb, pgdialect.New()), cfg.Timeout), nil
}

func NewPostgresStoreFromDB(db *bun.DB, timeout time.Duration) *PostgresStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresStore{
		db:      db,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrUnavailable, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &pgTx{tx: tx, now: s.now}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// CreateSchema creates the catalog tables and constraints if missing.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*Book)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create books: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*User)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create users: %w", err)
	}
	_, err := s.db.NewCreateTable().
		Model((*Reservation)(nil)).
		IfNotExists().
		ForeignKey(`("book_id") REFERENCES "books" ("id") ON DELETE RESTRICT`).
		ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE RESTRICT`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create reservations: %w", err)
	}

	constraints := []string{
		`ALTER TABLE books DROP CONSTRAINT IF EXISTS books_available_range,
			ADD CONSTRAINT books_available_range CHECK (available_copies >= 0 AND available_copies <= total_copies)`,
		`ALTER TABLE reservations DROP CONSTRAINT IF EXISTS reservations_status_known,
			ADD CONSTRAINT reservations_status_known CHECK (status IN ('active', 'returned', 'cancelled'))`,
		`CREATE UNIQUE INDEX IF NOT EXISTS reservations_one_active
			ON reservations (book_id, user_id) WHERE status = 'active'`,
		`CREATE INDEX IF NOT EXISTS books_title_lower ON books (lower(title))`,
	}
	for _, stmt := range constraints {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply constraint: %w", err)
		}
	}
	return nil
}

// SeedBooks inserts books, skipping ISBNs that already exist.
func (s *PostgresStore) SeedBooks(ctx context.Context, books []Book) (int64, error) {
	if len(books) == 0 {
		return 0, nil
	}
	res, err := s.db.NewInsert().
		Model(&books).
		On("CONFLICT (isbn) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed books: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type pgTx struct {
	tx  bun.Tx
	now func() time.Time
}

func (t *pgTx) UpsertUser(ctx context.Context, email, name string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, errors.New("upsert user: empty email")
	}
	u := &User{Email: email, Name: strings.TrimSpace(name), CreatedAt: t.now()}
	_, err := t.tx.NewInsert().
		Model(u).
		On("CONFLICT (email) DO UPDATE").
		Set("email = EXCLUDED.email").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

func (t *pgTx) SearchBooksByTitle(ctx context.Context, fragment string) ([]Book, error) {
	var books []Book
	err := t.tx.NewSelect().
		Model(&books).
		Where("b.title ILIKE ?", "%"+escapeLike(fragment)+"%").
		OrderExpr("lower(b.title) ASC, b.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search books by title: %w", err)
	}
	return books, nil
}

func (t *pgTx) LockBook(ctx context.Context, id int64) (*Book, error) {
	book := new(Book)
	err := t.tx.NewSelect().
		Model(book).
		Where("b.id = ?", id).
		For("UPDATE").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock book %d: %w", id, err)
	}
	return book, nil
}

func (t *pgTx) UpdateAvailability(ctx context.Context, id int64, available int) error {
	res, err := t.tx.NewUpdate().
		Model((*Book)(nil)).
		Set("available_copies = ?", available).
		Where("b.id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update availability of book %d: %w", id, err)
	}
	return expectOneRow(res)
}

func (t *pgTx) ActiveReservations(ctx context.Context, userID int64) ([]Reservation, error) {
	var rs []Reservation
	err := t.tx.NewSelect().
		Model(&rs).
		Relation("Book").
		Where("r.user_id = ?", userID).
		Where("r.status = ?", StatusActive).
		Order("r.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select active reservations: %w", err)
	}
	return rs, nil
}

func (t *pgTx) LockReservation(ctx context.Context, id int64) (*Reservation, error) {
	r := new(Reservation)
	err := t.tx.NewSelect().
		Model(r).
		Where("r.id = ?", id).
		Where("r.status = ?", StatusActive).
		For("UPDATE").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock reservation %d: %w", id, err)
	}
	return r, nil
}

func (t *pgTx) CountActiveReservations(ctx context.Context, bookID int64) (int, error) {
	n, err := t.tx.NewSelect().
		Model((*Reservation)(nil)).
		Where("r.book_id = ?", bookID).
		Where("r.status = ?", StatusActive).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count active reservations: %w", err)
	}
	return n, nil
}

func (t *pgTx) InsertReservation(ctx context.Context, r *Reservation) error {
	if _, err := t.tx.NewInsert().Model(r).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateReservation(ctx context.Context, r *Reservation) error {
	res, err := t.tx.NewUpdate().
		Model(r).
		Column("status", "due_at", "renewed_at").
		WherePK().
		Where("r.status = ?", StatusActive).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update reservation %d: %w", r.ID, err)
	}
	return expectOneRow(res)
}

func (t *pgTx) ListBooksByAuthor(ctx context.Context, fragment string) ([]Book, error) {
	var books []Book
	err := t.tx.NewSelect().
		Model(&books).
		Where("b.author ILIKE ?", "%"+escapeLike(fragment)+"%").
		OrderExpr("lower(b.title) ASC, b.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books by author: %w", err)
	}
	return books, nil
}

func (t *pgTx) ListBooks(ctx context.Context) ([]Book, error) {
	var books []Book
	err := t.tx.NewSelect().
		Model(&books).
		OrderExpr("lower(b.title) ASC, b.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
