package catalog

import (
	"time"

	"github.com/uptrace/bun"
)

type ReservationStatus string

const (
	StatusActive    ReservationStatus = "active"
	StatusReturned  ReservationStatus = "returned"
	StatusCancelled ReservationStatus = "cancelled"
)

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b" json:"-"`

	ID              int64     `bun:"id,pk,autoincrement" json:"id"`
	Title           string    `bun:"title,notnull" json:"title"`
	Author          string    `bun:"author,notnull" json:"author"`
	ISBN            string    `bun:"isbn,nullzero,unique" json:"isbn,omitempty"`
	TotalCopies     int       `bun:"total_copies,notnull" json:"total_copies"`
	AvailableCopies int       `bun:"available_copies,notnull" json:"available_copies"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type User struct {
	bun.BaseModel `bun:"table:users,alias:u" json:"-"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Email     string    `bun:"email,notnull,unique" json:"email"`
	Name      string    `bun:"name" json:"name,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type Reservation struct {
	bun.BaseModel `bun:"table:reservations,alias:r" json:"-"`

	ID        int64             `bun:"id,pk,autoincrement" json:"id"`
	BookID    int64             `bun:"book_id,notnull" json:"book_id"`
	UserID    int64             `bun:"user_id,notnull" json:"user_id"`
	Status    ReservationStatus `bun:"status,notnull" json:"status"`
	CreatedAt time.Time         `bun:"created_at,notnull" json:"created_at"`
	DueAt     time.Time         `bun:"due_at,notnull" json:"due_at"`
	RenewedAt *time.Time        `bun:"renewed_at" json:"renewed_at,omitempty"`

	Book *Book `bun:"rel:belongs-to,join:book_id=id" json:"book,omitempty"`
}

// Seed is the starter catalog loaded by `migrate --seed` and by the
// in-memory store.
func Seed() []Book {
	return []Book{
		{Title: "Cien años de soledad", Author: "Gabriel García Márquez", ISBN: "978-0307474728", TotalCopies: 3, AvailableCopies: 2},
		{Title: "1984", Author: "George Orwell", ISBN: "978-0451524935", TotalCopies: 2, AvailableCopies: 1},
		{Title: "Don Quijote de la Mancha", Author: "Miguel de Cervantes", ISBN: "978-8424116637", TotalCopies: 1, AvailableCopies: 0},
		{Title: "El amor en los tiempos del cólera", Author: "Gabriel García Márquez", ISBN: "978-0307389732", TotalCopies: 2, AvailableCopies: 2},
		{Title: "Rebelión en la granja", Author: "George Orwell", ISBN: "978-8499890944", TotalCopies: 2, AvailableCopies: 2},
		{Title: "La casa de los espíritus", Author: "Isabel Allende", ISBN: "978-1501117015", TotalCopies: 1, AvailableCopies: 1},
		{Title: "Ficciones", Author: "Jorge Luis Borges", ISBN: "978-8420633466", TotalCopies: 1, AvailableCopies: 1},
	}
}
