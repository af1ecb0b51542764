package reply

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanpawarit/library-mail-agent/agent/catalog"
	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
)

func TestComposeSuccessfulReservation(t *testing.T) {
	t.Parallel()

	c := MustNew("es")
	due := time.Date(2025, 5, 24, 9, 0, 0, 0, time.UTC)
	out := contractx.Outcome{
		Kind:        contractx.OutcomeSuccess,
		Operation:   contractx.OpReserveBook,
		Subject:     "1984",
		Book:        &catalog.Book{Title: "1984", Author: "George Orwell"},
		Reservation: &catalog.Reservation{DueAt: due},
	}

	got := c.Compose(out)
	assert.Contains(t, got, "Tu reserva de «1984» quedó confirmada")
	assert.Contains(t, got, "24/05/2025")
	assert.True(t, strings.HasPrefix(got, "Hola,"))
	assert.Equal(t, got, c.Compose(out), "compose must be deterministic")
}

func TestComposeEveryOutcomeKind(t *testing.T) {
	t.Parallel()

	book := &catalog.Book{Title: "Don Quijote de la Mancha", Author: "Miguel de Cervantes"}
	cases := []struct {
		name string
		out  contractx.Outcome
		want string
	}{
		{
			name: "not found reserve",
			out:  contractx.Outcome{Kind: contractx.OutcomeNotFound, Operation: contractx.OpReserveBook, Subject: "Rayuela"},
			want: "No encontramos el libro «Rayuela»",
		},
		{
			name: "not found cancel",
			out:  contractx.Outcome{Kind: contractx.OutcomeNotFound, Operation: contractx.OpCancelReservation, Subject: "1984"},
			want: "No encontramos una reserva activa a tu nombre para «1984»",
		},
		{
			name: "no copies",
			out:  contractx.Outcome{Kind: contractx.OutcomeConflict, Operation: contractx.OpReserveBook, Reason: contractx.ReasonNoCopies, Subject: "Don Quijote", Book: book},
			want: "no quedan ejemplares disponibles de «Don Quijote de la Mancha»",
		},
		{
			name: "already reserved",
			out:  contractx.Outcome{Kind: contractx.OutcomeConflict, Operation: contractx.OpReserveBook, Reason: contractx.ReasonAlreadyReserved, Subject: "Don Quijote", Book: book},
			want: "Ya tienes una reserva activa de «Don Quijote de la Mancha».",
		},
		{
			name: "rejected",
			out:  contractx.Rejected(contractx.ReasonUnsafeInput, "field=title rule=store_syntax"),
			want: "No pudimos entender tu solicitud.",
		},
		{
			name: "ambiguous",
			out: contractx.Outcome{
				Kind: contractx.OutcomeRejected, Reason: contractx.ReasonAmbiguous, Subject: "granja",
				Books: []catalog.Book{{Title: "La granja", Author: "A"}, {Title: "Rebelión en la granja", Author: "George Orwell"}},
			},
			want: "- Rebelión en la granja (George Orwell)",
		},
		{
			name: "degraded",
			out:  contractx.Degraded(contractx.OpReserveBook, contractx.ReasonStoreFailure, "dial tcp: connection refused"),
			want: "no está disponible temporalmente y tu solicitud no se completó",
		},
		{
			name: "unknown kind falls back to degraded",
			out:  contractx.Outcome{Kind: "exploded"},
			want: "no está disponible temporalmente",
		},
	}

	c := MustNew("es")
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Compose(tc.out)
			assert.Contains(t, got, tc.want)
		})
	}
}

func TestComposeNeverLeaksDetail(t *testing.T) {
	t.Parallel()

	c := MustNew("es")
	detail := "pq: relation \"books\" does not exist; '; DROP TABLE books; --"
	for _, out := range []contractx.Outcome{
		contractx.Rejected(contractx.ReasonUnsafeInput, detail),
		contractx.Degraded(contractx.OpCancelReservation, contractx.ReasonStoreFailure, detail),
		{Kind: contractx.OutcomeNotFound, Operation: contractx.OpRenewReservation, Subject: "1984", Detail: detail},
	} {
		got := c.Compose(out)
		assert.NotContains(t, got, "DROP TABLE")
		assert.NotContains(t, got, "relation")
	}
}

func TestComposeCatalogListing(t *testing.T) {
	t.Parallel()

	c := MustNew("es")
	out := contractx.Outcome{
		Kind:      contractx.OutcomeSuccess,
		Operation: contractx.OpListCatalog,
		Books: []catalog.Book{
			{Title: "1984", Author: "George Orwell", AvailableCopies: 1},
			{Title: "Don Quijote de la Mancha", Author: "Miguel de Cervantes", AvailableCopies: 0},
		},
	}
	got := c.Compose(out)
	assert.Contains(t, got, "- 1984 (George Orwell): 1 disponible(s)")
	assert.Contains(t, got, "- Don Quijote de la Mancha (Miguel de Cervantes): sin ejemplares disponibles")

	empty := c.Compose(contractx.Outcome{Kind: contractx.OutcomeSuccess, Operation: contractx.OpListByAuthor, Subject: "Cortázar"})
	assert.Contains(t, empty, "No encontramos libros de «Cortázar»")
}

func TestComposeEnglish(t *testing.T) {
	t.Parallel()

	c, err := New("EN")
	require.NoError(t, err)
	got := c.Compose(contractx.Degraded("", contractx.ReasonSimulated, ""))
	assert.Contains(t, got, "temporarily unavailable and your request was not completed")
	assert.Equal(t, "Re: Hola", c.ReplySubject("Hola"))
}

func TestNewRejectsUnknownLanguage(t *testing.T) {
	t.Parallel()

	_, err := New("fr")
	assert.ErrorIs(t, err, contractx.ErrValidation)
}

func TestReplySubject(t *testing.T) {
	t.Parallel()

	c := MustNew("")
	assert.Equal(t, "Respuesta a: Reserva de libro", c.ReplySubject(" Reserva de libro "))
	assert.Equal(t, "Respuesta a:", c.ReplySubject(""))
}
