package translate

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
)

func TestTranslateMapsEveryKnownKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		intent contractx.Intent
		want   contractx.Operation
	}{
		{
			name:   "reserve",
			intent: contractx.Intent{Kind: contractx.IntentReserve, Slots: map[string]string{"title": " 1984 "}},
			want:   contractx.ReserveBook{Title: "1984"},
		},
		{
			name:   "renew",
			intent: contractx.Intent{Kind: contractx.IntentRenew, Slots: map[string]string{"title": "Ficciones"}},
			want:   contractx.RenewReservation{Title: "Ficciones"},
		},
		{
			name:   "cancel",
			intent: contractx.Intent{Kind: contractx.IntentCancel, Slots: map[string]string{"title": "Ficciones"}},
			want:   contractx.CancelReservation{Title: "Ficciones"},
		},
		{
			name:   "list by author",
			intent: contractx.Intent{Kind: contractx.IntentListByAuthor, Slots: map[string]string{"author": "Isabel Allende"}},
			want:   contractx.ListByAuthor{Author: "Isabel Allende"},
		},
		{
			name:   "list catalog ignores slots",
			intent: contractx.Intent{Kind: contractx.IntentListCatalog, Slots: map[string]string{"title": "x"}},
			want:   contractx.ListCatalog{},
		},
	}

	tr := New()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tr.Translate(tc.intent)
			if err != nil {
				t.Fatalf("Translate() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("Translate() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestTranslateUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := New().Translate(contractx.Intent{Kind: contractx.IntentUnknown})
	var terr *contractx.TranslationError
	if !errors.As(err, &terr) {
		t.Fatalf("Translate() error = %v, want TranslationError", err)
	}
	if !errors.Is(err, contractx.ErrUnknownIntent) {
		t.Fatalf("Translate() error = %v, want ErrUnknownIntent", err)
	}

	_, err = New().Translate(contractx.Intent{Kind: "delete_everything"})
	if !errors.Is(err, contractx.ErrUnknownIntent) {
		t.Fatalf("Translate() error = %v, want ErrUnknownIntent", err)
	}
}

func TestTranslateMissingSlot(t *testing.T) {
	t.Parallel()

	_, err := New().Translate(contractx.Intent{Kind: contractx.IntentReserve, Slots: map[string]string{"title": "   "}})
	var terr *contractx.TranslationError
	if !errors.As(err, &terr) {
		t.Fatalf("Translate() error = %v, want TranslationError", err)
	}
	if terr.Slot != contractx.SlotTitle || !errors.Is(err, contractx.ErrMissingSlot) {
		t.Fatalf("Translate() error = %v, want missing title", err)
	}

	_, err = New().Translate(contractx.Intent{Kind: contractx.IntentListByAuthor})
	if !errors.Is(err, contractx.ErrMissingSlot) {
		t.Fatalf("Translate() error = %v, want ErrMissingSlot", err)
	}
}
