package translate

import (
	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
)

// Translator maps an Intent onto exactly one Operation variant. It never
// builds store commands; the engine owns how each variant is executed.
type Translator struct{}

func New() *Translator {
	return &Translator{}
}

func (Translator) Translate(intent contractx.Intent) (contractx.Operation, error) {
	switch intent.Kind {
	case contractx.IntentReserve:
		title, err := requireSlot(intent, contractx.SlotTitle)
		if err != nil {
			return nil, err
		}
		return contractx.ReserveBook{Title: title}, nil
	case contractx.IntentRenew:
		title, err := requireSlot(intent, contractx.SlotTitle)
		if err != nil {
			return nil, err
		}
		return contractx.RenewReservation{Title: title}, nil
	case contractx.IntentCancel:
		title, err := requireSlot(intent, contractx.SlotTitle)
		if err != nil {
			return nil, err
		}
		return contractx.CancelReservation{Title: title}, nil
	case contractx.IntentListByAuthor:
		author, err := requireSlot(intent, contractx.SlotAuthor)
		if err != nil {
			return nil, err
		}
		return contractx.ListByAuthor{Author: author}, nil
	case contractx.IntentListCatalog:
		return contractx.ListCatalog{}, nil
	default:
		return nil, &contractx.TranslationError{Kind: intent.Kind, Err: contractx.ErrUnknownIntent}
	}
}

func requireSlot(intent contractx.Intent, slot string) (string, error) {
	v := intent.Slot(slot)
	if v == "" {
		return "", &contractx.TranslationError{Kind: intent.Kind, Slot: slot, Err: contractx.ErrMissingSlot}
	}
	return v, nil
}
