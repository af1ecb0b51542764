package contract

import (
	"strings"
	"time"

	"github.com/tanpawarit/library-mail-agent/agent/catalog"
	statex "github.com/tanpawarit/library-mail-agent/agent/state"
)

type IntentKind string

const (
	IntentReserve      IntentKind = "reserve"
	IntentRenew        IntentKind = "renew"
	IntentCancel       IntentKind = "cancel"
	IntentListByAuthor IntentKind = "list_by_author"
	IntentListCatalog  IntentKind = "list_catalog"
	IntentUnknown      IntentKind = "unknown"
)

// IntentKinds lists every kind the reasoning service may answer with.
var IntentKinds = []IntentKind{
	IntentReserve,
	IntentRenew,
	IntentCancel,
	IntentListByAuthor,
	IntentListCatalog,
	IntentUnknown,
}

const (
	SlotTitle  = "title"
	SlotAuthor = "author"
)

type Intent struct {
	Kind          IntentKind        `json:"kind"`
	Slots         map[string]string `json:"slots,omitempty"`
	Confidence    float64           `json:"confidence"`
	LowConfidence bool              `json:"low_confidence,omitempty"`
	// Heuristic is set when the intent came from keyword matching instead of
	// the reasoning service.
	Heuristic bool `json:"heuristic,omitempty"`
}

// Slot returns the trimmed slot value or "" when absent.
func (i Intent) Slot(name string) string {
	if i.Slots == nil {
		return ""
	}
	return strings.TrimSpace(i.Slots[name])
}

type ExtractRequest struct {
	Text         string               `json:"message"`
	Sender       string               `json:"sender"`
	Conversation *statex.Conversation `json:"conversation,omitempty"`
	Now          time.Time            `json:"now"`
}

// Requester identifies who a store operation is executed for.
type Requester struct {
	Email string
	Name  string
}

type OperationKind string

const (
	OpReserveBook       OperationKind = "reserve_book"
	OpRenewReservation  OperationKind = "renew_reservation"
	OpCancelReservation OperationKind = "cancel_reservation"
	OpListByAuthor      OperationKind = "list_by_author"
	OpListCatalog       OperationKind = "list_catalog"
)

// Operation is the closed set of store actions the agent can run. Only the
// variants declared in this package implement it.
type Operation interface {
	Kind() OperationKind
	// Subject is the title or author the operation is about.
	Subject() string
	isOperation()
}

type ReserveBook struct {
	Title string
}

type RenewReservation struct {
	Title string
}

type CancelReservation struct {
	Title string
}

type ListByAuthor struct {
	Author string
}

type ListCatalog struct{}

func (ReserveBook) Kind() OperationKind       { return OpReserveBook }
func (RenewReservation) Kind() OperationKind  { return OpRenewReservation }
func (CancelReservation) Kind() OperationKind { return OpCancelReservation }
func (ListByAuthor) Kind() OperationKind      { return OpListByAuthor }
func (ListCatalog) Kind() OperationKind       { return OpListCatalog }

func (o ReserveBook) Subject() string       { return o.Title }
func (o RenewReservation) Subject() string  { return o.Title }
func (o CancelReservation) Subject() string { return o.Title }
func (o ListByAuthor) Subject() string      { return o.Author }
func (ListCatalog) Subject() string         { return "" }

func (ReserveBook) isOperation()       {}
func (RenewReservation) isOperation()  {}
func (CancelReservation) isOperation() {}
func (ListByAuthor) isOperation()      {}
func (ListCatalog) isOperation()       {}

type OutcomeKind string

const (
	OutcomeSuccess        OutcomeKind = "success"
	OutcomeNotFound       OutcomeKind = "not_found"
	OutcomeConflict       OutcomeKind = "conflict"
	OutcomeRejected       OutcomeKind = "rejected"
	OutcomeSystemDegraded OutcomeKind = "system_degraded"
)

// Machine readable reasons carried on non-success outcomes.
const (
	ReasonNoCopies        = "no_copies_available"
	ReasonAlreadyReserved = "already_reserved"
	ReasonAmbiguous       = "ambiguous_title"
	ReasonUnreadable      = "unreadable_request"
	ReasonUnknownIntent   = "unknown_intent"
	ReasonMissingSlot     = "missing_slot"
	ReasonUnsafeInput     = "unsafe_input"
	ReasonEmptyMessage    = "empty_message"
	ReasonStoreFailure    = "store_failure"
	ReasonSimulated       = "simulated"
)

type Outcome struct {
	Kind      OutcomeKind   `json:"kind"`
	Operation OperationKind `json:"operation,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	// Detail is for logs only and is never shown to the requester.
	Detail string `json:"-"`
	// Subject is the validated title or author, safe to echo back.
	Subject     string               `json:"subject,omitempty"`
	Book        *catalog.Book        `json:"book,omitempty"`
	Books       []catalog.Book       `json:"books,omitempty"`
	Reservation *catalog.Reservation `json:"reservation,omitempty"`
}

func Rejected(reason, detail string) Outcome {
	return Outcome{Kind: OutcomeRejected, Reason: reason, Detail: detail}
}

func Degraded(op OperationKind, reason, detail string) Outcome {
	return Outcome{Kind: OutcomeSystemDegraded, Operation: op, Reason: reason, Detail: detail}
}
