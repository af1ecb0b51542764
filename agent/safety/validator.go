package safety

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
)

const DefaultMaxLength = 200

const (
	RuleEmpty       = "empty"
	RuleTooLong     = "too_long"
	RuleControl     = "control_character"
	RuleStoreSyntax = "store_syntax"
	RuleCharacter   = "character_not_allowed"
)

// Letters, marks, digits, spaces and a small punctuation set.
var allowedPattern = regexp.MustCompile(`^[\p{L}\p{M}\p{N} .,:!?()\-&/¿¡]+$`)

// Sequences that mean something to a query language or shell.
var storeSyntaxMarkers = []string{"'", `"`, ";", "--", "/*", "*/", `\`, "`", "="}

var whitespaceRun = regexp.MustCompile(`\s+`)

type Validator struct {
	maxLength int
}

func New(maxLength int) *Validator {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Validator{maxLength: maxLength}
}

// Validate checks every string field of op and returns a copy with the
// fields trimmed. It has no side effects.
func (v *Validator) Validate(op contractx.Operation) (contractx.Operation, error) {
	switch o := op.(type) {
	case contractx.ReserveBook:
		title, err := v.field("title", o.Title)
		if err != nil {
			return nil, err
		}
		return contractx.ReserveBook{Title: title}, nil
	case contractx.RenewReservation:
		title, err := v.field("title", o.Title)
		if err != nil {
			return nil, err
		}
		return contractx.RenewReservation{Title: title}, nil
	case contractx.CancelReservation:
		title, err := v.field("title", o.Title)
		if err != nil {
			return nil, err
		}
		return contractx.CancelReservation{Title: title}, nil
	case contractx.ListByAuthor:
		author, err := v.field("author", o.Author)
		if err != nil {
			return nil, err
		}
		return contractx.ListByAuthor{Author: author}, nil
	case contractx.ListCatalog:
		return o, nil
	default:
		return nil, &contractx.ValidationError{Field: "operation", Rule: fmt.Sprintf("unsupported %T", op)}
	}
}

func (v *Validator) field(name, raw string) (string, error) {
	for _, r := range raw {
		if unicode.IsControl(r) {
			return "", &contractx.ValidationError{Field: name, Rule: RuleControl}
		}
	}

	value := whitespaceRun.ReplaceAllString(strings.TrimSpace(raw), " ")
	if value == "" {
		return "", &contractx.ValidationError{Field: name, Rule: RuleEmpty}
	}
	if utf8.RuneCountInString(value) > v.maxLength {
		return "", &contractx.ValidationError{Field: name, Rule: RuleTooLong}
	}
	for _, marker := range storeSyntaxMarkers {
		if strings.Contains(value, marker) {
			return "", &contractx.ValidationError{Field: name, Rule: RuleStoreSyntax}
		}
	}
	if !allowedPattern.MatchString(value) {
		return "", &contractx.ValidationError{Field: name, Rule: RuleCharacter}
	}
	return value, nil
}
