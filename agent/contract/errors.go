package contract

import (
	"errors"
	"fmt"
)

var (
	ErrModelInvoke        = errors.New("model invoke failed")
	ErrSchemaViolation    = errors.New("model response violates schema")
	ErrPromptMissing      = errors.New("required prompt is missing")
	ErrValidation         = errors.New("validation failed")
	ErrServiceUnavailable = errors.New("reasoning service unavailable")
	ErrServiceTimeout     = errors.New("reasoning service timed out")
	ErrUnknownIntent      = errors.New("intent is unknown")
	ErrMissingSlot        = errors.New("required slot is missing")
	ErrUnsafeParameter    = errors.New("parameter failed safety validation")
)

// FailureCause classifies why the reasoning service could not produce an intent.
type FailureCause string

const (
	CauseUnavailable FailureCause = "unavailable"
	CauseTimeout     FailureCause = "timeout"
	CauseMalformed   FailureCause = "malformed"
)

// ExtractionFailure is returned by an IntentExtractor when no usable intent
// could be derived from the reasoning service.
type ExtractionFailure struct {
	Cause FailureCause
	Err   error
}

func (e *ExtractionFailure) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extraction failed (%s)", e.Cause)
	}
	return fmt.Sprintf("extraction failed (%s): %v", e.Cause, e.Err)
}

func (e *ExtractionFailure) Unwrap() error {
	return e.Err
}

// Degraded reports whether the failure means the service is not reachable,
// as opposed to reachable but answering nonsense.
func (e *ExtractionFailure) Degraded() bool {
	return e.Cause == CauseUnavailable || e.Cause == CauseTimeout
}

func NewExtractionFailure(cause FailureCause, format string, args ...any) *ExtractionFailure {
	var sentinel error
	switch cause {
	case CauseTimeout:
		sentinel = ErrServiceTimeout
	case CauseUnavailable:
		sentinel = ErrServiceUnavailable
	default:
		sentinel = ErrSchemaViolation
	}
	return &ExtractionFailure{
		Cause: cause,
		Err:   fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)),
	}
}

// TranslationError means an intent cannot be mapped onto any store operation.
type TranslationError struct {
	Kind IntentKind
	Slot string
	Err  error
}

func (e *TranslationError) Error() string {
	if e.Slot != "" {
		return fmt.Sprintf("translate intent=%s: %v (slot=%s)", e.Kind, e.Err, e.Slot)
	}
	return fmt.Sprintf("translate intent=%s: %v", e.Kind, e.Err)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}

// ValidationError names the operation field and the rule it broke.
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: field=%s rule=%s", ErrUnsafeParameter, e.Field, e.Rule)
}

func (e *ValidationError) Unwrap() error {
	return ErrUnsafeParameter
}
