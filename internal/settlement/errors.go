package settlement

import (
	"errors"
	"fmt"
)

// Kind classifies a settlement failure.
type Kind string

const (
	KindAlreadySettled             Kind = "AlreadySettled"
	KindInsufficientFunds          Kind = "InsufficientFunds"
	KindRateResolutionFailed       Kind = "RateResolutionFailed"
	KindInvalidSettlementBreakdown Kind = "InvalidSettlementBreakdown"
	KindLedgerWriteFailed          Kind = "LedgerWriteFailed"
	KindRollbackFailed             Kind = "RollbackFailed"
	KindInvalidRequest             Kind = "InvalidRequest"

	// KindLedgerConflict means the ledger holds entries for the session that
	// no retry can reconcile; an operator must resolve it.
	KindLedgerConflict Kind = "LedgerConflict"
)

// Retryable reports whether the caller may resubmit the same request.
// InsufficientFunds is only worth retrying after the balance changes, so it
// is reported as not retryable.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateResolutionFailed, KindLedgerWriteFailed:
		return true
	default:
		return false
	}
}

// UserMessage is the text a caller may show the payer.
func (k Kind) UserMessage() string {
	switch k {
	case KindAlreadySettled:
		return "this session has already been paid"
	case KindInsufficientFunds:
		return "your balance does not cover this session, please top up and try again"
	case KindInvalidRequest:
		return "the settlement request is invalid"
	default:
		return "payment processing failed, please contact support"
	}
}

var (
	ErrInvalidRequest = errors.New("invalid settlement request")
	ErrNotSettled     = errors.New("session is not settled")
)

// Error is the typed failure every settlement step escalates.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Retryable() bool { return e.Kind.Retryable() }

func newError(kind Kind, msg string, err error, details map[string]any) *Error {
	return &Error{Kind: kind, Message: msg, Err: err, Details: details}
}

// KindOf returns the Kind carried by err, or "" when err is not a
// settlement error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// failure converts err into the caller-facing Result.
func failure(err error) Result {
	var se *Error
	if !errors.As(err, &se) {
		se = newError(KindLedgerWriteFailed, "unexpected failure", err, nil)
	}
	return Result{
		Settled:   false,
		ErrorKind: se.Kind,
		Message:   se.Kind.UserMessage(),
		Retryable: se.Retryable(),
		Details:   se.Details,
	}
}
