package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrWindowNotFound     = errors.New("sale window not found")
	ErrLineNotFound       = errors.New("line item not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrSaleNotFound       = errors.New("completed sale not found")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
	ErrRegisterNotOpen    = errors.New("no open register session")
	ErrCloseInProgress    = errors.New("register close confirmation in progress")
	// ErrLateSubmission marks a sale the backend acknowledged after its
	// register stopped accepting movements.
	ErrLateSubmission = errors.New("sale acknowledged after the register stopped accepting movements")
)

// ValidationError blocks a transition locally. It is fully recoverable by
// further edits.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError reports that the backend already holds an open session for the
// PDV. Open resolves it by adopting that session; it only escapes when the
// adoption itself fails.
type ConflictError struct {
	PDVID int
	Err   error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("register already open for pdv %d: %v", e.PDVID, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// SubmissionError wraps a backend or network failure. The local state the
// operation was built from is left untouched so the same call can be retried.
type SubmissionError struct {
	Op  string
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ReconciliationError blocks a close whose counted amount differs from the
// expected balance and carries no closing notes.
type ReconciliationError struct {
	Expected   decimal.Decimal
	Counted    decimal.Decimal
	Difference decimal.Decimal
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("closing notes are required: counted %s differs from expected %s by %s",
		e.Counted.String(), e.Expected.String(), e.Difference.String())
}
