// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
//
// The same envelope is what the backend ledger returns, so RemoteError decodes
// it on the client side.
package apierror

import (
	"fmt"
	"net/http"
)

// Machine-readable codes carried in the envelope.
const (
	CodeValidation          = "validation_error"
	CodeNotFound            = "not_found"
	CodeInvalidTransition   = "invalid_transition"
	CodeSubmissionInFlight  = "submission_in_flight"
	CodeRegisterNotOpen     = "register_not_open"
	CodeRegisterAlreadyOpen = "register_already_open"
	CodeCloseInProgress     = "close_in_progress"
	CodeLateSubmission      = "late_submission"
	CodeReconciliation      = "reconciliation_notes_required"
	CodeBackendUnavailable  = "backend_unavailable"
	CodeInternal            = "internal_error"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail    string `json:"detail"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// WithCode builds an envelope carrying a machine code.
func WithCode(code, msg string) *APIError {
	return &APIError{Detail: msg, Code: code}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation failed", Code: CodeValidation, Fields: fields}
}

// RemoteError is a non-2xx answer from the backend, decoded from its envelope.
type RemoteError struct {
	Status int
	Code   string
	Detail string
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend %d %s: %s", e.Status, e.Code, e.Detail)
	}
	return fmt.Sprintf("backend %d: %s", e.Status, e.Detail)
}

// IsConflict reports a register-already-open answer. The structured code or
// the 409 status decide; the detail text is never inspected.
func (e *RemoteError) IsConflict() bool {
	return e.Code == CodeRegisterAlreadyOpen || e.Status == http.StatusConflict
}

// NotFound reports a 404 answer.
func (e *RemoteError) NotFound() bool {
	return e.Status == http.StatusNotFound
}
