package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies a ledger failure.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindValidation Kind = "validation_error"
	KindRepository Kind = "repository_error"
)

// Error is the typed failure returned by every ledger operation.
type Error struct {
	Kind    Kind
	Code    string
	Field   string
	Message string
	Err     error
}

// Error renders the field, message and cause.
func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind, and on code when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

var (
	ErrNotFound = &Error{Kind: KindNotFound, Message: "not found"}

	ErrConflict              = &Error{Kind: KindConflict, Message: "conflict"}
	ErrAlreadyCheckedIn      = &Error{Kind: KindConflict, Code: "already_checked_in", Message: "already checked in today"}
	ErrAlreadyCheckedOut     = &Error{Kind: KindConflict, Code: "already_checked_out", Message: "already checked out"}
	ErrNotCheckedIn          = &Error{Kind: KindConflict, Code: "not_checked_in", Message: "no open session today"}
	ErrNotPending            = &Error{Kind: KindConflict, Code: "not_pending", Message: "record is not pending"}
	ErrNotProcessed          = &Error{Kind: KindConflict, Code: "not_processed", Message: "payroll has not been processed"}
	ErrRequestInProgress     = &Error{Kind: KindConflict, Code: "request_in_progress", Message: "a request with this idempotency key is in progress"}
	ErrDuplicateEmployeeCode = &Error{Kind: KindConflict, Code: "duplicate_employee_code", Message: "employee code already in use"}

	ErrValidation = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrRepository = &Error{Kind: KindRepository, Message: "repository failure"}
)

// Validation returns a validation failure naming the offending field.
func Validation(field, format string, args ...any) error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// RepositoryFailure wraps a store error. A nil err yields nil.
func RepositoryFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	return &Error{Kind: KindRepository, Message: op, Err: err}
}

// KindOf returns the kind of err, or "" for untyped errors.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// AsError extracts the typed ledger error from err.
func AsError(err error) (*Error, bool) {
	var le *Error
	ok := errors.As(err, &le)
	return le, ok
}
