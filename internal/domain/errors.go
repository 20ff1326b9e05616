package domain

import "fmt"

// Code is a stable, client-visible reason code
type Code string

const (
	CodeValidation             Code = "validation_error"
	CodeInsufficientBalance    Code = "insufficient_balance"
	CodeInvalidTransition      Code = "invalid_transition"
	CodeForbidden              Code = "forbidden"
	CodeNotFound               Code = "not_found"
	CodeAlreadyRated           Code = "already_rated"
	CodeJobAlreadyAssigned     Code = "job_already_assigned"
	CodePaymentAlreadyTerminal Code = "payment_already_terminal"
	CodeConcurrencyConflict    Code = "concurrency_conflict"
	CodeGateway                Code = "gateway_error"
)

// Error is the error type returned by every core operation
type Error struct {
	Code    Code   `json:"code"`    // Reason code
	Message string `json:"message"` // Human readable message
	Err     error  `json:"-"`       // Underlying cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code, so sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is
var (
	ErrValidation             = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrInsufficientBalance    = &Error{Code: CodeInsufficientBalance, Message: "insufficient token balance"}
	ErrInvalidTransition      = &Error{Code: CodeInvalidTransition, Message: "invalid transition"}
	ErrForbidden              = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrNotFound               = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyRated           = &Error{Code: CodeAlreadyRated, Message: "already rated this job"}
	ErrJobAlreadyAssigned     = &Error{Code: CodeJobAlreadyAssigned, Message: "job already assigned"}
	ErrPaymentAlreadyTerminal = &Error{Code: CodePaymentAlreadyTerminal, Message: "payment already terminal"}
	ErrConcurrencyConflict    = &Error{Code: CodeConcurrencyConflict, Message: "concurrent update conflict"}
	ErrGateway                = &Error{Code: CodeGateway, Message: "payment gateway error"}
)

// NewError builds an *Error with a formatted message
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation is shorthand for a validation_error
func Validation(format string, args ...any) *Error {
	return NewError(CodeValidation, format, args...)
}

// NotFound is shorthand for a not_found error naming the entity
func NotFound(entity string) *Error {
	return NewError(CodeNotFound, "%s not found", entity)
}

// Forbidden is shorthand for a forbidden error
func Forbidden(format string, args ...any) *Error {
	return NewError(CodeForbidden, format, args...)
}

// InvalidTransition is shorthand for an invalid_transition error
func InvalidTransition(format string, args ...any) *Error {
	return NewError(CodeInvalidTransition, format, args...)
}

// WithCause attaches an underlying error
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.Err = err
	return &c
}
