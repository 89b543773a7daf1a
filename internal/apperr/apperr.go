// Package apperr defines the error categories surfaced by the API and their
// HTTP status codes. Causes are kept for logging and never serialized.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
)

type Kind string

const (
	KindInvalidRequest          Kind = "Invalid request"
	KindUnauthorized            Kind = "Unauthorized"
	KindForbidden               Kind = "Forbidden"
	KindNotFound                Kind = "Not found"
	KindConflict                Kind = "Conflict"
	KindInvalidAmount           Kind = "Invalid amount"
	KindInsufficientBalance     Kind = "Insufficient balance"
	KindPaymentProcessingFailed Kind = "Payment processing failed"
	KindInternal                Kind = "Internal server error"
)

// Error is a categorized failure with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind, so errors.Is(err, apperr.Unauthorized(""))
// works without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func InvalidRequest(message string) *Error { return New(KindInvalidRequest, message) }
func Unauthorized(message string) *Error   { return New(KindUnauthorized, message) }
func Forbidden(message string) *Error      { return New(KindForbidden, message) }
func NotFound(message string) *Error       { return New(KindNotFound, message) }
func Conflict(message string) *Error       { return New(KindConflict, message) }
func InvalidAmount(message string) *Error  { return New(KindInvalidAmount, message) }

func InsufficientBalance(message string) *Error {
	return New(KindInsufficientBalance, message)
}

func PaymentProcessingFailed(cause error) *Error {
	return Wrap(KindPaymentProcessingFailed, "the payment could not be completed", cause)
}

// KindOf returns the category of err, or KindInternal for uncategorized errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the client-safe message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "an unexpected error occurred"
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidRequest, KindInvalidAmount, KindInsufficientBalance:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Response is the body of every error reply.
type Response struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSON writes err as an error reply with its category status.
func WriteJSON(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(err))
	json.NewEncoder(w).Encode(Response{Error: string(KindOf(err)), Details: Message(err)})
}
