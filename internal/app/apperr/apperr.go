// Package apperr holds the error kinds shared by services, stores and handlers.
//
// A kind is a sentinel matched with errors.Is. Errors that carry a message meant
// for API clients are built with New (or one of its shortcuts) and read back with
// Message.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrStorage           = errors.New("storage failure")
	ErrNetwork           = errors.New("network error")
)

// Error is an error of a known kind with a client-facing message
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// New error of kind with message
func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Validation(message string) error {
	return New(ErrInvalidInput, message)
}

func Unauthorized(message string) error {
	return New(ErrUnauthorized, message)
}

func NotFound(message string) error {
	return New(ErrNotFound, message)
}

// Storage wraps an I/O failure of operation op
func Storage(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// Message returns the client-facing message of err or fallback when err has none
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return fallback
}
