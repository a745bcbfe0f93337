package storage

import (
	"errors"
	"fmt"
)

// ErrorCode classifies storage failures for callers. Backends never signal
// "not found" with an empty value; they return an Error carrying NotFound.
type ErrorCode int

const (
	ErrConnectionFailed ErrorCode = iota
	ErrNotFound
	ErrAlreadyExists
	ErrTooLarge
	ErrExpired
	ErrInvalid
	ErrOther
)

func (c ErrorCode) String() string {
	switch c {
	case ErrConnectionFailed:
		return "ConnectionFailed"
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrTooLarge:
		return "TooLarge"
	case ErrExpired:
		return "Expired"
	case ErrInvalid:
		return "Invalid"
	default:
		return "Other"
	}
}

// Error is the public-facing failure type of the storage layer.
type Error struct {
	Code    ErrorCode
	Message string
	Inner   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Inner != nil {
		return e.Inner.Error()
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error {
	return e.Inner
}

// NewError builds an Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error around an inner cause.
func WrapError(code ErrorCode, message string, inner error) *Error {
	return &Error{Code: code, Message: message, Inner: inner}
}

// IsCode reports whether err carries the given storage error code.
func IsCode(err error, code ErrorCode) bool {
	var serr *Error
	return errors.As(err, &serr) && serr.Code == code
}

// CodeOf extracts the storage error code from err, defaulting to ErrOther for
// foreign errors.
func CodeOf(err error) ErrorCode {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Code
	}
	return ErrOther
}
