package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed
	ErrValidationFailed = errors.New("validation failed")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Kind classifies an Error into one of the handful of outcomes the HTTP and
// job-queue layers need to branch on. It deliberately does not distinguish
// finer-grained causes — those live in the wrapped error.
type Kind int

const (
	KindUnknown Kind = iota
	KindSSRF
	KindUpstream
	KindDBBusy
	KindValidation
	KindTimeout
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindSSRF:
		return "ssrf"
	case KindUpstream:
		return "upstream"
	case KindDBBusy:
		return "db_busy"
	case KindValidation:
		return "validation"
	case KindTimeout:
		return "timeout"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a typed domain error carrying a Kind alongside the usual wrapped
// cause. Callers switch on Kind rather than matching error strings.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error of the given kind wrapping cause (which may be nil).
func NewError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error, else
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsSSRF, IsUpstream, IsDBBusy, IsTimeout are small convenience predicates
// used throughout the HTTP and job-queue layers.
func IsSSRF(err error) bool     { return KindOf(err) == KindSSRF }
func IsUpstream(err error) bool { return KindOf(err) == KindUpstream }
func IsDBBusy(err error) bool   { return KindOf(err) == KindDBBusy }
func IsTimeout(err error) bool  { return KindOf(err) == KindTimeout }
