package core

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Kind classifies an error for callers (e.g. to pick an HTTP status).
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConfigurationMissing
	KindRateLimited
)

var kindNames = map[Kind]string{
	KindInternal:             "internal",
	KindValidation:           "validation",
	KindConflict:             "conflict",
	KindNotFound:             "not found",
	KindUnauthorized:         "unauthorized",
	KindForbidden:            "forbidden",
	KindConfigurationMissing: "configuration missing",
	KindRateLimited:          "rate limited",
}

func (k Kind) String() string { return kindNames[k] }

// Error is a domain error whose message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
}

func NewError(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

func (err *Error) Error() string {
	return err.Message
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// KindOf returns the Kind of the root cause of err.
// Anything we do not know about is internal.
func KindOf(err error) Kind {
	switch cause := errors.Cause(err).(type) {
	case *Error:
		return cause.Kind
	case *ValidationError, validator.ValidationErrors:
		return KindValidation
	default:
		return KindInternal
	}
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
