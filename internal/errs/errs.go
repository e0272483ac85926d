// Package errs defines the error taxonomy shared by every layer of dms.
//
// Each failure category is a sentinel error. Callers wrap a sentinel with
// fmt.Errorf("%w: ...") to add context and test for a category with
// errors.Is, the same way the store package exposes ErrNotFound:
//
//	if errors.Is(err, errs.ErrAuthorization) {
//	    // deny
//	}
//
// The pipeline executor annotates the first failing stage with StageError.
// The annotation is diagnostic only; errors.Is still sees the category.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks bad rule or stage setup. Fatal at startup.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation marks bad input the caller can correct.
	ErrValidation = errors.New("validation error")
	// ErrAuthorization marks a permission denial.
	ErrAuthorization = errors.New("authorization error")
	// ErrNotFound marks an unknown code or revision.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks a retryable I/O or environment failure.
	ErrTransient = errors.New("transient error")
	// ErrSequenceExhausted marks a rule whose identifier space is used up.
	ErrSequenceExhausted = errors.New("sequence exhausted")
	// ErrCollision marks a concurrent revision conflict. Under correct
	// locking this never happens, so seeing it is an assertion failure.
	ErrCollision = errors.New("revision collision")
)

// Kind names a taxonomy category for structured output.
type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindValidation        Kind = "validation"
	KindAuthorization     Kind = "authorization"
	KindNotFound          Kind = "not_found"
	KindTransient         Kind = "transient"
	KindSequenceExhausted Kind = "sequence_exhausted"
	KindCollision         Kind = "collision"
	KindUnknown           Kind = "unknown"
)

var kinds = []struct {
	err    error
	kind   Kind
	status int
}{
	{ErrConfiguration, KindConfiguration, 500},
	{ErrValidation, KindValidation, 400},
	{ErrAuthorization, KindAuthorization, 403},
	{ErrNotFound, KindNotFound, 404},
	{ErrTransient, KindTransient, 503},
	{ErrSequenceExhausted, KindSequenceExhausted, 507},
	{ErrCollision, KindCollision, 409},
}

// KindOf returns the taxonomy category of err, or KindUnknown when err does
// not wrap one of the sentinels. A nil error has no kind ("").
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// Status returns an HTTP-style status class for err so protocol adapters can
// map the taxonomy without a switch of their own. Unknown errors are 500.
func Status(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return 500
}

// Configurationf wraps ErrConfiguration with a formatted message.
func Configurationf(format string, args ...any) error {
	return wrap(ErrConfiguration, format, args...)
}

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

// Authorizationf wraps ErrAuthorization with a formatted message.
func Authorizationf(format string, args ...any) error {
	return wrap(ErrAuthorization, format, args...)
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

// Transientf wraps ErrTransient with a formatted message.
func Transientf(format string, args ...any) error {
	return wrap(ErrTransient, format, args...)
}

// SequenceExhaustedf wraps ErrSequenceExhausted with a formatted message.
func SequenceExhaustedf(format string, args ...any) error {
	return wrap(ErrSequenceExhausted, format, args...)
}

// Collisionf wraps ErrCollision with a formatted message.
func Collisionf(format string, args ...any) error {
	return wrap(ErrCollision, format, args...)
}

func wrap(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// StageError records which stage aborted a pipeline run.
type StageError struct {
	Stage string
	Point string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s (%s): %v", e.Stage, e.Point, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the name of the stage that raised err, if any.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
