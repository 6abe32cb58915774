// Package errs defines the error taxonomy shared by the vault, the pool and
// the connection service. Every error carries a kind that callers match with
// errors.Is against the exported sentinels.
package errs

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("not found")
	ErrAuthentication = errors.New("authentication error")
	ErrFormat         = errors.New("format error")
	ErrPoolTimeout    = errors.New("pool timeout")
	ErrConnectivity   = errors.New("connectivity failure")
)

// DefaultMaxMessage bounds user visible error text.
const DefaultMaxMessage = 500

// Error is a classified error. Msg never contains secret material.
type Error struct {
	kind   error
	Msg    string
	Err    error
	opaque bool
}

func (e *Error) Error() string {
	if e.Err == nil || e.opaque {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.kind }

// Kind returns the sentinel the error matches.
func (e *Error) Kind() error { return e.kind }

func newf(kind error, cause error, format string, args ...any) *Error {
	return &Error{kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

func Validation(format string, args ...any) error {
	return newf(ErrValidation, nil, format, args...)
}

func NotFound(format string, args ...any) error {
	return newf(ErrNotFound, nil, format, args...)
}

func Authentication(cause error, format string, args ...any) error {
	return newf(ErrAuthentication, cause, format, args...)
}

func Format(format string, args ...any) error {
	return newf(ErrFormat, nil, format, args...)
}

func PoolTimeout(cause error, format string, args ...any) error {
	return newf(ErrPoolTimeout, cause, format, args...)
}

// Connectivity wraps a network or exchange-side failure.
func Connectivity(cause error, format string, args ...any) error {
	return newf(ErrConnectivity, cause, format, args...)
}

// WithMessage returns an error of the given kind whose text is exactly msg.
// The cause stays reachable through errors.Is and errors.As but is never
// rendered, so msg can be a sanitized version of it.
func WithMessage(kind error, msg string, cause error) error {
	return &Error{kind: kind, Msg: msg, Err: cause, opaque: true}
}

// KindOf returns the sentinel err matches, or ErrConnectivity when err is
// not classified.
func KindOf(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrAuthentication, ErrFormat, ErrPoolTimeout, ErrConnectivity} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrConnectivity
}

// IsCallerFault reports whether err was caused by the caller rather than by
// the exchange or the network. Such errors never mark a connection as failed.
func IsCallerFault(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound)
}

// KindName returns a short label for metrics and API responses.
func KindName(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrFormat):
		return "format"
	case errors.Is(err, ErrPoolTimeout):
		return "pool_timeout"
	default:
		return "connectivity"
	}
}

const redacted = "[redacted]"

// Sanitize removes every occurrence of the given secrets from msg, collapses
// line breaks and truncates the result to max runes.
func Sanitize(msg string, max int, secrets ...string) string {
	for _, s := range secrets {
		if len(s) >= 4 {
			msg = strings.ReplaceAll(msg, s, redacted)
		}
	}
	msg = strings.Join(strings.Fields(msg), " ")
	if max <= 0 {
		max = DefaultMaxMessage
	}
	if utf8.RuneCountInString(msg) <= max {
		return msg
	}
	return string([]rune(msg)[:max])
}
