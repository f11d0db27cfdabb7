package dberr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error raised by the execution layer.
type Kind int

const (
	// KindUnknown is an unclassified error.
	KindUnknown Kind = iota

	// KindNotSupported marks an abstract capability the backend does not
	// implement. Always fatal to the caller, never retried.
	KindNotSupported

	// KindIntegrity marks constraint violations (unique, foreign key,
	// check, not-null).
	KindIntegrity

	// KindOperational marks errors tied to the database's operation:
	// resource limits, lock timeouts, connectivity trouble.
	KindOperational

	// KindProgramming marks errors in the statement itself: syntax
	// errors, missing objects, wrong parameter counts.
	KindProgramming

	// KindDisconnect marks an error that indicates a dead connection.
	// The engine invalidates the connection when one is raised.
	KindDisconnect

	// KindInternal marks driver or engine internal failures.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotSupported:
		return "NotSupportedError"
	case KindIntegrity:
		return "IntegrityError"
	case KindOperational:
		return "OperationalError"
	case KindProgramming:
		return "ProgrammingError"
	case KindDisconnect:
		return "DisconnectError"
	case KindInternal:
		return "InternalError"
	default:
		return "DatabaseError"
	}
}

// ErrNotSupported is the sentinel wrapped by every not-implemented
// capability error, so callers can test with errors.Is.
var ErrNotSupported = errors.New("not supported by this dialect")

// Error is a classified database error. It preserves the original driver
// error as its cause and, when known, the statement and parameters that
// were executing.
type Error struct {
	Kind      Kind
	Statement string
	Params    []any
	cause     error
}

// New wraps cause as a classified error.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

// WithStatement returns a copy annotated with the statement and parameters
// in flight when the error was raised.
func (e *Error) WithStatement(statement string, params []any) *Error {
	c := *e
	c.Statement = statement
	c.Params = params
	return &c
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	if e.Statement != "" {
		fmt.Fprintf(&b, " [SQL: %s]", e.Statement)
		if len(e.Params) > 0 {
			fmt.Fprintf(&b, " [parameters: %v]", e.Params)
		}
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// NotImplemented reports that the named dialect operation has no
// implementation on this backend.
func NotImplemented(op string) error {
	return &Error{Kind: KindNotSupported, cause: fmt.Errorf("%s: %w", op, ErrNotSupported)}
}

// KindOf returns the classification of err, or KindUnknown if err is not a
// *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsDisconnect reports whether err was classified as a disconnect.
func IsDisconnect(err error) bool { return KindOf(err) == KindDisconnect }
