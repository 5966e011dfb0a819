// Package rterr implements the structured error model shared by every
// component of the runtime. It never panics and never allocates on a
// successful path; an Error is a flat category+code+static-message value
// with an optional boxed cause.
package rterr

import "fmt"

// Category groups errors by the subsystem-level taxonomy the runtime
// exposes to hosts. The numeric category is part of the stable host ABI
// (see api.Category) and must not be reordered.
type Category uint8

const (
	Core Category = iota
	Component
	Resource
	Memory
	Validation
	Type
	Runtime
	System
	Parse
	Safety
)

func (c Category) String() string {
	switch c {
	case Core:
		return "Core"
	case Component:
		return "Component"
	case Resource:
		return "Resource"
	case Memory:
		return "Memory"
	case Validation:
		return "Validation"
	case Type:
		return "Type"
	case Runtime:
		return "Runtime"
	case System:
		return "System"
	case Parse:
		return "Parse"
	case Safety:
		return "Safety"
	default:
		return "Unknown"
	}
}

// Code is a stable, per-category numeric identifier. Codes are never
// reused or renumbered once published.
type Code uint16

// Error is the single structured error type returned by every fallible
// runtime operation. It is immutable after construction.
type Error struct {
	category Category
	code     Code
	message  string
	cause    error
	offset   int64
	hasOff   bool
}

// New constructs a causeless Error. message must be a static string
// literal; it is never built from dynamic data on the hot path.
func New(category Category, code Code, message string) *Error {
	return &Error{category: category, code: code, message: message}
}

// Wrap constructs an Error chaining a predecessor cause.
func Wrap(category Category, code Code, message string, cause error) *Error {
	return &Error{category: category, code: code, message: message, cause: cause}
}

// WithOffset returns a copy of e annotated with a byte offset, used by the
// decoder to report the exact position of a structural failure.
func (e *Error) WithOffset(offset int64) *Error {
	c := *e
	c.offset = offset
	c.hasOff = true
	return &c
}

func (e *Error) Category() Category { return e.category }
func (e *Error) Code() Code         { return e.code }
func (e *Error) Message() string    { return e.message }

// Offset returns the byte offset associated with the error, if any.
func (e *Error) Offset() (int64, bool) { return e.offset, e.hasOff }

func (e *Error) Error() string {
	if e.hasOff {
		if e.cause != nil {
			return fmt.Sprintf("%s/%d at offset %d: %s: %v", e.category, e.code, e.offset, e.message, e.cause)
		}
		return fmt.Sprintf("%s/%d at offset %d: %s", e.category, e.code, e.offset, e.message)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s/%d: %s: %v", e.category, e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s/%d: %s", e.category, e.code, e.message)
}

// Unwrap exposes the chained cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether err is an *Error carrying the given category and
// code, without requiring the caller to construct a sentinel value.
func Is(err error, category Category, code Code) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.category == category && e.code == code
}

// Is allows errors.Is(err, rterr.New(Category, Code, "")) style sentinel
// comparisons based on category+code identity, ignoring the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.category == t.category && e.code == t.code
}
