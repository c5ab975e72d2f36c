// Package aerr is the arena's single error channel, factored into its own
// leaf package so every layer (pagepool, directory, class, typedesc) can
// return it without importing the top-level arena package.
//
// A small integer code with a String method, wrapped in a concrete error
// type instead of being the error type itself, so callers can still carry
// a free-form detail message the way *os.PathError does.
package aerr

import "fmt"

// Kind is the typed error code returned by arena operations.
type Kind int32

const (
	// OK is never wrapped in an Error; it exists so Kind has a
	// recognizable zero value for callers that log raw codes.
	OK Kind = iota
	NoSuchChild
	UnsupportedOperation
	ValidationError
	InvalidLifetime
	RefcountOverflow
	SizeOverflow
	OutOfMemory
	CorruptHandleChain
)

var kindNames = [...]string{
	OK:                   "OK",
	NoSuchChild:          "NoSuchChild",
	UnsupportedOperation: "UnsupportedOperation",
	ValidationError:      "ValidationError",
	InvalidLifetime:      "InvalidLifetime",
	RefcountOverflow:     "RefcountOverflow",
	SizeOverflow:         "SizeOverflow",
	OutOfMemory:          "OutOfMemory",
	CorruptHandleChain:   "CorruptHandleChain",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Error is the concrete error value every failing operation returns.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Is lets errors.Is(err, &aerr.Error{Kind: aerr.NoSuchChild}) work without
// requiring the caller to match Detail too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Kind == t.Kind
}

// HasKind reports whether err is an *Error of the given Kind.
func HasKind(err error, k Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == k
}

// New builds an *Error with a formatted detail message.
func New(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Detail: fmt.Sprintf(format, args...)}
}
