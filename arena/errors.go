package arena

import "github.com/sorear/compact/aerr"

// The arena's public error vocabulary is aerr's Kind/Error, re-exported
// here so callers only ever need to import the arena package.
type Kind = aerr.Kind

type Error = aerr.Error

const (
	OK                   = aerr.OK
	NoSuchChild          = aerr.NoSuchChild
	UnsupportedOperation = aerr.UnsupportedOperation
	ValidationError      = aerr.ValidationError
	InvalidLifetime      = aerr.InvalidLifetime
	RefcountOverflow     = aerr.RefcountOverflow
	SizeOverflow         = aerr.SizeOverflow
	OutOfMemory          = aerr.OutOfMemory
	CorruptHandleChain   = aerr.CorruptHandleChain
)

// HasKind reports whether err is an *Error of the given Kind.
func HasKind(err error, k Kind) bool { return aerr.HasKind(err, k) }
