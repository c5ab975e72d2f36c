// Package oid defines the opaque object identifier used throughout the
// arena. An Oid carries no type information of its own; it is only
// resolvable through a directory.Directory.
package oid

// Oid identifies a single object. Only the low PointerSize bits (see the
// arena's tuning knobs) are ever meaningful; wider storage is used so the
// type works unmodified whether PointerSize is 32 or 64.
type Oid uint64

// Null is never returned by allocation and terminates every freelist.
const Null Oid = 0

// Valid reports whether o is a non-null identifier.
func (o Oid) Valid() bool {
	return o != Null
}
