// Package typedesc implements the tree of type descriptors and their
// operation vtables that drive typed reads, writes, initialization,
// destruction, and the compactor hooks.
//
// A descriptor is a small required interface plus a family of optional
// hook interfaces a concrete kind implements only if it needs them.
// Aggregate descriptors OR their children's flags together, so a hook is
// skipped only when no part of the payload uses it.
package typedesc

import (
	"io"

	"github.com/sorear/compact/aerr"
	"github.com/sorear/compact/fv"
	"github.com/sorear/compact/oid"
)

// Flag enumerates which optional hooks a descriptor (or, for an aggregate,
// any of its children) requires the driver to invoke.
type Flag uint32

const (
	FlagInitialize Flag = 1 << iota
	FlagDestroy
	FlagTranslocate
	FlagPostcompact
	FlagMark
	FlagForwardize
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// Accessor is what a descriptor's hooks use to reach bits belonging to an
// arbitrary object (not necessarily the one the hook was invoked on; Ref,
// Array and Hash need to dereference other objects). The arena package is
// the only implementer.
type Accessor interface {
	Fetch(o oid.Oid, bitOff, count int) (uint64, error)
	FetchSigned(o oid.Oid, bitOff, count int) (int64, error)
	Store(o oid.Oid, bitOff, count int, val uint64) error
	Ref(o oid.Oid) error
	Unref(o oid.Oid) error
}

// NodeAllocator creates and frees the backing objects a variable-length
// type (Array, Hash) needs for its internal chunked storage. class.Class
// satisfies this without typedesc importing class: the method set is
// declared here and implemented there.
type NodeAllocator interface {
	NewNode(acc Accessor) (oid.Oid, error)
	FreeNode(acc Accessor, o oid.Oid) error
}

// ForwardMap resolves an object's post-compaction identity.
type ForwardMap interface {
	Forward(o oid.Oid) oid.Oid
}

// Type is the required vtable every descriptor implements. The four
// operations are always callable; a
// descriptor with no subobjects or no scalar representation answers with
// NoSuchChild / UnsupportedOperation rather than omitting the method.
type Type interface {
	// InlineSize is the bit width of the descriptor's representation
	// when it appears inline (as a Record field or Vector element).
	InlineSize() int
	Flags() Flag
	Deparse(w io.Writer)

	Subobject(acc Accessor, obj oid.Oid, bitOff int, name string) (oid.Oid, int, Type, error)
	SubobjectExists(acc Accessor, obj oid.Oid, bitOff int, name string) bool
	ScalarGet(acc Accessor, obj oid.Oid, bitOff int) (fv.FV, error)
	ScalarPut(acc Accessor, obj oid.Oid, bitOff int, val fv.FV) error
}

// Optional hook interfaces. A descriptor implements the ones named by the
// bits it sets in Flags(); the driver checks Flags() first and need not
// type-assert on the common path where a hook is unused.
type Initializer interface {
	Initialize(acc Accessor, obj oid.Oid, bitOff int) error
}

type Destroyer interface {
	Destroy(acc Accessor, obj oid.Oid, bitOff int) error
}

type Translocator interface {
	Translocate(acc Accessor, oldObj, newObj oid.Oid, bitOff int) error
}

type Postcompactor interface {
	Postcompact(acc Accessor, obj oid.Oid) error
}

type Marker interface {
	Mark(acc Accessor, obj oid.Oid, bitOff int) error
}

type Forwardizer interface {
	Forwardize(acc Accessor, obj oid.Oid, bitOff int, fwd ForwardMap) error
}

// base implements the "always no" answers for Subobject/ScalarGet/etc so
// leaf descriptors only override what they actually support.
type base struct{}

func (base) Subobject(Accessor, oid.Oid, int, string) (oid.Oid, int, Type, error) {
	return oid.Null, 0, nil, aerr.New(aerr.NoSuchChild, "leaf type has no subobjects")
}

func (base) SubobjectExists(Accessor, oid.Oid, int, string) bool { return false }

func (base) ScalarGet(Accessor, oid.Oid, int) (fv.FV, error) {
	return fv.Nil, aerr.New(aerr.UnsupportedOperation, "scalar_get not supported by this type")
}

func (base) ScalarPut(Accessor, oid.Oid, int, fv.FV) error {
	return aerr.New(aerr.UnsupportedOperation, "scalar_put not supported by this type")
}

func (base) Flags() Flag { return 0 }
