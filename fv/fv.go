// Package fv is the trivial stand-in for the embedding host's foreign
// scalar/string/reference value type (atomic refcount, clone, equality).
// It gives the arena a minimal but real implementation of that external
// collaborator, so the arena builds and tests as a standalone library.
package fv

import "sync/atomic"

// Kind distinguishes the handful of shapes an FV can hold.
type Kind int

const (
	KindNil Kind = iota
	KindInt
	KindFloat
	KindString
	KindRef // an opaque handle into the host, e.g. a HostRef target
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindRef:
		return "ref"
	default:
		return "unknown"
	}
}

// FV is a small tagged union with a shared atomic refcount. Values are
// copied by the Go compiler like any struct, but Clone/Drop track the
// logical reference the embedding host would otherwise manage.
type FV struct {
	kind Kind
	i    int64
	f    float64
	s    string
	ref  interface{}
	rc   *int32
}

// Nil is the zero FV.
var Nil = FV{kind: KindNil}

func newRC() *int32 {
	v := int32(1)
	return &v
}

func Int(v int64) FV { return FV{kind: KindInt, i: v, rc: newRC()} }
func Float(v float64) FV { return FV{kind: KindFloat, f: v, rc: newRC()} }
func String(v string) FV { return FV{kind: KindString, s: v, rc: newRC()} }
func Ref(v interface{}) FV { return FV{kind: KindRef, ref: v, rc: newRC()} }

func (v FV) Kind() Kind { return v.kind }
func (v FV) Int() int64 { return v.i }
func (v FV) Float() float64 { return v.f }
func (v FV) String() string { return v.s }
func (v FV) Ref() interface{} { return v.ref }

// Clone bumps the shared refcount and returns the same logical value.
func (v FV) Clone() FV {
	if v.rc != nil {
		atomic.AddInt32(v.rc, 1)
	}
	return v
}

// Drop releases one reference. The stub has nothing to free once the
// count reaches zero (there is no host-side allocation behind it), but a
// real embedding's FV would run its destructor here.
func (v FV) Drop() {
	if v.rc != nil {
		atomic.AddInt32(v.rc, -1)
	}
}

// RefCount reports the current reference count, for tests.
func (v FV) RefCount() int32 {
	if v.rc == nil {
		return 0
	}
	return atomic.LoadInt32(v.rc)
}

// Equal compares two FVs by value (not by identity or refcount).
func (v FV) Equal(o FV) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindRef:
		return v.ref == o.ref
	default:
		return false
	}
}
