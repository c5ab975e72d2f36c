package typedesc

import (
	"fmt"
	"io"
	"sync"

	"github.com/sorear/compact/aerr"
	"github.com/sorear/compact/fv"
	"github.com/sorear/compact/oid"
)

// RefType stores an internal reference: an Oid, ref'd while held. Bits
// matches the arena's configured pointer_size; callers construct
// RefType/WeakRefType with the value their arena was built with.
type RefType struct {
	base
	Bits int
}

func NewRefType(bits int) *RefType { return &RefType{Bits: bits} }

func (t *RefType) InlineSize() int     { return t.Bits }
func (t *RefType) Flags() Flag         { return FlagDestroy | FlagMark | FlagForwardize }
func (t *RefType) Deparse(w io.Writer) { fmt.Fprint(w, "ref") }

func (t *RefType) ScalarGet(acc Accessor, obj oid.Oid, bitOff int) (fv.FV, error) {
	v, err := acc.Fetch(obj, bitOff, t.Bits)
	if err != nil {
		return fv.Nil, err
	}
	return fv.Ref(oid.Oid(v)), nil
}

func (t *RefType) ScalarPut(acc Accessor, obj oid.Oid, bitOff int, val fv.FV) error {
	target, ok := val.Ref().(oid.Oid)
	if val.Kind() != fv.KindRef || !ok {
		return aerr.New(aerr.ValidationError, "ref put requires a ref FV wrapping an oid.Oid")
	}
	old, err := acc.Fetch(obj, bitOff, t.Bits)
	if err != nil {
		return err
	}
	if oid.Oid(old).Valid() {
		if err := acc.Unref(oid.Oid(old)); err != nil {
			return err
		}
	}
	if target.Valid() {
		if err := acc.Ref(target); err != nil {
			return err
		}
	}
	return acc.Store(obj, bitOff, t.Bits, uint64(target))
}

func (t *RefType) Destroy(acc Accessor, obj oid.Oid, bitOff int) error {
	v, err := acc.Fetch(obj, bitOff, t.Bits)
	if err != nil {
		return err
	}
	if target := oid.Oid(v); target.Valid() {
		return acc.Unref(target)
	}
	return nil
}

func (t *RefType) Mark(acc Accessor, obj oid.Oid, bitOff int) error {
	// Marking a strong reference's target is the collector's job; the
	// hook exists so collected-lifetime graphs can be traced. This
	// module has no collector: Mark reads the target field, reports any
	// read error, and records nothing.
	_, err := acc.Fetch(obj, bitOff, t.Bits)
	return err
}

func (t *RefType) Forwardize(acc Accessor, obj oid.Oid, bitOff int, fwd ForwardMap) error {
	v, err := acc.Fetch(obj, bitOff, t.Bits)
	if err != nil {
		return err
	}
	old := oid.Oid(v)
	if !old.Valid() {
		return nil
	}
	return acc.Store(obj, bitOff, t.Bits, uint64(fwd.Forward(old)))
}

// WeakRefType stores an Oid like RefType but holds no reference on the
// target: ref/unref are skipped, and the back-reference is tracked here
// so Translocate can rewrite every weak holder when its target moves.
type WeakRefType struct {
	base
	Bits int

	mu       sync.Mutex
	backrefs map[oid.Oid]map[weakSlot]struct{}
}

type weakSlot struct {
	owner oid.Oid
	bit   int
}

func NewWeakRefType(bits int) *WeakRefType {
	return &WeakRefType{Bits: bits, backrefs: make(map[oid.Oid]map[weakSlot]struct{})}
}

func (t *WeakRefType) InlineSize() int     { return t.Bits }
func (t *WeakRefType) Flags() Flag         { return FlagTranslocate | FlagForwardize }
func (t *WeakRefType) Deparse(w io.Writer) { fmt.Fprint(w, "weak_ref") }

func (t *WeakRefType) ScalarGet(acc Accessor, obj oid.Oid, bitOff int) (fv.FV, error) {
	v, err := acc.Fetch(obj, bitOff, t.Bits)
	if err != nil {
		return fv.Nil, err
	}
	return fv.Ref(oid.Oid(v)), nil
}

func (t *WeakRefType) ScalarPut(acc Accessor, obj oid.Oid, bitOff int, val fv.FV) error {
	target, ok := val.Ref().(oid.Oid)
	if val.Kind() != fv.KindRef || !ok {
		return aerr.New(aerr.ValidationError, "weak_ref put requires a ref FV wrapping an oid.Oid")
	}
	old, err := acc.Fetch(obj, bitOff, t.Bits)
	if err != nil {
		return err
	}
	slot := weakSlot{owner: obj, bit: bitOff}
	t.mu.Lock()
	if oldTarget := oid.Oid(old); oldTarget.Valid() {
		delete(t.backrefs[oldTarget], slot)
	}
	if target.Valid() {
		if t.backrefs[target] == nil {
			t.backrefs[target] = make(map[weakSlot]struct{})
		}
		t.backrefs[target][slot] = struct{}{}
	}
	t.mu.Unlock()
	return acc.Store(obj, bitOff, t.Bits, uint64(target))
}

// Translocate rewrites every weak holder of oldObj to point at newObj,
// after the compactor has bitwise-copied the slot.
func (t *WeakRefType) Translocate(acc Accessor, oldObj, newObj oid.Oid, bitOff int) error {
	t.mu.Lock()
	holders := t.backrefs[oldObj]
	delete(t.backrefs, oldObj)
	t.backrefs[newObj] = holders
	t.mu.Unlock()

	for slot := range holders {
		if err := acc.Store(slot.owner, slot.bit, t.Bits, uint64(newObj)); err != nil {
			return err
		}
	}
	return nil
}

func (t *WeakRefType) Forwardize(acc Accessor, obj oid.Oid, bitOff int, fwd ForwardMap) error {
	v, err := acc.Fetch(obj, bitOff, t.Bits)
	if err != nil {
		return err
	}
	old := oid.Oid(v)
	if !old.Valid() {
		return nil
	}
	return acc.Store(obj, bitOff, t.Bits, uint64(fwd.Forward(old)))
}
