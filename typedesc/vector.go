package typedesc

import (
	"fmt"
	"io"
	"strconv"

	"github.com/sorear/compact/aerr"
	"github.com/sorear/compact/fv"
	"github.com/sorear/compact/oid"
)

// VectorType is a fixed-count homogeneous sequence, packed elem by elem
// with no padding, same packing rule as RecordType.
type VectorType struct {
	Count int
	Elem  Type
}

func NewVectorType(count int, elem Type) *VectorType {
	return &VectorType{Count: count, Elem: elem}
}

func (t *VectorType) InlineSize() int { return t.Count * t.Elem.InlineSize() }
func (t *VectorType) Flags() Flag     { return t.Elem.Flags() }

func (t *VectorType) Deparse(w io.Writer) {
	fmt.Fprintf(w, "vector(%d, ", t.Count)
	t.Elem.Deparse(w)
	fmt.Fprint(w, ")")
}

func (t *VectorType) elemOffset(i int) int { return i * t.Elem.InlineSize() }

func (t *VectorType) index(name string) (int, bool) {
	i, err := strconv.Atoi(name)
	if err != nil || i < 0 || i >= t.Count {
		return 0, false
	}
	return i, true
}

func (t *VectorType) Subobject(acc Accessor, obj oid.Oid, bitOff int, name string) (oid.Oid, int, Type, error) {
	i, ok := t.index(name)
	if !ok {
		return oid.Null, 0, nil, aerr.New(aerr.NoSuchChild, "vector index %q out of range [0,%d)", name, t.Count)
	}
	return obj, bitOff + t.elemOffset(i), t.Elem, nil
}

func (t *VectorType) SubobjectExists(acc Accessor, obj oid.Oid, bitOff int, name string) bool {
	_, ok := t.index(name)
	return ok
}

func (t *VectorType) ScalarGet(Accessor, oid.Oid, int) (fv.FV, error) {
	return fv.Nil, aerr.New(aerr.UnsupportedOperation, "vector has no scalar representation; use do_subobject")
}

func (t *VectorType) ScalarPut(Accessor, oid.Oid, int, fv.FV) error {
	return aerr.New(aerr.UnsupportedOperation, "vector has no scalar representation; use do_subobject")
}

func (t *VectorType) forEachElem(obj oid.Oid, bitOff int, f func(elemBitOff int) error) error {
	for i := 0; i < t.Count; i++ {
		if err := f(bitOff + t.elemOffset(i)); err != nil {
			return err
		}
	}
	return nil
}

func (t *VectorType) Initialize(acc Accessor, obj oid.Oid, bitOff int) error {
	if !t.Elem.Flags().Has(FlagInitialize) {
		return nil
	}
	init := t.Elem.(Initializer)
	return t.forEachElem(obj, bitOff, func(o int) error { return init.Initialize(acc, obj, o) })
}

func (t *VectorType) Destroy(acc Accessor, obj oid.Oid, bitOff int) error {
	if !t.Elem.Flags().Has(FlagDestroy) {
		return nil
	}
	destroy := t.Elem.(Destroyer)
	return t.forEachElem(obj, bitOff, func(o int) error { return destroy.Destroy(acc, obj, o) })
}

func (t *VectorType) Translocate(acc Accessor, oldObj, newObj oid.Oid, bitOff int) error {
	if !t.Elem.Flags().Has(FlagTranslocate) {
		return nil
	}
	tr := t.Elem.(Translocator)
	return t.forEachElem(oldObj, bitOff, func(o int) error { return tr.Translocate(acc, oldObj, newObj, o) })
}

func (t *VectorType) Mark(acc Accessor, obj oid.Oid, bitOff int) error {
	if !t.Elem.Flags().Has(FlagMark) {
		return nil
	}
	mark := t.Elem.(Marker)
	return t.forEachElem(obj, bitOff, func(o int) error { return mark.Mark(acc, obj, o) })
}

func (t *VectorType) Forwardize(acc Accessor, obj oid.Oid, bitOff int, fwd ForwardMap) error {
	if !t.Elem.Flags().Has(FlagForwardize) {
		return nil
	}
	fz := t.Elem.(Forwardizer)
	return t.forEachElem(obj, bitOff, func(o int) error { return fz.Forwardize(acc, obj, o, fwd) })
}

func (t *VectorType) Postcompact(acc Accessor, obj oid.Oid) error {
	if !t.Elem.Flags().Has(FlagPostcompact) {
		return nil
	}
	pc := t.Elem.(Postcompactor)
	return t.forEachElem(obj, 0, func(int) error { return pc.Postcompact(acc, obj) })
}
