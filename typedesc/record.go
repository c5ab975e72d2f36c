package typedesc

import (
	"fmt"
	"io"

	"github.com/sorear/compact/aerr"
	"github.com/sorear/compact/fv"
	"github.com/sorear/compact/oid"
)

// Field is one named member of a RecordType.
type Field struct {
	Name string
	Type Type
}

// RecordType packs its fields at consecutive bit offsets, field order,
// with no inter-field padding.
type RecordType struct {
	fields []Field
	offset []int
	size   int
	flags  Flag
}

func NewRecordType(fields []Field) *RecordType {
	r := &RecordType{fields: fields, offset: make([]int, len(fields))}
	off := 0
	for i, f := range fields {
		r.offset[i] = off
		off += f.Type.InlineSize()
		r.flags |= f.Type.Flags()
	}
	r.size = off
	return r
}

func (t *RecordType) InlineSize() int { return t.size }
func (t *RecordType) Flags() Flag     { return t.flags }

func (t *RecordType) Deparse(w io.Writer) {
	fmt.Fprint(w, "record{")
	for i, f := range t.fields {
		if i > 0 {
			fmt.Fprint(w, ", ")
		}
		fmt.Fprintf(w, "%s: ", f.Name)
		f.Type.Deparse(w)
	}
	fmt.Fprint(w, "}")
}

func (t *RecordType) indexOf(name string) int {
	for i, f := range t.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (t *RecordType) Subobject(acc Accessor, obj oid.Oid, bitOff int, name string) (oid.Oid, int, Type, error) {
	i := t.indexOf(name)
	if i < 0 {
		return oid.Null, 0, nil, aerr.New(aerr.NoSuchChild, "record has no field %q", name)
	}
	return obj, bitOff + t.offset[i], t.fields[i].Type, nil
}

func (t *RecordType) SubobjectExists(acc Accessor, obj oid.Oid, bitOff int, name string) bool {
	return t.indexOf(name) >= 0
}

func (t *RecordType) ScalarGet(Accessor, oid.Oid, int) (fv.FV, error) {
	return fv.Nil, aerr.New(aerr.UnsupportedOperation, "record has no scalar representation; use do_subobject")
}

func (t *RecordType) ScalarPut(Accessor, oid.Oid, int, fv.FV) error {
	return aerr.New(aerr.UnsupportedOperation, "record has no scalar representation; use do_subobject")
}

func (t *RecordType) Initialize(acc Accessor, obj oid.Oid, bitOff int) error {
	for i, f := range t.fields {
		if f.Type.Flags().Has(FlagInitialize) {
			if err := f.Type.(Initializer).Initialize(acc, obj, bitOff+t.offset[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *RecordType) Destroy(acc Accessor, obj oid.Oid, bitOff int) error {
	for i, f := range t.fields {
		if f.Type.Flags().Has(FlagDestroy) {
			if err := f.Type.(Destroyer).Destroy(acc, obj, bitOff+t.offset[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *RecordType) Translocate(acc Accessor, oldObj, newObj oid.Oid, bitOff int) error {
	for i, f := range t.fields {
		if f.Type.Flags().Has(FlagTranslocate) {
			if err := f.Type.(Translocator).Translocate(acc, oldObj, newObj, bitOff+t.offset[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *RecordType) Mark(acc Accessor, obj oid.Oid, bitOff int) error {
	for i, f := range t.fields {
		if f.Type.Flags().Has(FlagMark) {
			if err := f.Type.(Marker).Mark(acc, obj, bitOff+t.offset[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *RecordType) Forwardize(acc Accessor, obj oid.Oid, bitOff int, fwd ForwardMap) error {
	for i, f := range t.fields {
		if f.Type.Flags().Has(FlagForwardize) {
			if err := f.Type.(Forwardizer).Forwardize(acc, obj, bitOff+t.offset[i], fwd); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *RecordType) Postcompact(acc Accessor, obj oid.Oid) error {
	for _, f := range t.fields {
		if f.Type.Flags().Has(FlagPostcompact) {
			if err := f.Type.(Postcompactor).Postcompact(acc, obj); err != nil {
				return err
			}
		}
	}
	return nil
}
