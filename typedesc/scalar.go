package typedesc

import (
	"fmt"
	"io"
	"math"

	"github.com/sorear/compact/aerr"
	"github.com/sorear/compact/fv"
	"github.com/sorear/compact/oid"
)

// IntType is a signed or unsigned integer of arbitrary bit width up to 64.
type IntType struct {
	base
	Bits   int
	Signed bool
}

func NewIntType(bits int, signed bool) *IntType { return &IntType{Bits: bits, Signed: signed} }

func (t *IntType) InlineSize() int { return t.Bits }

func (t *IntType) Deparse(w io.Writer) {
	kind := "uint"
	if t.Signed {
		kind = "int"
	}
	fmt.Fprintf(w, "%s(%d)", kind, t.Bits)
}

func (t *IntType) ScalarGet(acc Accessor, obj oid.Oid, bitOff int) (fv.FV, error) {
	if t.Signed {
		v, err := acc.FetchSigned(obj, bitOff, t.Bits)
		if err != nil {
			return fv.Nil, err
		}
		return fv.Int(v), nil
	}
	v, err := acc.Fetch(obj, bitOff, t.Bits)
	if err != nil {
		return fv.Nil, err
	}
	return fv.Int(int64(v)), nil
}

func (t *IntType) ScalarPut(acc Accessor, obj oid.Oid, bitOff int, val fv.FV) error {
	if val.Kind() != fv.KindInt {
		return aerr.New(aerr.ValidationError, "int(%d) put requires an int FV, got %s", t.Bits, val.Kind())
	}
	v := val.Int()
	if t.Bits < 64 {
		if t.Signed {
			lo, hi := signedRange(t.Bits)
			if v < lo || v > hi {
				return aerr.New(aerr.ValidationError, "value %d out of range for int(%d)", v, t.Bits)
			}
		} else {
			if v < 0 || uint64(v) >= uint64(1)<<uint(t.Bits) {
				return aerr.New(aerr.ValidationError, "value %d out of range for uint(%d)", v, t.Bits)
			}
		}
	}
	return acc.Store(obj, bitOff, t.Bits, uint64(v))
}

func signedRange(bits int) (int64, int64) {
	hi := int64(1)<<uint(bits-1) - 1
	lo := -hi - 1
	return lo, hi
}

// FloatType is an IEEE-754-shaped float with exp and sig (significand)
// bit widths; the only concretely supported widths are exp=11,sig=52
// (float64) and exp=8,sig=23 (float32), matching what Go's math package
// can convert without a software bignum library.
type FloatType struct {
	base
	Exp int
	Sig int
}

func NewFloatType(exp, sig int) *FloatType { return &FloatType{Exp: exp, Sig: sig} }

func (t *FloatType) InlineSize() int { return 1 + t.Exp + t.Sig }

func (t *FloatType) Deparse(w io.Writer) {
	fmt.Fprintf(w, "float(exp=%d,sig=%d)", t.Exp, t.Sig)
}

func (t *FloatType) ScalarGet(acc Accessor, obj oid.Oid, bitOff int) (fv.FV, error) {
	bits, err := acc.Fetch(obj, bitOff, t.InlineSize())
	if err != nil {
		return fv.Nil, err
	}
	if t.InlineSize() == 64 {
		return fv.Float(math.Float64frombits(bits)), nil
	}
	if t.InlineSize() == 32 {
		return fv.Float(float64(math.Float32frombits(uint32(bits)))), nil
	}
	return fv.Nil, aerr.New(aerr.UnsupportedOperation, "float(exp=%d,sig=%d) has no native Go representation", t.Exp, t.Sig)
}

func (t *FloatType) ScalarPut(acc Accessor, obj oid.Oid, bitOff int, val fv.FV) error {
	if val.Kind() != fv.KindFloat {
		return aerr.New(aerr.ValidationError, "float put requires a float FV, got %s", val.Kind())
	}
	switch t.InlineSize() {
	case 64:
		return acc.Store(obj, bitOff, 64, math.Float64bits(val.Float()))
	case 32:
		return acc.Store(obj, bitOff, 32, uint64(math.Float32bits(float32(val.Float()))))
	default:
		return aerr.New(aerr.UnsupportedOperation, "float(exp=%d,sig=%d) has no native Go representation", t.Exp, t.Sig)
	}
}

// NativeCharType is an 8-bit character tagged with the host's encoding
// name (e.g. "latin1"); the arena stores the raw byte and leaves encode/
// decode to the embedding.
type NativeCharType struct {
	base
	Encoding string
}

func NewNativeCharType(encoding string) *NativeCharType { return &NativeCharType{Encoding: encoding} }

func (t *NativeCharType) InlineSize() int { return 8 }
func (t *NativeCharType) Deparse(w io.Writer) {
	fmt.Fprintf(w, "native_char(%s)", t.Encoding)
}
func (t *NativeCharType) ScalarGet(acc Accessor, obj oid.Oid, bitOff int) (fv.FV, error) {
	v, err := acc.Fetch(obj, bitOff, 8)
	if err != nil {
		return fv.Nil, err
	}
	return fv.Int(int64(v)), nil
}
func (t *NativeCharType) ScalarPut(acc Accessor, obj oid.Oid, bitOff int, val fv.FV) error {
	if val.Kind() != fv.KindInt || val.Int() < 0 || val.Int() > 0xFF {
		return aerr.New(aerr.ValidationError, "native_char put requires an int FV in [0,255]")
	}
	return acc.Store(obj, bitOff, 8, uint64(val.Int()))
}

// Ucs2CharType and Ucs4CharType are fixed-width Unicode code points.
type Ucs2CharType struct{ base }
type Ucs4CharType struct{ base }

func NewUcs2CharType() *Ucs2CharType { return &Ucs2CharType{} }
func NewUcs4CharType() *Ucs4CharType { return &Ucs4CharType{} }

func (t *Ucs2CharType) InlineSize() int        { return 16 }
func (t *Ucs2CharType) Deparse(w io.Writer)    { fmt.Fprint(w, "ucs2_char") }
func (t *Ucs2CharType) ScalarGet(acc Accessor, obj oid.Oid, bitOff int) (fv.FV, error) {
	return fetchUcsChar(acc, obj, bitOff, 16, 0xFFFF)
}
func (t *Ucs2CharType) ScalarPut(acc Accessor, obj oid.Oid, bitOff int, val fv.FV) error {
	return putUcsChar(acc, obj, bitOff, 16, 0xFFFF, val)
}

func (t *Ucs4CharType) InlineSize() int     { return 32 }
func (t *Ucs4CharType) Deparse(w io.Writer) { fmt.Fprint(w, "ucs4_char") }
func (t *Ucs4CharType) ScalarGet(acc Accessor, obj oid.Oid, bitOff int) (fv.FV, error) {
	return fetchUcsChar(acc, obj, bitOff, 32, 0x10FFFF)
}
func (t *Ucs4CharType) ScalarPut(acc Accessor, obj oid.Oid, bitOff int, val fv.FV) error {
	return putUcsChar(acc, obj, bitOff, 32, 0x10FFFF, val)
}

func fetchUcsChar(acc Accessor, obj oid.Oid, bitOff, bits int, max int64) (fv.FV, error) {
	v, err := acc.Fetch(obj, bitOff, bits)
	if err != nil {
		return fv.Nil, err
	}
	return fv.Int(int64(v)), nil
}

func putUcsChar(acc Accessor, obj oid.Oid, bitOff, bits int, max int64, val fv.FV) error {
	if val.Kind() != fv.KindInt || val.Int() < 0 || val.Int() > max {
		return aerr.New(aerr.ValidationError, "char put requires an int FV in [0,%d]", max)
	}
	return acc.Store(obj, bitOff, bits, uint64(val.Int()))
}

// VoidType stores nothing; it exists for record/vector fields that carry
// no payload (e.g. a unit placeholder) and always round-trips to itself.
type VoidType struct{ base }

func NewVoidType() *VoidType { return &VoidType{} }

func (t *VoidType) InlineSize() int     { return 0 }
func (t *VoidType) Deparse(w io.Writer) { fmt.Fprint(w, "void") }
func (t *VoidType) ScalarGet(Accessor, oid.Oid, int) (fv.FV, error) { return fv.Nil, nil }
func (t *VoidType) ScalarPut(Accessor, oid.Oid, int, fv.FV) error   { return nil }
