package typedesc

import (
	"testing"

	"github.com/sorear/compact/fv"
)

func TestHostStringTypeRoundTrip(t *testing.T) {
	acc := newFakeAccessor()
	obj := acc.alloc()

	st := NewHostStringType()
	if err := st.ScalarPut(acc, obj, 0, fv.String("hello")); err != nil {
		t.Fatalf("ScalarPut: %v", err)
	}
	got, err := st.ScalarGet(acc, obj, 0)
	if err != nil {
		t.Fatalf("ScalarGet: %v", err)
	}
	if got.String() != "hello" {
		t.Fatalf("got %q, want %q", got.String(), "hello")
	}
}

func TestHostStringTypeRejectsWrongKind(t *testing.T) {
	acc := newFakeAccessor()
	obj := acc.alloc()
	st := NewHostStringType()
	if err := st.ScalarPut(acc, obj, 0, fv.Int(5)); err == nil {
		t.Fatalf("ScalarPut accepted an int FV on a host_string field")
	}
}

func TestHostScalarReplacesOldValue(t *testing.T) {
	acc := newFakeAccessor()
	obj := acc.alloc()
	iv := NewHostIntType()

	if err := iv.ScalarPut(acc, obj, 0, fv.Int(1)); err != nil {
		t.Fatalf("first put: %v", err)
	}
	first := iv.table.values[1]
	if first.RefCount() == 0 {
		t.Fatalf("first value should still be alive immediately after put")
	}

	if err := iv.ScalarPut(acc, obj, 0, fv.Int(2)); err != nil {
		t.Fatalf("second put: %v", err)
	}
	got, err := iv.ScalarGet(acc, obj, 0)
	if err != nil {
		t.Fatalf("ScalarGet: %v", err)
	}
	if got.Int() != 2 {
		t.Fatalf("got %d, want 2", got.Int())
	}
}

func TestHostWeakRefDoesNotKeepExtraReference(t *testing.T) {
	acc := newFakeAccessor()
	obj := acc.alloc()
	wr := NewHostWeakRefType()

	cookie := fv.Ref("cookie")
	if err := wr.ScalarPut(acc, obj, 0, cookie); err != nil {
		t.Fatalf("ScalarPut: %v", err)
	}
	// hostScalar.ScalarPut clones val into the table, then
	// HostWeakRefType.ScalarPut drops that clone again; only cookie's
	// original reference (from fv.Ref's constructor) should remain.
	if cookie.RefCount() != 1 {
		t.Fatalf("cookie refcount = %d, want 1", cookie.RefCount())
	}
}

func TestHostScalarDestroyReleasesTableSlot(t *testing.T) {
	acc := newFakeAccessor()
	obj := acc.alloc()
	nv := NewHostNumberType()

	if err := nv.ScalarPut(acc, obj, 0, fv.Float(3.5)); err != nil {
		t.Fatalf("ScalarPut: %v", err)
	}
	if err := nv.Destroy(acc, obj, 0); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	got, err := nv.ScalarGet(acc, obj, 0)
	if err != nil {
		t.Fatalf("ScalarGet after destroy: %v", err)
	}
	if got.Kind() != fv.KindNil {
		t.Fatalf("ScalarGet after destroy = %v, want nil", got.Kind())
	}
}
