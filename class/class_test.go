package class

import (
	"testing"

	"github.com/sorear/compact/aerr"
	"github.com/sorear/compact/directory"
	"github.com/sorear/compact/oid"
	"github.com/sorear/compact/pagepool"
	"github.com/sorear/compact/typedesc"
)

func newTestClass(t *testing.T, ty typedesc.Type, payloadBits int, lifetime Lifetime) *Class {
	t.Helper()
	pages := pagepool.New(64, 1)
	dir := directory.New(2) // small EntrySpan so refill paths get exercised
	return NewClass(ty, payloadBits, lifetime, nil, pages, dir, 32)
}

// Single-slot lifecycle (Manual): allocate, write, read back, destroy.
func TestManualLifecycle(t *testing.T) {
	c := newTestClass(t, typedesc.NewIntType(16, false), 16, Manual)

	o, err := c.NewObject(nil)
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	if err := c.Store(o, 0, 16, 0xBEEF); err != nil {
		t.Fatalf("Store: %v", err)
	}
	v, err := c.Fetch(o, 0, 16)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if v != 0xBEEF {
		t.Fatalf("Fetch = %#x, want 0xBEEF", v)
	}
	if c.UsedObjects() != 1 {
		t.Fatalf("UsedObjects() = %d, want 1", c.UsedObjects())
	}
	if err := c.Destroy(nil, o); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if c.UsedObjects() != 0 {
		t.Fatalf("UsedObjects() after Destroy = %d, want 0", c.UsedObjects())
	}
	if _, err := c.Fetch(o, 0, 16); err == nil {
		t.Fatalf("Fetch succeeded on a destroyed object")
	}
}

func TestFreedSlotIsReused(t *testing.T) {
	c := newTestClass(t, typedesc.NewIntType(8, false), 8, Manual)

	first, err := c.NewObject(nil)
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	if err := c.Destroy(nil, first); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	second, err := c.NewObject(nil)
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	if second != first {
		t.Fatalf("expected freed slot %v to be reused, got %v", first, second)
	}
}

func TestRefillGrowsAcrossDirectoryEntries(t *testing.T) {
	c := newTestClass(t, typedesc.NewIntType(8, false), 8, Manual)
	span := int(4) // directory.New(2) -> EntrySpan 4

	var oids []oid.Oid
	for i := 0; i < span*3+1; i++ {
		o, err := c.NewObject(nil)
		if err != nil {
			t.Fatalf("NewObject(%d): %v", i, err)
		}
		oids = append(oids, o)
	}
	if c.UsedObjects() != len(oids) {
		t.Fatalf("UsedObjects() = %d, want %d", c.UsedObjects(), len(oids))
	}
	for i, o := range oids {
		if err := c.Store(o, 0, 8, uint64(i%256)); err != nil {
			t.Fatalf("Store(%d): %v", i, err)
		}
	}
	for i, o := range oids {
		v, err := c.Fetch(o, 0, 8)
		if err != nil {
			t.Fatalf("Fetch(%d): %v", i, err)
		}
		if v != uint64(i%256) {
			t.Fatalf("object %d = %d, want %d", i, v, i%256)
		}
	}
}

// Refcounted8 saturation: ref past the 8-bit maximum must not wrap, and
// must never decrement again once saturated.
func TestRefcounted8Saturation(t *testing.T) {
	c := newTestClass(t, typedesc.NewIntType(8, false), 8, Refcounted8)

	o, err := c.NewObject(nil)
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	for i := 0; i < 260; i++ {
		if err := c.Ref(o); err != nil {
			t.Fatalf("Ref(%d): %v", i, err)
		}
	}
	// still alive: saturated, not freed
	if c.UsedObjects() != 1 {
		t.Fatalf("UsedObjects() = %d, want 1 (saturated object still alive)", c.UsedObjects())
	}
	for i := 0; i < 300; i++ {
		if err := c.Unref(nil, o); err != nil {
			t.Fatalf("Unref(%d): %v", i, err)
		}
	}
	// a saturated counter never decrements, so it must still be alive
	if c.UsedObjects() != 1 {
		t.Fatalf("UsedObjects() after unref storm = %d, want 1 (saturated counters never decrement)", c.UsedObjects())
	}
}

func TestRefcounted32DestroysAtZero(t *testing.T) {
	c := newTestClass(t, typedesc.NewIntType(8, false), 8, Refcounted32)

	o, err := c.NewObject(nil)
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	if err := c.Ref(o); err != nil {
		t.Fatalf("Ref: %v", err)
	}
	// refcount is now 2 (1 from alloc, 1 from Ref)
	if err := c.Unref(nil, o); err != nil {
		t.Fatalf("Unref: %v", err)
	}
	if c.UsedObjects() != 1 {
		t.Fatalf("UsedObjects() = %d, want 1 after one of two refs dropped", c.UsedObjects())
	}
	if err := c.Unref(nil, o); err != nil {
		t.Fatalf("Unref: %v", err)
	}
	if c.UsedObjects() != 0 {
		t.Fatalf("UsedObjects() = %d, want 0 after last ref dropped", c.UsedObjects())
	}
}

func TestHostManagedRejectsRefUnref(t *testing.T) {
	c := newTestClass(t, typedesc.NewIntType(8, false), 8, HostManaged)
	o, err := c.NewObject(nil)
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	if err := c.Ref(o); err == nil {
		t.Fatalf("Ref on a HostManaged class should fail")
	}
	if err := c.Unref(nil, o); err == nil {
		t.Fatalf("Unref on a HostManaged class should fail")
	}
}

func TestAccessOutsideSlotRejected(t *testing.T) {
	// payload=8 bits, but the 32-bit freelist pointer forces the slot's
	// actual stride up to 32 bits; an access must stay within the slot
	// (StrideBits), the bound this test actually exercises.
	c := newTestClass(t, typedesc.NewIntType(8, false), 8, Manual)
	if c.StrideBits != 32 {
		t.Fatalf("StrideBits = %d, want 32 (forced up by the 32-bit freelist pointer)", c.StrideBits)
	}
	o, err := c.NewObject(nil)
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	if _, err := c.Fetch(o, 24, 9); err == nil {
		t.Fatalf("Fetch straddling past the end of a 32-bit slot should fail")
	}
	if _, err := c.Fetch(o, 32, 1); err == nil {
		t.Fatalf("Fetch starting past the end of the slot should fail")
	}
	if _, err := c.Fetch(o, -1, 1); err == nil {
		t.Fatalf("Fetch with a negative absolute offset should fail")
	}
}

func TestCloseRefusesLiveObjects(t *testing.T) {
	c := newTestClass(t, typedesc.NewIntType(8, false), 8, Manual)
	if _, err := c.NewObject(nil); err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	if err := c.Close(); err == nil {
		t.Fatalf("Close should fail while an object is still live")
	}
}

func TestCloseSucceedsWhenEmpty(t *testing.T) {
	c := newTestClass(t, typedesc.NewIntType(8, false), 8, Manual)
	o, err := c.NewObject(nil)
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	if err := c.Destroy(nil, o); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestStrideFloors(t *testing.T) {
	pages := pagepool.New(64, 1)
	dir := directory.New(2)

	// zero-bit payload + 8-bit refcount header: with a pointer width that
	// doesn't force it higher, the stride lands exactly on the 8-bit floor
	c := NewClass(typedesc.NewIntType(8, false), 0, Refcounted8, nil, pages, dir, 8)
	if c.StrideBits != 8 {
		t.Fatalf("zero-payload Refcounted8 stride = %d, want 8", c.StrideBits)
	}

	// one-bit payload, no header: forced up to the freelist pointer width
	c = NewClass(typedesc.NewIntType(8, false), 1, HostManaged, nil, pages, dir, 32)
	if c.StrideBits != 32 {
		t.Fatalf("one-bit HostManaged stride = %d, want 32", c.StrideBits)
	}

	// wide payloads are unaffected by either floor
	c = NewClass(typedesc.NewIntType(8, false), 100, Refcounted32, nil, pages, dir, 32)
	if c.StrideBits != 132 {
		t.Fatalf("100-bit Refcounted32 stride = %d, want 132", c.StrideBits)
	}
}

// Objects wider than a page must still read and write correctly where
// their payload crosses page boundaries.
func TestObjectStraddlesPages(t *testing.T) {
	// 1200-bit objects on 512-bit (64-byte) test pages: every object
	// spans at least two pages.
	c := newTestClass(t, typedesc.NewIntType(32, false), 1200, Manual)

	a, err := c.NewObject(nil)
	if err != nil {
		t.Fatalf("NewObject(a): %v", err)
	}
	b, err := c.NewObject(nil)
	if err != nil {
		t.Fatalf("NewObject(b): %v", err)
	}

	// offset 300 within object b (slot start 1200) lands the 64-bit
	// field at absolute bits 1500..1564, across the page boundary at 1536
	if err := c.Store(b, 300, 64, 0xDEADBEEFCAFEF00D); err != nil {
		t.Fatalf("Store(b): %v", err)
	}
	if err := c.Store(a, 300, 64, 0x1111111111111111); err != nil {
		t.Fatalf("Store(a): %v", err)
	}
	v, err := c.Fetch(b, 300, 64)
	if err != nil {
		t.Fatalf("Fetch(b): %v", err)
	}
	if v != 0xDEADBEEFCAFEF00D {
		t.Fatalf("Fetch(b) = %#x, want 0xdeadbeefcafef00d", v)
	}
	v, err = c.Fetch(a, 300, 64)
	if err != nil {
		t.Fatalf("Fetch(a): %v", err)
	}
	if v != 0x1111111111111111 {
		t.Fatalf("Fetch(a) = %#x, want 0x1111111111111111 (clobbered by neighbor?)", v)
	}
}

func TestAccessWiderThanWordRejected(t *testing.T) {
	c := newTestClass(t, typedesc.NewIntType(32, false), 128, Manual)
	o, err := c.NewObject(nil)
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	_, err = c.Fetch(o, 0, 65)
	if !aerr.HasKind(err, aerr.SizeOverflow) {
		t.Fatalf("Fetch(65 bits) err = %v, want SizeOverflow", err)
	}
	err = c.Store(o, 0, 65, 0)
	if !aerr.HasKind(err, aerr.SizeOverflow) {
		t.Fatalf("Store(65 bits) err = %v, want SizeOverflow", err)
	}
}

func TestStrictRefOverflow(t *testing.T) {
	c := newTestClass(t, typedesc.NewIntType(8, false), 8, Refcounted8)
	c.StrictRefOverflow = true

	o, err := c.NewObject(nil)
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	for i := 0; i < 254; i++ {
		if err := c.Ref(o); err != nil {
			t.Fatalf("Ref(%d): %v", i, err)
		}
	}
	// counter is now at 255; one more must report overflow instead of
	// silently saturating
	err = c.Ref(o)
	if !aerr.HasKind(err, aerr.RefcountOverflow) {
		t.Fatalf("Ref at max err = %v, want RefcountOverflow", err)
	}
}

// Ref then Unref must leave every observable bit of the object unchanged,
// payload included.
func TestRefUnrefPreservesPayload(t *testing.T) {
	c := newTestClass(t, typedesc.NewIntType(32, false), 32, Refcounted32)
	o, err := c.NewObject(nil)
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	if err := c.Store(o, 0, 32, 0xCAFEBABE); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := c.Ref(o); err != nil {
		t.Fatalf("Ref: %v", err)
	}
	if err := c.Unref(nil, o); err != nil {
		t.Fatalf("Unref: %v", err)
	}
	v, err := c.Fetch(o, 0, 32)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if v != 0xCAFEBABE {
		t.Fatalf("payload after ref/unref = %#x, want 0xcafebabe", v)
	}
	if c.UsedObjects() != 1 {
		t.Fatalf("UsedObjects() = %d, want 1", c.UsedObjects())
	}
}

// free + used must always equal total, across allocation, destruction and
// refill growth.
func TestObjectAccountingInvariant(t *testing.T) {
	c := newTestClass(t, typedesc.NewIntType(8, false), 8, Manual)

	check := func(when string) {
		if c.FreeObjects()+c.UsedObjects() != c.TotalObjects() {
			t.Fatalf("%s: free(%d) + used(%d) != total(%d)", when, c.FreeObjects(), c.UsedObjects(), c.TotalObjects())
		}
	}

	check("empty")
	var oids []oid.Oid
	for i := 0; i < 9; i++ {
		o, err := c.NewObject(nil)
		if err != nil {
			t.Fatalf("NewObject(%d): %v", i, err)
		}
		oids = append(oids, o)
		check("after alloc")
	}
	for _, o := range oids[:5] {
		if err := c.Destroy(nil, o); err != nil {
			t.Fatalf("Destroy: %v", err)
		}
		check("after destroy")
	}
}
