package typedesc

import (
	"testing"

	"github.com/sorear/compact/fv"
	"github.com/sorear/compact/oid"
)

func TestRefTypePutRefsTargetAndUnrefsOld(t *testing.T) {
	acc := newFakeAccessor()
	holder := acc.alloc()
	target1 := acc.alloc()
	target2 := acc.alloc()

	rt := NewRefType(32)

	if err := rt.ScalarPut(acc, holder, 0, fv.Ref(target1)); err != nil {
		t.Fatalf("ScalarPut(target1): %v", err)
	}
	if acc.refs[target1] != 2 {
		t.Fatalf("target1 refcount = %d, want 2 (alloc + put)", acc.refs[target1])
	}

	if err := rt.ScalarPut(acc, holder, 0, fv.Ref(target2)); err != nil {
		t.Fatalf("ScalarPut(target2): %v", err)
	}
	if acc.refs[target1] != 1 {
		t.Fatalf("target1 refcount after replacement = %d, want 1", acc.refs[target1])
	}
	if acc.refs[target2] != 2 {
		t.Fatalf("target2 refcount = %d, want 2", acc.refs[target2])
	}

	got, err := rt.ScalarGet(acc, holder, 0)
	if err != nil {
		t.Fatalf("ScalarGet: %v", err)
	}
	if got.Ref().(oid.Oid) != target2 {
		t.Fatalf("ScalarGet = %v, want %v", got.Ref(), target2)
	}
}

func TestRefTypeDestroyUnrefsTarget(t *testing.T) {
	acc := newFakeAccessor()
	holder := acc.alloc()
	target := acc.alloc()

	rt := NewRefType(32)
	if err := rt.ScalarPut(acc, holder, 0, fv.Ref(target)); err != nil {
		t.Fatalf("ScalarPut: %v", err)
	}

	if err := rt.Destroy(acc, holder, 0); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if acc.refs[target] != 1 {
		t.Fatalf("target refcount after holder destroyed = %d, want 1", acc.refs[target])
	}
}

func TestRefTypeRejectsNonRefFV(t *testing.T) {
	acc := newFakeAccessor()
	holder := acc.alloc()
	rt := NewRefType(32)
	if err := rt.ScalarPut(acc, holder, 0, fv.Int(5)); err == nil {
		t.Fatalf("ScalarPut accepted a non-ref FV")
	}
}

func TestWeakRefTranslocateRewritesHolders(t *testing.T) {
	acc := newFakeAccessor()
	holderA := acc.alloc()
	holderB := acc.alloc()
	oldTarget := acc.alloc()
	newTarget := acc.alloc()

	wt := NewWeakRefType(32)
	if err := wt.ScalarPut(acc, holderA, 0, fv.Ref(oldTarget)); err != nil {
		t.Fatalf("ScalarPut(A): %v", err)
	}
	if err := wt.ScalarPut(acc, holderB, 0, fv.Ref(oldTarget)); err != nil {
		t.Fatalf("ScalarPut(B): %v", err)
	}
	// weak references hold no refcount of their own
	if acc.refs[oldTarget] != 1 {
		t.Fatalf("oldTarget refcount = %d, want 1 (alloc only)", acc.refs[oldTarget])
	}

	if err := wt.Translocate(acc, oldTarget, newTarget, 0); err != nil {
		t.Fatalf("Translocate: %v", err)
	}

	for _, h := range []oid.Oid{holderA, holderB} {
		got, err := wt.ScalarGet(acc, h, 0)
		if err != nil {
			t.Fatalf("ScalarGet(%v): %v", h, err)
		}
		if got.Ref().(oid.Oid) != newTarget {
			t.Fatalf("holder %v still points at %v, want %v", h, got.Ref(), newTarget)
		}
	}
}
