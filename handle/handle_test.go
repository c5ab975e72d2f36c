package handle

import (
	"testing"

	"github.com/sorear/compact/fv"
)

func TestRehandleCanonicalizesByPtr(t *testing.T) {
	s := NewSort(1, true)

	var created int
	create := func() interface{} {
		created++
		return "payload"
	}
	destroy := func(interface{}) {}

	a := s.Rehandle(42, create, destroy)
	b := s.Rehandle(42, create, destroy)

	if created != 1 {
		t.Fatalf("create ran %d times, want 1 (second Rehandle should find the existing record)", created)
	}
	if !a.Equal(b) {
		t.Fatalf("Rehandle(42) twice returned different scalars")
	}
	if s.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", s.Count())
	}
}

func TestUnhandleReleasesOnLastRef(t *testing.T) {
	s := NewSort(1, true)

	destroyed := false
	create := func() interface{} { return "payload" }
	destroy := func(interface{}) { destroyed = true }

	a := s.Rehandle(7, create, destroy)
	b := s.Rehandle(7, create, destroy)

	if _, _, err := s.Unhandle(a); err != nil {
		t.Fatalf("first Unhandle: %v", err)
	}
	if destroyed {
		t.Fatalf("destroy ran after only one of two refs was released")
	}
	if s.Count() != 1 {
		t.Fatalf("Count() = %d, want 1 after first Unhandle", s.Count())
	}

	ptr, cookie, err := s.Unhandle(b)
	if err != nil {
		t.Fatalf("second Unhandle: %v", err)
	}
	if !destroyed {
		t.Fatalf("destroy did not run after the last ref was released")
	}
	if ptr != 7 {
		t.Fatalf("Unhandle returned ptr %v, want 7", ptr)
	}
	if cookie != "payload" {
		t.Fatalf("Unhandle returned cookie %v, want %q", cookie, "payload")
	}
	if s.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 after last Unhandle", s.Count())
	}
}

func TestUnhandleUnknownScalarCroaks(t *testing.T) {
	s := NewSort(1, true)
	if _, _, err := s.Unhandle(fv.Int(5)); err == nil {
		t.Fatalf("Unhandle of a scalar with no attached record should fail when autocroak is set")
	}
}

func TestUnhandleUnknownScalarSilentWithoutAutocroak(t *testing.T) {
	s := NewSort(1, false)
	ptr, cookie, err := s.Unhandle(fv.Int(5))
	if err != nil {
		t.Fatalf("Unhandle should not fail when autocroak is unset: %v", err)
	}
	if ptr != 0 || cookie != nil {
		t.Fatalf("Unhandle(unknown) = (%v,%v), want (0,nil)", ptr, cookie)
	}
}

func TestTableGivesEachEqClassAPrivateSort(t *testing.T) {
	tbl := NewTable()
	s1 := tbl.Sort(1, true)
	s2 := tbl.Sort(2, true)
	if s1 == s2 {
		t.Fatalf("distinct eq_class tokens should get distinct sorts")
	}
	if tbl.Sort(1, true) != s1 {
		t.Fatalf("Sort(1) should return the same instance on a second call")
	}

	create := func() interface{} { return nil }
	s1.Rehandle(1, create, func(interface{}) {})
	if s2.Count() != 0 {
		t.Fatalf("sort for eq_class 2 should be unaffected by inserts into eq_class 1's sort")
	}
}
