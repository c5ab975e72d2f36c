package typedesc

import (
	"github.com/sorear/compact/oid"
)

// fakeAccessor is a minimal in-memory typedesc.Accessor: each object is one
// 64-bit scratch word, addressed by bitOff/count like the real bit-addressed
// storage layer but without pages or a directory. Good enough to exercise a
// single descriptor's hooks in isolation, the way class/arena's own tests
// exercise the real storage stack end to end.
type fakeAccessor struct {
	mem      map[oid.Oid]uint64
	refs     map[oid.Oid]int
	next     oid.Oid
	unreffed []oid.Oid
}

func newFakeAccessor() *fakeAccessor {
	return &fakeAccessor{mem: map[oid.Oid]uint64{}, refs: map[oid.Oid]int{}}
}

func (a *fakeAccessor) alloc() oid.Oid {
	a.next++
	o := a.next
	a.mem[o] = 0
	a.refs[o] = 1
	return o
}

func mask64(count int) uint64 {
	if count >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(count)) - 1
}

func (a *fakeAccessor) Fetch(o oid.Oid, bitOff, count int) (uint64, error) {
	return (a.mem[o] >> uint(bitOff)) & mask64(count), nil
}

func (a *fakeAccessor) FetchSigned(o oid.Oid, bitOff, count int) (int64, error) {
	v := (a.mem[o] >> uint(bitOff)) & mask64(count)
	sign := uint64(1) << uint(count-1)
	if v&sign != 0 {
		v |= ^mask64(count)
	}
	return int64(v), nil
}

func (a *fakeAccessor) Store(o oid.Oid, bitOff, count int, val uint64) error {
	m := mask64(count) << uint(bitOff)
	a.mem[o] = (a.mem[o] &^ m) | ((val << uint(bitOff)) & m)
	return nil
}

func (a *fakeAccessor) Ref(o oid.Oid) error {
	a.refs[o]++
	return nil
}

func (a *fakeAccessor) Unref(o oid.Oid) error {
	a.refs[o]--
	if a.refs[o] == 0 {
		a.unreffed = append(a.unreffed, o)
		delete(a.mem, o)
	}
	return nil
}
