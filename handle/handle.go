// Package handle implements the embedding boundary's handle tables: a
// canonicalizing cache from an inner raw pointer to the external scalar an
// embedding host hands back to its caller.
//
// Each sort owns a private bucketed table of records chained on collision.
// A record carries a use count and an embedding-owned cookie released when
// the last handle drops; the chain holds no reference on the scalar, so
// canonicalization cannot keep a handle alive by itself.
package handle

import (
	"sync"

	"github.com/sorear/compact/aerr"
	"github.com/sorear/compact/fv"
)

// Ptr is the inner raw value a sort canonicalizes on.
type Ptr uintptr

// EqClass identifies a sort: a base kind plus whatever per-instance data
// makes a "specialization" of it distinct. Sorts with equal
// EqClass share one record layout and one hash table.
type EqClass uintptr

const (
	initialBuckets = 32
	initialShift   = 27 // 32 buckets = 2^5; shift picks the top 5 bits of a 32-bit hash
	hashMultiplier = 0x9E3779B9
)

type record struct {
	ptr      Ptr
	scalar   fv.FV
	cookie   interface{}
	destroy  func(interface{})
	refcount int
	next     *record
}

// Sort is one handle sort's private hash table: buckets of records chained
// on collision, keyed by Ptr.
type Sort struct {
	eqClass EqClass

	mu        sync.Mutex
	buckets   []*record
	shift     uint
	count     int
	autocroak bool
}

// NewSort creates an empty sort. autocroak controls whether Unhandle fails
// loudly (CorruptHandleChain) or silently when asked to release a scalar
// that carries no attached record.
func NewSort(eqClass EqClass, autocroak bool) *Sort {
	return &Sort{
		eqClass:   eqClass,
		buckets:   make([]*record, initialBuckets),
		shift:     initialShift,
		autocroak: autocroak,
	}
}

func hashPtr(p Ptr) uint32 {
	return uint32(uint64(p) * hashMultiplier)
}

func (s *Sort) bucketIndex(p Ptr) int {
	return int(hashPtr(p) >> s.shift)
}

// Count reports the number of distinct pointers currently canonicalized.
func (s *Sort) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Rehandle implements rehandle(sort, ptr): if ptr already has a live
// record, its refcount is bumped and the existing scalar (cloned) is
// returned; otherwise create is called to mint an embedding-owned cookie,
// which destroy releases when the record's refcount finally drops to
// zero. The scalar handed back to the caller always wraps the record
// itself, so Unhandle can recover it without a second table lookup.
func (s *Sort) Rehandle(ptr Ptr, create func() interface{}, destroy func(interface{})) fv.FV {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.bucketIndex(ptr)
	for r := s.buckets[idx]; r != nil; r = r.next {
		if r.ptr == ptr {
			r.refcount++
			return r.scalar.Clone()
		}
	}

	rec := &record{ptr: ptr, cookie: create(), destroy: destroy, refcount: 1, next: s.buckets[idx]}
	rec.scalar = fv.Ref(rec)
	s.buckets[idx] = rec
	s.count++
	return rec.scalar.Clone()
}

// Unhandle implements unhandle(sort, scalar): find the record the scalar
// was minted with, drop one reference, and tear it down (unlinking from
// the chain and running destroy) if that was the last one.
func (s *Sort) Unhandle(scalar fv.FV) (Ptr, interface{}, error) {
	rec, ok := scalar.Ref().(*record)
	if !ok {
		if s.autocroak {
			return 0, nil, aerr.New(aerr.CorruptHandleChain, "unhandle: scalar carries no attached record")
		}
		return 0, nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.refcount <= 0 {
		return 0, nil, aerr.New(aerr.CorruptHandleChain, "unhandle: record for ptr %#x already released", uintptr(rec.ptr))
	}

	rec.refcount--
	ptr, cookie := rec.ptr, rec.cookie
	if rec.refcount == 0 {
		if !s.removeLocked(rec) {
			return 0, nil, aerr.New(aerr.CorruptHandleChain, "unhandle: record for ptr %#x missing from its bucket", uintptr(rec.ptr))
		}
		if rec.destroy != nil {
			rec.destroy(rec.cookie)
		}
	}
	return ptr, cookie, nil
}

func (s *Sort) removeLocked(target *record) bool {
	idx := s.bucketIndex(target.ptr)
	prev := (*record)(nil)
	for r := s.buckets[idx]; r != nil; r = r.next {
		if r == target {
			if prev == nil {
				s.buckets[idx] = r.next
			} else {
				prev.next = r.next
			}
			s.count--
			return true
		}
		prev = r
	}
	return false
}

// Table owns one Sort per eq_class, lazily created, so specializations of
// a base sort share record layout while owning private hash tables.
type Table struct {
	mu    sync.Mutex
	sorts map[EqClass]*Sort
}

func NewTable() *Table {
	return &Table{sorts: make(map[EqClass]*Sort)}
}

// Sort returns the (possibly freshly created) sort for eqClass.
func (t *Table) Sort(eqClass EqClass, autocroak bool) *Sort {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sorts[eqClass]
	if !ok {
		s = NewSort(eqClass, autocroak)
		t.sorts[eqClass] = s
	}
	return s
}
