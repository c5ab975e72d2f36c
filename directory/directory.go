// Package directory implements the arena-wide mapping from the high bits
// of an Oid to a (class, local-object-index) pair.
//
// The table is a slice of entries plus a free list threaded through the
// unused entries themselves, entry 0 reserved as a sentinel, doubling
// growth instead of a fixed table.
package directory

import "github.com/sorear/compact/oid"

// ClassRef is an opaque reference to whatever owns a directory entry. The
// directory never dereferences it; only the caller that set it (class.Class)
// knows what to do with the value it gets back from Resolve.
type ClassRef interface{}

type entry struct {
	class ClassRef
	base  uint32 // base local index when owned; next free entry when not
}

// Directory is the arena-wide entry table. Shift is DIRENT_SHIFT: the
// number of low bits of an Oid that select a local index within whatever
// entry the high bits name.
type Directory struct {
	shift   uint
	entries []entry
	free    uint32
}

// New creates a directory that splits an Oid at the given shift, reserving
// 2^shift local indices per entry. New applies no default of its own; the
// arena passes its DirentShift knob (default 13).
func New(shift uint) *Directory {
	return &Directory{
		shift:   shift,
		entries: make([]entry, 1), // entry 0: reserved sentinel
	}
}

// Shift returns the configured DIRENT_SHIFT.
func (d *Directory) Shift() uint {
	return d.shift
}

// EntrySpan is 2^shift, the number of local indices one entry reserves.
func (d *Directory) EntrySpan() uint32 {
	return 1 << d.shift
}

// AllocEntry pops a free entry index, growing the directory by doubling
// when none remain. The returned entry is unowned (Bind must be called
// before it participates in Resolve).
func (d *Directory) AllocEntry() uint32 {
	if d.free == 0 {
		d.grow()
	}
	idx := d.free
	d.free = d.entries[idx].base
	d.entries[idx] = entry{}
	return idx
}

// grow doubles the entry table, threading every newly created slot onto
// the free list in descending index order (so AllocEntry hands out the
// lowest available index first).
func (d *Directory) grow() {
	oldLen := len(d.entries)
	newLen := oldLen * 2
	if newLen <= oldLen {
		newLen = oldLen + 1
	}
	grown := make([]entry, newLen)
	copy(grown, d.entries)
	for i := newLen - 1; i >= oldLen; i-- {
		grown[i].base = d.free
		d.free = uint32(i)
	}
	d.entries = grown
}

// Bind assigns an entry to a class, reserving EntrySpan() consecutive
// local indices starting at base.
func (d *Directory) Bind(idx uint32, cls ClassRef, base uint32) {
	d.entries[idx] = entry{class: cls, base: base}
}

// ReleaseEntry returns idx to the free list. The caller must ensure no
// live Oid still resolves through it.
func (d *Directory) ReleaseEntry(idx uint32) {
	d.entries[idx] = entry{base: d.free}
	d.free = idx
}

// Resolve splits o into (directory index, local bits), looks up the owning
// class, and returns the class's absolute local object index. The third
// return is false if o addresses an out-of-range or unbound entry.
func (d *Directory) Resolve(o oid.Oid) (ClassRef, uint32, bool) {
	idx := uint32(uint64(o) >> d.shift)
	local := uint32(o) & (d.EntrySpan() - 1)
	if int(idx) >= len(d.entries) {
		return nil, 0, false
	}
	e := d.entries[idx]
	if e.class == nil {
		return nil, 0, false
	}
	return e.class, e.base + local, true
}

// Make builds an Oid from a directory entry index and a local offset
// within that entry's span.
func (d *Directory) Make(entryIdx uint32, localInEntry uint32) oid.Oid {
	return oid.Oid(entryIdx)<<d.shift | oid.Oid(localInEntry)
}
