// Package class implements per-shape object pools: fixed-stride,
// page-backed slots sharing one type descriptor and one lifetime policy,
// plus the free list and refcount discipline that governs when a slot
// returns to the pool.
package class

import (
	"github.com/sorear/compact/aerr"
	"github.com/sorear/compact/bitaddr"
	"github.com/sorear/compact/directory"
	"github.com/sorear/compact/oid"
	"github.com/sorear/compact/pagepool"
	"github.com/sorear/compact/typedesc"
)

// Lifetime is the policy governing when an object's slot returns to the
// free list.
type Lifetime int

const (
	HostManaged Lifetime = iota
	Manual
	Collected
	Refcounted32
	Refcounted8
)

func (l Lifetime) String() string {
	switch l {
	case HostManaged:
		return "HostManaged"
	case Manual:
		return "Manual"
	case Collected:
		return "Collected"
	case Refcounted32:
		return "Refcounted32"
	case Refcounted8:
		return "Refcounted8"
	default:
		return "Lifetime(?)"
	}
}

func (l Lifetime) overheadBits() int {
	switch l {
	case Refcounted32:
		return 32
	case Refcounted8:
		return 8
	default:
		return 0
	}
}

func (l Lifetime) overheadMax() uint64 {
	switch l {
	case Refcounted32:
		return 1<<32 - 1
	case Refcounted8:
		return 255
	default:
		return 0
	}
}

// MinStrideBits is the 8-bit floor every slot's stride obeys; without it a
// zero-width payload would pack unboundedly many objects into one page.
const MinStrideBits = 8

// DefaultPointerBits is the freelist pointer width used when a caller
// doesn't override it. 32 bits bounds a single arena to 2^32 identifiers
// and floors the slot stride so a vacant slot can always hold a next
// pointer.
const DefaultPointerBits = 32

// Class is one pool of same-shaped, same-lifetime objects: an ordered
// sequence of data pages, a free list of vacant slots threaded through the
// slots themselves, and the directory entries that make its objects
// addressable by Oid.
type Class struct {
	Type     typedesc.Type
	Lifetime Lifetime

	PayloadBits  int
	OverheadBits int
	StrideBits   int
	pointerBits  int

	HostMeta interface{}

	// StrictRefOverflow makes Ref fail with RefcountOverflow instead of
	// silently saturating when the counter is already at its maximum.
	StrictRefOverflow bool

	pages *pagepool.Pool
	dir   *directory.Directory

	dataPages  bitaddr.Pages
	dirEntries []uint32

	totalObjects uint32
	usedObjects  uint32
	freelistHead oid.Oid
}

// NewClass implements new_class(type, payload_bits, lifetime, host_meta).
// pointerBits, if 0, defaults to DefaultPointerBits.
func NewClass(ty typedesc.Type, payloadBits int, lifetime Lifetime, hostMeta interface{}, pages *pagepool.Pool, dir *directory.Directory, pointerBits int) *Class {
	if pointerBits <= 0 {
		pointerBits = DefaultPointerBits
	}
	overhead := lifetime.overheadBits()
	stride := payloadBits + overhead
	if pointerBits > stride {
		stride = pointerBits
	}
	if MinStrideBits > stride {
		stride = MinStrideBits
	}
	return &Class{
		Type:         ty,
		Lifetime:     lifetime,
		PayloadBits:  payloadBits,
		OverheadBits: overhead,
		StrideBits:   stride,
		pointerBits:  pointerBits,
		HostMeta:     hostMeta,
		pages:        pages,
		dir:          dir,
		freelistHead: oid.Null,
	}
}

func (c *Class) UsedObjects() int  { return int(c.usedObjects) }
func (c *Class) TotalObjects() int { return int(c.totalObjects) }
func (c *Class) FreeObjects() int  { return int(c.totalObjects) - int(c.usedObjects) }

// resolveLocal confirms o is one of this class's objects and returns its
// local slot index.
func (c *Class) resolveLocal(o oid.Oid) (uint32, bool) {
	clsRef, local, ok := c.dir.Resolve(o)
	if !ok {
		return 0, false
	}
	other, isClass := clsRef.(*Class)
	if !isClass || other != c {
		return 0, false
	}
	return local, true
}

// checkAccess bounds a bit access: the width must fit a machine word, and
// the span must stay inside the object's slot (bitOff is relative to
// payload start; negative reaches into the overhead prefix).
func (c *Class) checkAccess(bitOff, count int) (int, error) {
	if count < 0 || count > bitaddr.MaxBits {
		return 0, aerr.New(aerr.SizeOverflow, "bit access width %d exceeds the %d-bit word size", count, bitaddr.MaxBits)
	}
	absOff := c.OverheadBits + bitOff
	if absOff < 0 || absOff+count > c.StrideBits {
		return 0, aerr.New(aerr.ValidationError, "bit access [%d,%d) strays outside a %d-bit slot", absOff, absOff+count, c.StrideBits)
	}
	return absOff, nil
}

func (c *Class) fetchLocal(local uint32, bitOff, count int) (uint64, error) {
	absOff, err := c.checkAccess(bitOff, count)
	if err != nil {
		return 0, err
	}
	abs := int(local)*c.StrideBits + absOff
	return bitaddr.Fetch(c.dataPages, c.pageBits(), abs, count), nil
}

func (c *Class) fetchLocalSigned(local uint32, bitOff, count int) (int64, error) {
	absOff, err := c.checkAccess(bitOff, count)
	if err != nil {
		return 0, err
	}
	abs := int(local)*c.StrideBits + absOff
	return bitaddr.FetchSigned(c.dataPages, c.pageBits(), abs, count), nil
}

func (c *Class) storeLocal(local uint32, bitOff, count int, val uint64) error {
	absOff, err := c.checkAccess(bitOff, count)
	if err != nil {
		return err
	}
	abs := int(local)*c.StrideBits + absOff
	bitaddr.Store(c.dataPages, c.pageBits(), abs, count, val)
	return nil
}

func (c *Class) pageBits() int { return c.pages.PageBytes() * 8 }

// Fetch/FetchSigned/Store are the per-object half of BitAddressing (the
// arena-wide Accessor resolves an Oid to a class and local index, then
// calls straight through to these).
func (c *Class) Fetch(o oid.Oid, bitOff, count int) (uint64, error) {
	local, ok := c.resolveLocal(o)
	if !ok {
		return 0, aerr.New(aerr.ValidationError, "oid does not belong to this class")
	}
	return c.fetchLocal(local, bitOff, count)
}

func (c *Class) FetchSigned(o oid.Oid, bitOff, count int) (int64, error) {
	local, ok := c.resolveLocal(o)
	if !ok {
		return 0, aerr.New(aerr.ValidationError, "oid does not belong to this class")
	}
	return c.fetchLocalSigned(local, bitOff, count)
}

func (c *Class) Store(o oid.Oid, bitOff, count int, val uint64) error {
	local, ok := c.resolveLocal(o)
	if !ok {
		return aerr.New(aerr.ValidationError, "oid does not belong to this class")
	}
	return c.storeLocal(local, bitOff, count, val)
}

// refill acquires a new directory entry and enough pages to back every slot
// it reserves, then threads all of the entry's slots onto the free list in
// ascending index order.
func (c *Class) refill() error {
	entryIdx := c.dir.AllocEntry()
	span := c.dir.EntrySpan()
	base := c.totalObjects
	c.dir.Bind(entryIdx, c, base)
	c.dirEntries = append(c.dirEntries, entryIdx)

	neededBits := uint64(span) * uint64(c.StrideBits)
	pageBits := uint64(c.pageBits())
	neededPages := int((neededBits + pageBits - 1) / pageBits)
	for i := 0; i < neededPages; i++ {
		pg, err := c.pages.Acquire()
		if err != nil {
			return err
		}
		c.dataPages = append(c.dataPages, []byte(pg))
	}

	for i := int(span) - 1; i >= 0; i-- {
		o := c.dir.Make(entryIdx, uint32(i))
		if err := c.storeLocal(base+uint32(i), -c.OverheadBits, c.pointerBits, uint64(c.freelistHead)); err != nil {
			return err
		}
		c.freelistHead = o
	}
	c.totalObjects += span
	return nil
}

// NewObject implements new_object(class): pop a free slot (refilling if the
// list is empty), zero it, write the lifetime header, and run the
// descriptor's initialize hook if it has one.
func (c *Class) NewObject(acc typedesc.Accessor) (oid.Oid, error) {
	if !c.freelistHead.Valid() {
		if err := c.refill(); err != nil {
			return oid.Null, err
		}
	}
	o := c.freelistHead
	local, ok := c.resolveLocal(o)
	if !ok {
		return oid.Null, aerr.New(aerr.ValidationError, "corrupt freelist: head does not resolve to this class")
	}
	next, err := c.fetchLocal(local, -c.OverheadBits, c.pointerBits)
	if err != nil {
		return oid.Null, err
	}
	c.freelistHead = oid.Oid(next)

	if err := c.zeroSlot(local); err != nil {
		return oid.Null, err
	}

	if c.OverheadBits > 0 {
		initial := uint64(1) // refcounted lifetimes start at refcount 1
		if err := c.storeLocal(local, -c.OverheadBits, c.OverheadBits, initial); err != nil {
			return oid.Null, err
		}
	}

	c.usedObjects++

	if c.Type.Flags().Has(typedesc.FlagInitialize) {
		if err := c.Type.(typedesc.Initializer).Initialize(acc, o, 0); err != nil {
			return oid.Null, err
		}
	}
	return o, nil
}

func (c *Class) zeroSlot(local uint32) error {
	const chunk = 64
	remaining := c.StrideBits
	off := -c.OverheadBits
	for remaining > 0 {
		take := remaining
		if take > chunk {
			take = chunk
		}
		if err := c.storeLocal(local, off, take, 0); err != nil {
			return err
		}
		remaining -= take
		off += take
	}
	return nil
}

// Ref implements ref(oid). Manual and Collected lifetimes
// are no-ops; HostManaged always fails; Refcounted32/8 saturate at their
// maximum rather than overflow, and a saturated counter never decrements
// again. With StrictRefOverflow set, an increment at the maximum reports
// RefcountOverflow instead of saturating silently.
func (c *Class) Ref(o oid.Oid) error {
	switch c.Lifetime {
	case Manual, Collected:
		return nil
	case HostManaged:
		return aerr.New(aerr.InvalidLifetime, "ref is not valid on a HostManaged class")
	}
	local, ok := c.resolveLocal(o)
	if !ok {
		return aerr.New(aerr.ValidationError, "oid does not belong to this class")
	}
	cur, err := c.fetchLocal(local, -c.OverheadBits, c.OverheadBits)
	if err != nil {
		return err
	}
	max := c.Lifetime.overheadMax()
	if cur >= max {
		if c.StrictRefOverflow {
			return aerr.New(aerr.RefcountOverflow, "refcount saturated at %d", max)
		}
		return nil // already saturated, permanent
	}
	return c.storeLocal(local, -c.OverheadBits, c.OverheadBits, cur+1)
}

// Unref implements unref(oid).
func (c *Class) Unref(acc typedesc.Accessor, o oid.Oid) error {
	switch c.Lifetime {
	case Manual, Collected:
		return nil
	case HostManaged:
		return aerr.New(aerr.InvalidLifetime, "unref is not valid on a HostManaged class")
	}
	local, ok := c.resolveLocal(o)
	if !ok {
		return aerr.New(aerr.ValidationError, "oid does not belong to this class")
	}
	cur, err := c.fetchLocal(local, -c.OverheadBits, c.OverheadBits)
	if err != nil {
		return err
	}
	max := c.Lifetime.overheadMax()
	if cur >= max {
		return nil // saturated counters never decrement
	}
	cur--
	if cur == 0 {
		return c.destroyLocal(acc, o, local)
	}
	return c.storeLocal(local, -c.OverheadBits, c.OverheadBits, cur)
}

// Destroy implements the explicit destroy(oid) path: Manual classes call
// this directly, and HostManaged classes call it when the host releases
// its handle. Refcounted/Collected lifetimes reach it only through Unref
// or a (future) collector sweep.
func (c *Class) Destroy(acc typedesc.Accessor, o oid.Oid) error {
	local, ok := c.resolveLocal(o)
	if !ok {
		return aerr.New(aerr.ValidationError, "oid does not belong to this class")
	}
	return c.destroyLocal(acc, o, local)
}

func (c *Class) destroyLocal(acc typedesc.Accessor, o oid.Oid, local uint32) error {
	if c.Type.Flags().Has(typedesc.FlagDestroy) {
		if err := c.Type.(typedesc.Destroyer).Destroy(acc, o, 0); err != nil {
			return err
		}
	}
	if err := c.storeLocal(local, -c.OverheadBits, c.pointerBits, uint64(c.freelistHead)); err != nil {
		return err
	}
	c.freelistHead = o
	c.usedObjects--
	return nil
}

// NewNode and FreeNode implement typedesc.NodeAllocator, letting Array and
// Hash descriptors allocate their own internal chunk/bucket-chain objects
// through a backing class without typedesc importing this package.
func (c *Class) NewNode(acc typedesc.Accessor) (oid.Oid, error) { return c.NewObject(acc) }
func (c *Class) FreeNode(acc typedesc.Accessor, o oid.Oid) error { return c.Destroy(acc, o) }

// Close releases every page and directory entry this class owns back to
// the shared pools. It fails if any object is still live; class
// destruction is scoped to used_objects == 0.
func (c *Class) Close() error {
	if c.usedObjects != 0 {
		return aerr.New(aerr.ValidationError, "cannot close class with %d live objects", c.usedObjects)
	}
	for _, pg := range c.dataPages {
		c.pages.Release(pagepool.Page(pg))
	}
	c.dataPages = nil
	for _, e := range c.dirEntries {
		c.dir.ReleaseEntry(e)
	}
	c.dirEntries = nil
	return nil
}
