// Package arena wires the storage manager and type/operation dispatch
// layer into a single object: an Arena owns the page pool, the directory,
// every class created against it, and the handle tables, and is the sole
// implementer of typedesc.Accessor.
package arena

import (
	"github.com/sorear/compact/aerr"
	"github.com/sorear/compact/class"
	"github.com/sorear/compact/directory"
	"github.com/sorear/compact/fv"
	"github.com/sorear/compact/handle"
	"github.com/sorear/compact/oid"
	"github.com/sorear/compact/pagepool"
	"github.com/sorear/compact/typedesc"
)

// Arena is one storage manager instance: pages, directory, classes and
// handle sorts all live and die together with it. An Arena is
// single-threaded cooperative and carries no internal locking of its own
// (the page pool and handle tables lock internally; the directory and the
// classes do not).
type Arena struct {
	opts Options

	pages   *pagepool.Pool
	dir     *directory.Directory
	handles *handle.Table

	classes []*class.Class
}

// New creates an empty arena per the given tuning knobs.
func New(opts Options) *Arena {
	opts = opts.withDefaults()
	return &Arena{
		opts:    opts,
		pages:   pagepool.New(opts.PageBytes, opts.BulkPagesInitial),
		dir:     directory.New(opts.DirentShift),
		handles: handle.NewTable(),
	}
}

// Handles returns the arena's handle table, one Sort per eq_class.
func (a *Arena) Handles() *handle.Table { return a.handles }

func (a *Arena) resolve(o oid.Oid) (*class.Class, error) {
	ref, _, ok := a.dir.Resolve(o)
	if !ok {
		return nil, aerr.New(aerr.ValidationError, "oid %d does not resolve to a live class", uint64(o))
	}
	c, isClass := ref.(*class.Class)
	if !isClass {
		return nil, aerr.New(aerr.ValidationError, "oid %d resolves to a non-class directory entry", uint64(o))
	}
	return c, nil
}

// --- typedesc.Accessor ---

func (a *Arena) Fetch(o oid.Oid, bitOff, count int) (uint64, error) {
	c, err := a.resolve(o)
	if err != nil {
		return 0, err
	}
	return c.Fetch(o, bitOff, count)
}

func (a *Arena) FetchSigned(o oid.Oid, bitOff, count int) (int64, error) {
	c, err := a.resolve(o)
	if err != nil {
		return 0, err
	}
	return c.FetchSigned(o, bitOff, count)
}

func (a *Arena) Store(o oid.Oid, bitOff, count int, val uint64) error {
	c, err := a.resolve(o)
	if err != nil {
		return err
	}
	return c.Store(o, bitOff, count, val)
}

func (a *Arena) Ref(o oid.Oid) error {
	c, err := a.resolve(o)
	if err != nil {
		return err
	}
	return c.Ref(o)
}

func (a *Arena) Unref(o oid.Oid) error {
	c, err := a.resolve(o)
	if err != nil {
		return err
	}
	return c.Unref(a, o)
}

// ObjectFetch/ObjectFetchSigned/ObjectStore are the raw bit-access
// surface for embeddings implementing their own aggregate descriptors.
// They are identical to the Accessor methods above, which typedesc hooks
// use internally.
func (a *Arena) ObjectFetch(o oid.Oid, bitOff, count int) (uint64, error) {
	return a.Fetch(o, bitOff, count)
}
func (a *Arena) ObjectFetchSigned(o oid.Oid, bitOff, count int) (int64, error) {
	return a.FetchSigned(o, bitOff, count)
}
func (a *Arena) ObjectStore(o oid.Oid, bitOff, count int, val uint64) error {
	return a.Store(o, bitOff, count, val)
}

// --- new_class / new_object / ref / unref ---

// NewClass implements new_class(type, payload_bits, lifetime, host_meta).
func (a *Arena) NewClass(ty typedesc.Type, payloadBits int, lifetime class.Lifetime, hostMeta interface{}) *class.Class {
	c := class.NewClass(ty, payloadBits, lifetime, hostMeta, a.pages, a.dir, a.opts.PointerSize)
	a.classes = append(a.classes, c)
	return c
}

// NewObject implements new_object(class).
func (a *Arena) NewObject(c *class.Class) (oid.Oid, error) { return c.NewObject(a) }

// --- do_subobject / do_get / do_set / child_exists ---

// Subobject implements do_subobject(&type, &oid, &bit_off, selector): it
// navigates one level into an aggregate and returns the updated triple.
func (a *Arena) Subobject(ty typedesc.Type, o oid.Oid, bitOff int, selector string) (oid.Oid, int, typedesc.Type, error) {
	return ty.Subobject(a, o, bitOff, selector)
}

// ChildExists implements child_exists(type, oid, bit_off, selector).
func (a *Arena) ChildExists(ty typedesc.Type, o oid.Oid, bitOff int, selector string) bool {
	return ty.SubobjectExists(a, o, bitOff, selector)
}

// Get implements do_get(type, oid, bit_off, out_fv).
func (a *Arena) Get(ty typedesc.Type, o oid.Oid, bitOff int) (fv.FV, error) {
	return ty.ScalarGet(a, o, bitOff)
}

// Set implements do_set(type, oid, bit_off, fv).
func (a *Arena) Set(ty typedesc.Type, o oid.Oid, bitOff int, val fv.FV) error {
	return ty.ScalarPut(a, o, bitOff, val)
}

// --- make_* type constructors ---

func (a *Arena) MakeIntType(bits int, signed bool) *typedesc.IntType {
	return typedesc.NewIntType(bits, signed)
}
func (a *Arena) MakeFloatType(exp, sig int) *typedesc.FloatType { return typedesc.NewFloatType(exp, sig) }
func (a *Arena) MakeNativeCharType(encoding string) *typedesc.NativeCharType {
	return typedesc.NewNativeCharType(encoding)
}
func (a *Arena) MakeUcs2CharType() *typedesc.Ucs2CharType { return typedesc.NewUcs2CharType() }
func (a *Arena) MakeUcs4CharType() *typedesc.Ucs4CharType { return typedesc.NewUcs4CharType() }
func (a *Arena) MakeVoidType() *typedesc.VoidType         { return typedesc.NewVoidType() }
func (a *Arena) MakeRecordType(fields []typedesc.Field) *typedesc.RecordType {
	return typedesc.NewRecordType(fields)
}
func (a *Arena) MakeVectorType(n int, elem typedesc.Type) *typedesc.VectorType {
	return typedesc.NewVectorType(n, elem)
}
func (a *Arena) MakeRefType() *typedesc.RefType { return typedesc.NewRefType(a.opts.PointerSize) }
func (a *Arena) MakeWeakRefType() *typedesc.WeakRefType {
	return typedesc.NewWeakRefType(a.opts.PointerSize)
}

// MakeArrayType implements make_array_type(elem). Array is variable-length:
// it needs a backing class of its own to allocate chunk
// nodes through, so construction is two-phase: build the descriptor, use
// its ChunkType() to create the backing class, then wire the class in as
// the descriptor's allocator.
func (a *Arena) MakeArrayType(elem typedesc.Type, chunkCap int, lifetime class.Lifetime) *typedesc.ArrayType {
	at := typedesc.NewArrayType(elem, a.opts.PointerSize, chunkCap)
	chunkClass := a.NewClass(at.ChunkType(), at.ChunkType().InlineSize(), lifetime, nil)
	at.SetAlloc(chunkClass)
	return at
}

// MakeHashType implements make_hash_type(k, v); see MakeArrayType's doc on
// the two-phase construction this also requires.
func (a *Arena) MakeHashType(key, value typedesc.Type, buckets int, lifetime class.Lifetime) *typedesc.HashType {
	ht := typedesc.NewHashType(key, value, a.opts.PointerSize, buckets)
	kvClass := a.NewClass(ht.KVType(), ht.KVType().InlineSize(), lifetime, nil)
	ht.SetAlloc(kvClass)
	return ht
}

// Host-shaped variants (nv, iv, uv, numish, intish, host_ref,
// host_weakref, host_filehandle_ref). make_string_type() has no in-payload
// representation of its own in this design; strings live entirely in the
// host's FV, so it is sugar for the same host-scalar wrapper host_ref
// would use, specialized to reject non-string FVs (see typedesc.HostStringType).
func (a *Arena) MakeStringType() *typedesc.HostStringType { return typedesc.NewHostStringType() }
func (a *Arena) MakeHostNumberType() *typedesc.HostNumberType {
	return typedesc.NewHostNumberType()
}
func (a *Arena) MakeHostIntType() *typedesc.HostIntType   { return typedesc.NewHostIntType() }
func (a *Arena) MakeHostUIntType() *typedesc.HostUIntType { return typedesc.NewHostUIntType() }
func (a *Arena) MakeHostNumishType() *typedesc.HostNumishType {
	return typedesc.NewHostNumishType()
}
func (a *Arena) MakeHostIntishType() *typedesc.HostIntishType {
	return typedesc.NewHostIntishType()
}
func (a *Arena) MakeHostRefType() *typedesc.HostRefType { return typedesc.NewHostRefType() }
func (a *Arena) MakeHostWeakRefType() *typedesc.HostWeakRefType {
	return typedesc.NewHostWeakRefType()
}
func (a *Arena) MakeHostFilehandleRefType() *typedesc.HostFilehandleRefType {
	return typedesc.NewHostFilehandleRefType()
}

// Classes returns every class created against this arena, for diagnostics
// (cmd/arenainspect).
func (a *Arena) Classes() []*class.Class { return a.classes }

// Pages returns the arena's page pool, for diagnostics.
func (a *Arena) Pages() *pagepool.Pool { return a.pages }

// Close tears down every class in creation order, returning their pages
// and directory entries to the shared pools. It stops at the first class
// that still has live objects and returns that class's error; the classes
// before it have already been torn down. The directory keeps no
// lock of its own, so teardown runs sequentially rather than fanning
// classes out across goroutines.
func (a *Arena) Close() error {
	for _, c := range a.classes {
		if err := c.Close(); err != nil {
			return err
		}
	}
	a.classes = nil
	return nil
}
