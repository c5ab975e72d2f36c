package typedesc

import (
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"strconv"

	"github.com/sorear/compact/aerr"
	"github.com/sorear/compact/fv"
	"github.com/sorear/compact/oid"
)

// ArrayType is a variable-length, insertion-ordered sequence. Its own
// inline storage is only a small header (count, head chunk ref, tail
// chunk ref); elements live in a singly linked chain of fixed-capacity
// chunk objects allocated through alloc, a backing class the arena sets
// up when make_array_type is called (see arena.MakeArrayType).
//
// The chunk objects are themselves ordinary arena objects of an internal
// record type, so the compactor's normal per-object sweep already knows
// how to mark/translocate/forwardize them; ArrayType only needs to carry
// those hooks for its own header fields.
type ArrayType struct {
	Elem     Type
	RefBits  int
	ChunkCap int

	header *RecordType // {count uint32, head Ref, tail Ref}
	chunk  *RecordType // {used uint32, next Ref, elems Vector(ChunkCap, Elem)}
	alloc  NodeAllocator
}

// DefaultChunkCap is used when an arena doesn't otherwise tune array chunk
// size.
const DefaultChunkCap = 8

// NewArrayType builds the descriptor's shape. The caller must install a
// backing allocator with SetAlloc (using ChunkType() to build it) before
// the type is used; the allocator's class needs the chunk shape to exist
// first, so construction is necessarily two-phase.
func NewArrayType(elem Type, refBits, chunkCap int) *ArrayType {
	if chunkCap <= 0 {
		chunkCap = DefaultChunkCap
	}
	header := NewRecordType([]Field{
		{"count", NewIntType(32, false)},
		{"head", NewRefType(refBits)},
		{"tail", NewRefType(refBits)},
	})
	chunk := NewRecordType([]Field{
		{"used", NewIntType(32, false)},
		{"next", NewRefType(refBits)},
		{"elems", NewVectorType(chunkCap, elem)},
	})
	return &ArrayType{Elem: elem, RefBits: refBits, ChunkCap: chunkCap, header: header, chunk: chunk}
}

// ChunkType exposes the internal chunk record shape so the arena package
// can build the backing class for it.
func (t *ArrayType) ChunkType() Type { return t.chunk }

// SetAlloc installs the backing class the array allocates chunk nodes
// through. Must be called once, before Push/Destroy/etc are used.
func (t *ArrayType) SetAlloc(alloc NodeAllocator) { t.alloc = alloc }

func (t *ArrayType) InlineSize() int { return t.header.InlineSize() }
func (t *ArrayType) Flags() Flag     { return FlagDestroy | t.header.Flags() }

func (t *ArrayType) Deparse(w io.Writer) {
	fmt.Fprint(w, "array(")
	t.Elem.Deparse(w)
	fmt.Fprint(w, ")")
}

func (t *ArrayType) ScalarGet(Accessor, oid.Oid, int) (fv.FV, error) {
	return fv.Nil, aerr.New(aerr.UnsupportedOperation, "array has no scalar representation; use do_subobject")
}

func (t *ArrayType) ScalarPut(Accessor, oid.Oid, int, fv.FV) error {
	return aerr.New(aerr.UnsupportedOperation, "array has no scalar representation; use do_subobject")
}

func (t *ArrayType) Mark(acc Accessor, obj oid.Oid, bitOff int) error {
	if !t.header.Flags().Has(FlagMark) {
		return nil
	}
	return t.header.Mark(acc, obj, bitOff)
}

func (t *ArrayType) Translocate(acc Accessor, oldObj, newObj oid.Oid, bitOff int) error {
	if !t.header.Flags().Has(FlagTranslocate) {
		return nil
	}
	return t.header.Translocate(acc, oldObj, newObj, bitOff)
}

func (t *ArrayType) Forwardize(acc Accessor, obj oid.Oid, bitOff int, fwd ForwardMap) error {
	if !t.header.Flags().Has(FlagForwardize) {
		return nil
	}
	return t.header.Forwardize(acc, obj, bitOff, fwd)
}

func (t *ArrayType) Len(acc Accessor, obj oid.Oid, bitOff int) (int, error) {
	v, err := getField(acc, t.header, obj, bitOff, "count")
	if err != nil {
		return 0, err
	}
	return int(v.Int()), nil
}

func (t *ArrayType) Push(acc Accessor, obj oid.Oid, bitOff int, val fv.FV) error {
	countFV, err := getField(acc, t.header, obj, bitOff, "count")
	if err != nil {
		return err
	}
	count := countFV.Int()

	tailFV, err := getField(acc, t.header, obj, bitOff, "tail")
	if err != nil {
		return err
	}
	tailOid, _ := tailFV.Ref().(oid.Oid)

	if !tailOid.Valid() {
		newChunk, err := t.alloc.NewNode(acc)
		if err != nil {
			return err
		}
		if err := putField(acc, t.header, obj, bitOff, "head", fv.Ref(newChunk)); err != nil {
			return err
		}
		if err := putField(acc, t.header, obj, bitOff, "tail", fv.Ref(newChunk)); err != nil {
			return err
		}
		tailOid = newChunk
	}

	usedFV, err := getField(acc, t.chunk, tailOid, 0, "used")
	if err != nil {
		return err
	}
	used := int(usedFV.Int())

	if used >= t.ChunkCap {
		newChunk, err := t.alloc.NewNode(acc)
		if err != nil {
			return err
		}
		if err := putField(acc, t.chunk, tailOid, 0, "next", fv.Ref(newChunk)); err != nil {
			return err
		}
		if err := putField(acc, t.header, obj, bitOff, "tail", fv.Ref(newChunk)); err != nil {
			return err
		}
		tailOid = newChunk
		used = 0
	}

	if err := t.putElem(acc, tailOid, used, val); err != nil {
		return err
	}
	if err := putField(acc, t.chunk, tailOid, 0, "used", fv.Int(int64(used+1))); err != nil {
		return err
	}
	return putField(acc, t.header, obj, bitOff, "count", fv.Int(count+1))
}

func (t *ArrayType) putElem(acc Accessor, chunkOid oid.Oid, i int, val fv.FV) error {
	elemsOid, elemsBit, elemsTy, err := t.chunk.Subobject(acc, chunkOid, 0, "elems")
	if err != nil {
		return err
	}
	vec := elemsTy.(*VectorType)
	eo, eb, ety, err := vec.Subobject(acc, elemsOid, elemsBit, strconv.Itoa(i))
	if err != nil {
		return err
	}
	return ety.ScalarPut(acc, eo, eb, val)
}

// locate walks the chunk chain to find the (oid, bitOff, Type) of element
// i, the same triple Subobject returns for any aggregate's children.
func (t *ArrayType) locate(acc Accessor, obj oid.Oid, bitOff, i int) (oid.Oid, int, Type, error) {
	if i < 0 {
		return oid.Null, 0, nil, aerr.New(aerr.NoSuchChild, "array index %d out of range", i)
	}
	headFV, err := getField(acc, t.header, obj, bitOff, "head")
	if err != nil {
		return oid.Null, 0, nil, err
	}
	cur, _ := headFV.Ref().(oid.Oid)
	for cur.Valid() {
		usedFV, err := getField(acc, t.chunk, cur, 0, "used")
		if err != nil {
			return oid.Null, 0, nil, err
		}
		used := int(usedFV.Int())
		if i < used {
			elemsOid, elemsBit, elemsTy, err := t.chunk.Subobject(acc, cur, 0, "elems")
			if err != nil {
				return oid.Null, 0, nil, err
			}
			return elemsTy.(*VectorType).Subobject(acc, elemsOid, elemsBit, strconv.Itoa(i))
		}
		i -= used
		nextFV, err := getField(acc, t.chunk, cur, 0, "next")
		if err != nil {
			return oid.Null, 0, nil, err
		}
		cur, _ = nextFV.Ref().(oid.Oid)
	}
	return oid.Null, 0, nil, aerr.New(aerr.NoSuchChild, "array index out of range")
}

func (t *ArrayType) Subobject(acc Accessor, obj oid.Oid, bitOff int, name string) (oid.Oid, int, Type, error) {
	i, err := strconv.Atoi(name)
	if err != nil {
		return oid.Null, 0, nil, aerr.New(aerr.NoSuchChild, "array selector %q is not an index", name)
	}
	return t.locate(acc, obj, bitOff, i)
}

func (t *ArrayType) SubobjectExists(acc Accessor, obj oid.Oid, bitOff int, name string) bool {
	_, _, _, err := t.Subobject(acc, obj, bitOff, name)
	return err == nil
}

// Destroy walks the entire chunk chain, destroying elements (if the
// element type needs it) and freeing each chunk object.
func (t *ArrayType) Destroy(acc Accessor, obj oid.Oid, bitOff int) error {
	headFV, err := getField(acc, t.header, obj, bitOff, "head")
	if err != nil {
		return err
	}
	cur, _ := headFV.Ref().(oid.Oid)
	destroyElem := t.Elem.Flags().Has(FlagDestroy)

	for cur.Valid() {
		usedFV, err := getField(acc, t.chunk, cur, 0, "used")
		if err != nil {
			return err
		}
		used := int(usedFV.Int())

		if destroyElem {
			elemsOid, elemsBit, elemsTy, err := t.chunk.Subobject(acc, cur, 0, "elems")
			if err != nil {
				return err
			}
			vec := elemsTy.(*VectorType)
			d := t.Elem.(Destroyer)
			for i := 0; i < used; i++ {
				eo, eb, _, err := vec.Subobject(acc, elemsOid, elemsBit, strconv.Itoa(i))
				if err != nil {
					return err
				}
				if err := d.Destroy(acc, eo, eb); err != nil {
					return err
				}
			}
		}

		nextFV, err := getField(acc, t.chunk, cur, 0, "next")
		if err != nil {
			return err
		}
		next, _ := nextFV.Ref().(oid.Oid)
		if err := t.alloc.FreeNode(acc, cur); err != nil {
			return err
		}
		cur = next
	}
	return nil
}

// --- Hash ---

// HashType is an open-chaining hash table with a bucket count fixed at
// construction. Hashes guarantee one slot per key and rehash in
// Postcompact; this implementation always rehashes there, regardless of
// whether the key type is identity-sensitive, which is simpler and always
// correct.
type HashType struct {
	Key, Value Type
	RefBits    int
	Buckets    int

	header *RecordType // {count uint32, buckets Vector(Buckets, Ref)}
	kv     *RecordType // {key Key, value Value, next Ref}
	alloc  NodeAllocator
}

const DefaultBuckets = 16

// NewHashType builds the descriptor's shape; see NewArrayType's doc on the
// two-phase SetAlloc construction this also requires.
func NewHashType(key, value Type, refBits, buckets int) *HashType {
	if buckets <= 0 {
		buckets = DefaultBuckets
	}
	header := NewRecordType([]Field{
		{"count", NewIntType(32, false)},
		{"buckets", NewVectorType(buckets, NewRefType(refBits))},
	})
	kv := NewRecordType([]Field{
		{"key", key},
		{"value", value},
		{"next", NewRefType(refBits)},
	})
	return &HashType{Key: key, Value: value, RefBits: refBits, Buckets: buckets, header: header, kv: kv}
}

func (t *HashType) KVType() Type { return t.kv }

// SetAlloc installs the backing class the hash allocates key/value chain
// nodes through. Must be called once, before Put/Get/Destroy/etc are used.
func (t *HashType) SetAlloc(alloc NodeAllocator) { t.alloc = alloc }

func (t *HashType) InlineSize() int { return t.header.InlineSize() }
func (t *HashType) Flags() Flag     { return FlagDestroy | FlagPostcompact | t.header.Flags() }

func (t *HashType) Deparse(w io.Writer) {
	fmt.Fprint(w, "hash(")
	t.Key.Deparse(w)
	fmt.Fprint(w, ", ")
	t.Value.Deparse(w)
	fmt.Fprint(w, ")")
}

func (t *HashType) ScalarGet(Accessor, oid.Oid, int) (fv.FV, error) {
	return fv.Nil, aerr.New(aerr.UnsupportedOperation, "hash has no scalar representation; use do_subobject")
}

func (t *HashType) ScalarPut(Accessor, oid.Oid, int, fv.FV) error {
	return aerr.New(aerr.UnsupportedOperation, "hash has no scalar representation; use do_subobject")
}

func (t *HashType) Mark(acc Accessor, obj oid.Oid, bitOff int) error {
	if !t.header.Flags().Has(FlagMark) {
		return nil
	}
	return t.header.Mark(acc, obj, bitOff)
}

func (t *HashType) Translocate(acc Accessor, oldObj, newObj oid.Oid, bitOff int) error {
	if !t.header.Flags().Has(FlagTranslocate) {
		return nil
	}
	return t.header.Translocate(acc, oldObj, newObj, bitOff)
}

func (t *HashType) Forwardize(acc Accessor, obj oid.Oid, bitOff int, fwd ForwardMap) error {
	if !t.header.Flags().Has(FlagForwardize) {
		return nil
	}
	return t.header.Forwardize(acc, obj, bitOff, fwd)
}

// hashKey mixes a key FV down to a bucket selector, using the 64-bit
// golden-ratio multiplier (the 64-bit counterpart of the 0x9E3779B9
// constant the handle table hashes pointers with).
func hashKey(v fv.FV) uint64 {
	var raw uint64
	switch v.Kind() {
	case fv.KindInt:
		raw = uint64(v.Int())
	case fv.KindFloat:
		raw = math.Float64bits(v.Float())
	case fv.KindString:
		h := fnv.New64a()
		h.Write([]byte(v.String()))
		raw = h.Sum64()
	case fv.KindRef:
		if o, ok := v.Ref().(oid.Oid); ok {
			raw = uint64(o)
		}
	}
	return raw * 0x9E3779B97F4A7C15
}

func (t *HashType) bucketOf(key fv.FV) int {
	return int(hashKey(key) % uint64(t.Buckets))
}

func (t *HashType) bucketHead(acc Accessor, obj oid.Oid, bitOff, bucket int) (oid.Oid, error) {
	bucketsOid, bucketsBit, bucketsTy, err := t.header.Subobject(acc, obj, bitOff, "buckets")
	if err != nil {
		return oid.Null, err
	}
	vec := bucketsTy.(*VectorType)
	ro, rb, rty, err := vec.Subobject(acc, bucketsOid, bucketsBit, strconv.Itoa(bucket))
	if err != nil {
		return oid.Null, err
	}
	v, err := rty.ScalarGet(acc, ro, rb)
	if err != nil {
		return oid.Null, err
	}
	head, _ := v.Ref().(oid.Oid)
	return head, nil
}

func (t *HashType) setBucketHead(acc Accessor, obj oid.Oid, bitOff, bucket int, head oid.Oid) error {
	bucketsOid, bucketsBit, bucketsTy, err := t.header.Subobject(acc, obj, bitOff, "buckets")
	if err != nil {
		return err
	}
	vec := bucketsTy.(*VectorType)
	ro, rb, rty, err := vec.Subobject(acc, bucketsOid, bucketsBit, strconv.Itoa(bucket))
	if err != nil {
		return err
	}
	return rty.ScalarPut(acc, ro, rb, fv.Ref(head))
}

// Get returns the value stored for key, and whether it was found.
func (t *HashType) Get(acc Accessor, obj oid.Oid, bitOff int, key fv.FV) (fv.FV, bool, error) {
	bucket := t.bucketOf(key)
	cur, err := t.bucketHead(acc, obj, bitOff, bucket)
	if err != nil {
		return fv.Nil, false, err
	}
	for cur.Valid() {
		kFV, err := getField(acc, t.kv, cur, 0, "key")
		if err != nil {
			return fv.Nil, false, err
		}
		if kFV.Equal(key) {
			vFV, err := getField(acc, t.kv, cur, 0, "value")
			return vFV, true, err
		}
		nFV, err := getField(acc, t.kv, cur, 0, "next")
		if err != nil {
			return fv.Nil, false, err
		}
		cur, _ = nFV.Ref().(oid.Oid)
	}
	return fv.Nil, false, nil
}

// Put inserts or overwrites the value stored for key.
func (t *HashType) Put(acc Accessor, obj oid.Oid, bitOff int, key, val fv.FV) error {
	bucket := t.bucketOf(key)
	cur, err := t.bucketHead(acc, obj, bitOff, bucket)
	if err != nil {
		return err
	}
	for cur.Valid() {
		kFV, err := getField(acc, t.kv, cur, 0, "key")
		if err != nil {
			return err
		}
		if kFV.Equal(key) {
			return putField(acc, t.kv, cur, 0, "value", val)
		}
		nFV, err := getField(acc, t.kv, cur, 0, "next")
		if err != nil {
			return err
		}
		cur, _ = nFV.Ref().(oid.Oid)
	}

	node, err := t.alloc.NewNode(acc)
	if err != nil {
		return err
	}
	if err := putField(acc, t.kv, node, 0, "key", key); err != nil {
		return err
	}
	if err := putField(acc, t.kv, node, 0, "value", val); err != nil {
		return err
	}
	head, err := t.bucketHead(acc, obj, bitOff, bucket)
	if err != nil {
		return err
	}
	if err := putField(acc, t.kv, node, 0, "next", fv.Ref(head)); err != nil {
		return err
	}
	if err := t.setBucketHead(acc, obj, bitOff, bucket, node); err != nil {
		return err
	}
	countFV, err := getField(acc, t.header, obj, bitOff, "count")
	if err != nil {
		return err
	}
	return putField(acc, t.header, obj, bitOff, "count", fv.Int(countFV.Int()+1))
}

func (t *HashType) Subobject(acc Accessor, obj oid.Oid, bitOff int, name string) (oid.Oid, int, Type, error) {
	bucket := t.bucketOf(fv.String(name))
	cur, err := t.bucketHead(acc, obj, bitOff, bucket)
	if err != nil {
		return oid.Null, 0, nil, err
	}
	key := fv.String(name)
	for cur.Valid() {
		kFV, err := getField(acc, t.kv, cur, 0, "key")
		if err != nil {
			return oid.Null, 0, nil, err
		}
		if kFV.Equal(key) {
			return t.kv.Subobject(acc, cur, 0, "value")
		}
		nFV, err := getField(acc, t.kv, cur, 0, "next")
		if err != nil {
			return oid.Null, 0, nil, err
		}
		cur, _ = nFV.Ref().(oid.Oid)
	}
	return oid.Null, 0, nil, aerr.New(aerr.NoSuchChild, "hash has no key %q", name)
}

func (t *HashType) SubobjectExists(acc Accessor, obj oid.Oid, bitOff int, name string) bool {
	_, _, _, err := t.Subobject(acc, obj, bitOff, name)
	return err == nil
}

// Len returns the number of keys currently stored.
func (t *HashType) Len(acc Accessor, obj oid.Oid, bitOff int) (int, error) {
	v, err := getField(acc, t.header, obj, bitOff, "count")
	if err != nil {
		return 0, err
	}
	return int(v.Int()), nil
}

// Destroy frees every kv node (destroying keys/values that need it) across
// all buckets.
func (t *HashType) Destroy(acc Accessor, obj oid.Oid, bitOff int) error {
	destroyKey := t.Key.Flags().Has(FlagDestroy)
	destroyValue := t.Value.Flags().Has(FlagDestroy)

	for b := 0; b < t.Buckets; b++ {
		cur, err := t.bucketHead(acc, obj, bitOff, b)
		if err != nil {
			return err
		}
		for cur.Valid() {
			if destroyKey {
				ko, kb, _, err := t.kv.Subobject(acc, cur, 0, "key")
				if err != nil {
					return err
				}
				if err := t.Key.(Destroyer).Destroy(acc, ko, kb); err != nil {
					return err
				}
			}
			if destroyValue {
				vo, vb, _, err := t.kv.Subobject(acc, cur, 0, "value")
				if err != nil {
					return err
				}
				if err := t.Value.(Destroyer).Destroy(acc, vo, vb); err != nil {
					return err
				}
			}
			nFV, err := getField(acc, t.kv, cur, 0, "next")
			if err != nil {
				return err
			}
			next, _ := nFV.Ref().(oid.Oid)
			if err := t.alloc.FreeNode(acc, cur); err != nil {
				return err
			}
			cur = next
		}
	}
	return nil
}

// Postcompact rebuilds the bucket array from scratch so every key lands in
// the bucket its (possibly forwarded) value now hashes to.
func (t *HashType) Postcompact(acc Accessor, obj oid.Oid) error {
	const bitOff = 0 // postcompact only runs on top-level objects

	var nodes []oid.Oid
	for b := 0; b < t.Buckets; b++ {
		cur, err := t.bucketHead(acc, obj, bitOff, b)
		if err != nil {
			return err
		}
		for cur.Valid() {
			nodes = append(nodes, cur)
			nFV, err := getField(acc, t.kv, cur, 0, "next")
			if err != nil {
				return err
			}
			cur, _ = nFV.Ref().(oid.Oid)
		}
		if err := t.setBucketHead(acc, obj, bitOff, b, oid.Null); err != nil {
			return err
		}
	}

	for _, node := range nodes {
		kFV, err := getField(acc, t.kv, node, 0, "key")
		if err != nil {
			return err
		}
		bucket := t.bucketOf(kFV)
		head, err := t.bucketHead(acc, obj, bitOff, bucket)
		if err != nil {
			return err
		}
		if err := putField(acc, t.kv, node, 0, "next", fv.Ref(head)); err != nil {
			return err
		}
		if err := t.setBucketHead(acc, obj, bitOff, bucket, node); err != nil {
			return err
		}
	}
	return nil
}

// getField/putField read or write a named field of a RecordType-shaped
// object via Subobject navigation plus the field type's own scalar
// accessors, the same two-step dispatch do_get/do_set use at the
// top level (see arena.Arena.Get/Set).
func getField(acc Accessor, rec *RecordType, obj oid.Oid, bitOff int, name string) (fv.FV, error) {
	co, cbit, ty, err := rec.Subobject(acc, obj, bitOff, name)
	if err != nil {
		return fv.Nil, err
	}
	return ty.ScalarGet(acc, co, cbit)
}

func putField(acc Accessor, rec *RecordType, obj oid.Oid, bitOff int, name string, val fv.FV) error {
	co, cbit, ty, err := rec.Subobject(acc, obj, bitOff, name)
	if err != nil {
		return err
	}
	return ty.ScalarPut(acc, co, cbit, val)
}
