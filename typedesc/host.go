package typedesc

import (
	"fmt"
	"io"
	"sync"

	"github.com/sorear/compact/aerr"
	"github.com/sorear/compact/fv"
	"github.com/sorear/compact/oid"
)

// HostIndexBits is the fixed width used to store an index into a host
// type's value table. It does not need to track the arena's configured
// pointer_size: host values live in a table private to the descriptor, not
// in the directory's identifier space.
const HostIndexBits = 64

// valueTable boxes fv.FV values behind a small integer, using the same
// slice-plus-freelist shape as directory.Directory: index 0 is a reserved
// "no value" sentinel.
type valueTable struct {
	mu     sync.Mutex
	values []fv.FV
	free   []uint32
}

func (t *valueTable) alloc(v fv.FV) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.values) == 0 {
		t.values = append(t.values, fv.Nil) // index 0 sentinel
	}
	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		t.values[idx] = v
		return idx
	}
	t.values = append(t.values, v)
	return uint32(len(t.values) - 1)
}

func (t *valueTable) get(idx uint32) (fv.FV, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx == 0 || int(idx) >= len(t.values) {
		return fv.Nil, false
	}
	return t.values[idx], true
}

func (t *valueTable) release(idx uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx == 0 || int(idx) >= len(t.values) {
		return
	}
	t.values[idx].Drop()
	t.values[idx] = fv.Nil
	t.free = append(t.free, idx)
}

// hostScalar is shared plumbing for the Host* leaf kinds: each stores an
// index into its own valueTable and frees it on destroy, accepting
// whichever fv.Kind the concrete type names.
type hostScalar struct {
	base
	name    string
	accepts fv.Kind
	table   valueTable
}

func (h *hostScalar) InlineSize() int { return HostIndexBits }
func (h *hostScalar) Flags() Flag     { return FlagDestroy }
func (h *hostScalar) Deparse(w io.Writer) { fmt.Fprint(w, h.name) }

func (h *hostScalar) ScalarGet(acc Accessor, obj oid.Oid, bitOff int) (fv.FV, error) {
	idx, err := acc.Fetch(obj, bitOff, HostIndexBits)
	if err != nil {
		return fv.Nil, err
	}
	v, ok := h.table.get(uint32(idx))
	if !ok {
		return fv.Nil, nil
	}
	return v.Clone(), nil
}

func (h *hostScalar) ScalarPut(acc Accessor, obj oid.Oid, bitOff int, val fv.FV) error {
	if h.accepts != 0 && val.Kind() != h.accepts {
		return aerr.New(aerr.ValidationError, "%s put requires a %s FV, got %s", h.name, h.accepts, val.Kind())
	}
	old, err := acc.Fetch(obj, bitOff, HostIndexBits)
	if err != nil {
		return err
	}
	if old != 0 {
		h.table.release(uint32(old))
	}
	idx := h.table.alloc(val.Clone())
	return acc.Store(obj, bitOff, HostIndexBits, uint64(idx))
}

func (h *hostScalar) Destroy(acc Accessor, obj oid.Oid, bitOff int) error {
	idx, err := acc.Fetch(obj, bitOff, HostIndexBits)
	if err != nil {
		return err
	}
	if idx != 0 {
		h.table.release(uint32(idx))
	}
	return nil
}

// HostNumberType holds a host numeric value. Its ScalarPut accepts an FV
// of any kind; no check is made that the value is a float or an int.
type HostNumberType struct{ hostScalar }

func NewHostNumberType() *HostNumberType {
	return &HostNumberType{hostScalar{name: "host_nv"}}
}

// HostIntType / HostUIntType hold the host's native signed/unsigned
// integer scalar.
type HostIntType struct{ hostScalar }
type HostUIntType struct{ hostScalar }

func NewHostIntType() *HostIntType {
	return &HostIntType{hostScalar{name: "host_iv", accepts: fv.KindInt}}
}
func NewHostUIntType() *HostUIntType {
	return &HostUIntType{hostScalar{name: "host_uv", accepts: fv.KindInt}}
}

// HostNumish / HostIntish stand for anything the host can coerce to a
// number or integer respectively. The arena itself does not coerce, and
// their ScalarPut accepts an FV of any kind, refs included.
type HostNumishType struct{ hostScalar }
type HostIntishType struct{ hostScalar }

func NewHostNumishType() *HostNumishType { return &HostNumishType{hostScalar{name: "host_numish"}} }
func NewHostIntishType() *HostIntishType { return &HostIntishType{hostScalar{name: "host_intish"}} }

// HostStringType holds a host string scalar.
type HostStringType struct{ hostScalar }

func NewHostStringType() *HostStringType {
	return &HostStringType{hostScalar{name: "host_string", accepts: fv.KindString}}
}

// HostRefType, HostWeakRefType and HostFilehandleRefType hold opaque host
// references. Strong
// references hold a clone for the object's lifetime; weak ones do not.
// HostWeakRefType keeps no back-reference list and has no Translocate
// hook, so nothing rewrites its slots when objects move (unlike
// WeakRefType in ref.go, which tracks arena-owned targets).
type HostRefType struct{ hostScalar }
type HostWeakRefType struct{ hostScalar }
type HostFilehandleRefType struct{ hostScalar }

func NewHostRefType() *HostRefType {
	return &HostRefType{hostScalar{name: "host_ref", accepts: fv.KindRef}}
}
func NewHostFilehandleRefType() *HostFilehandleRefType {
	return &HostFilehandleRefType{hostScalar{name: "host_filehandle_ref", accepts: fv.KindRef}}
}

func NewHostWeakRefType() *HostWeakRefType {
	return &HostWeakRefType{hostScalar{name: "host_weakref", accepts: fv.KindRef}}
}

// HostWeakRefType never clones: it stores the table index but drops the
// extra reference scalar_put takes out, since a weak reference must not
// keep the host value alive.
func (h *HostWeakRefType) ScalarPut(acc Accessor, obj oid.Oid, bitOff int, val fv.FV) error {
	if err := h.hostScalar.ScalarPut(acc, obj, bitOff, val); err != nil {
		return err
	}
	// undo the clone hostScalar.ScalarPut took; the table's slot is the
	// only owner, and it holds no refcount against the host value.
	idx, err := acc.Fetch(obj, bitOff, HostIndexBits)
	if err == nil {
		if v, ok := h.table.get(uint32(idx)); ok {
			v.Drop()
		}
	}
	return nil
}
