// Package lib documents this module as a whole.
//
// compact is a storage engine for embedding a host language runtime's
// object graph behind a compact, page-backed arena: objects are typed,
// bit-packed slots addressed by an opaque Oid rather than a Go pointer,
// so a host can keep large object graphs outside the Go heap and GC.
//
// See arena for the top-level entry point, pagepool/directory/class/
// bitaddr for the four storage-layer primitives, and typedesc for the
// type descriptor tree and vtable that drives typed access to an
// object's fields.
package lib
