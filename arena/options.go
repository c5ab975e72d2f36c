package arena

// Options holds the arena's tuning knobs, set once at construction. The
// zero value of each field means "use the documented default"; a plain
// struct rather than a functional-options chain, since the arena has four
// knobs total, not an open-ended set.
type Options struct {
	// PointerSize bounds the meaningful width of an Oid and is the width
	// of a freelist next-pointer. Default 32.
	PointerSize int

	// PageBytes is the fixed size of one page the PageAllocator hands
	// out. Default 4096.
	PageBytes int

	// DirentShift is DIRENT_SHIFT: log2 of the number of local indices
	// one directory entry reserves. Default 13 (8192 slots per entry).
	DirentShift uint

	// BulkPagesInitial is how many pages the PageAllocator requests per
	// underlying bulk mmap, before any EINVAL-triggered doubling.
	// Default 8.
	BulkPagesInitial int
}

const (
	defaultPointerSize      = 32
	defaultPageBytes        = 4096
	defaultDirentShift      = 13
	defaultBulkPagesInitial = 8
)

func (o Options) withDefaults() Options {
	if o.PointerSize <= 0 {
		o.PointerSize = defaultPointerSize
	}
	if o.PageBytes <= 0 {
		o.PageBytes = defaultPageBytes
	}
	if o.DirentShift == 0 {
		o.DirentShift = defaultDirentShift
	}
	if o.BulkPagesInitial <= 0 {
		o.BulkPagesInitial = defaultBulkPagesInitial
	}
	return o
}
