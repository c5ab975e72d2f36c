// Package pagepool implements the arena's PageAllocator: a free list of
// fixed-size raw pages backed by bulk anonymous memory mappings.
//
// Pages are carved out of large anonymous mmap regions obtained through
// golang.org/x/sys/unix. A region is owned for the life of the pool and
// never unmapped piecemeal; individual pages just circulate on the free
// list.
package pagepool

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/sorear/compact/aerr"
)

// Page is a fixed-size slice of raw payload bits. Pages carry no header;
// the class that owns a page is reached through the directory, not the page
// itself (see the directory package).
type Page []byte

// Pool is a single arena's page free list. Its methods take an internal
// mutex; the arena built on it is single-threaded cooperative as a whole
// (see arena.Arena).
type Pool struct {
	mu sync.Mutex

	pageBytes int
	allocSize int // pages requested per bulk mmap, doubles on EINVAL

	free    []Page
	regions [][]byte // bulk mappings; never unmapped individually

	created int // total pages ever carved out, for diagnostics
}

const defaultBulkPages = 8

// New creates a page pool producing pages of pageBytes bytes each,
// requesting bulkPagesInitial pages per underlying bulk mapping.
func New(pageBytes, bulkPagesInitial int) *Pool {
	if pageBytes <= 0 {
		pageBytes = 4096
	}
	if bulkPagesInitial <= 0 {
		bulkPagesInitial = defaultBulkPages
	}
	return &Pool{
		pageBytes: pageBytes,
		allocSize: bulkPagesInitial,
	}
}

// PageBytes returns the fixed page size this pool hands out.
func (p *Pool) PageBytes() int {
	return p.pageBytes
}

// Acquire removes one page from the free list, refilling in bulk from the
// OS if the list is empty.
func (p *Pool) Acquire() (Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		if err := p.refillLocked(); err != nil {
			return nil, err
		}
	}

	n := len(p.free) - 1
	pg := p.free[n]
	p.free = p.free[:n]
	return pg, nil
}

// Release returns a page to the free list. The page is not zeroed here;
// callers (class.Class) zero individual object slots on allocation instead.
func (p *Pool) Release(pg Page) {
	p.mu.Lock()
	p.free = append(p.free, pg)
	p.mu.Unlock()
}

// refillLocked requests a bulk anonymous mapping of allocSize pages. If the
// kernel rejects the size, allocSize doubles and the request retries
// exactly once, per the arena's OutOfMemory retry policy; a second failure
// surfaces OutOfMemory.
func (p *Pool) refillLocked() error {
	region, err := p.mapBulk(p.allocSize)
	if err != nil {
		if err == unix.EINVAL {
			p.allocSize *= 2
			region, err = p.mapBulk(p.allocSize)
		}
		if err != nil {
			return aerr.New(aerr.OutOfMemory, "bulk page mapping failed: %v", err)
		}
	}

	p.regions = append(p.regions, region)
	for off := 0; off+p.pageBytes <= len(region); off += p.pageBytes {
		p.free = append(p.free, Page(region[off:off+p.pageBytes]))
		p.created++
	}
	return nil
}

func (p *Pool) mapBulk(pages int) ([]byte, error) {
	size := pages * p.pageBytes
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

// Created returns the total number of pages ever carved out of a bulk
// mapping, for diagnostics (cmd/arenainspect).
func (p *Pool) Created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

// Free returns the number of pages currently sitting on the free list.
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
