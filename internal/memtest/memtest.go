// Package memtest holds small arena-construction helpers shared by this
// module's test files.
package memtest

import (
	"testing"

	"github.com/sorear/compact/arena"
)

// SmallArena returns an arena sized for fast, small-scale tests: a tiny
// page size and a small directory shift so refill/growth paths are
// exercised by a handful of objects instead of thousands.
func SmallArena(t *testing.T) *arena.Arena {
	t.Helper()
	return arena.New(arena.Options{
		PointerSize:      32,
		PageBytes:        64,
		DirentShift:      2,
		BulkPagesInitial: 1,
	})
}
