package graph

import (
	"fmt"
	"sort"

	"tensorgraph/runtime"
	"tensorgraph/tgerr"
)

// DefaultAlignment is the allocator's byte alignment, per §4.6.
const DefaultAlignment = 8

// freeBlock is one entry of the allocator's free list.
type freeBlock struct {
	offset int
	size   int
}

// Allocator is a logical first-fit, coalescing free-list allocator
// over a growing high-water mark. It assigns offsets before any real
// memory is acquired; the backing arena is materialized lazily, once,
// at GetPtr, sized to the final peak. Grounded on
// original_source/src/core/allocator.cc.
type Allocator struct {
	rt        runtime.Runtime
	alignment int

	peak int
	used int

	// freeBlocks is kept sorted ascending by offset, with the
	// non-overlapping, non-adjacent invariant: adjacency is always
	// coalesced away by Free.
	freeBlocks []freeBlock

	ptr []byte
}

// NewAllocator constructs an empty allocator backed by rt.
func NewAllocator(rt runtime.Runtime) *Allocator {
	return &Allocator{rt: rt, alignment: DefaultAlignment}
}

func alignUp(size, alignment int) int {
	return ((size + alignment - 1) / alignment) * alignment
}

// Alloc reserves size bytes (rounded up to the allocator's alignment)
// and returns the offset. It first-fits against freeBlocks, splitting
// the block if there's a remainder; on a miss it grows peak.
func (a *Allocator) Alloc(size int) (int, error) {
	if a.ptr != nil {
		return 0, tgerr.New(tgerr.UseAfterMaterialize, "alloc called after the arena was materialized")
	}
	size = alignUp(size, a.alignment)

	if idx := a.findFirstFit(size); idx >= 0 {
		blk := a.freeBlocks[idx]
		a.freeBlocks = append(a.freeBlocks[:idx], a.freeBlocks[idx+1:]...)

		if remain := blk.size - size; remain > 0 {
			a.insertSorted(freeBlock{offset: blk.offset + size, size: remain})
		}
		a.used += size
		return blk.offset, nil
	}

	addr := a.peak
	a.peak += size
	a.used += size
	return addr, nil
}

// findFirstFit returns the index of the lowest-offset free block whose
// size is >= need, or -1.
func (a *Allocator) findFirstFit(need int) int {
	for i, blk := range a.freeBlocks {
		if blk.size >= need {
			return i
		}
	}
	return -1
}

// insertSorted inserts blk into freeBlocks keeping ascending-offset
// order, with no coalescing (used for the post-split remainder, which
// by construction cannot be adjacent to an existing block).
func (a *Allocator) insertSorted(blk freeBlock) {
	idx := sort.Search(len(a.freeBlocks), func(i int) bool {
		return a.freeBlocks[i].offset >= blk.offset
	})
	a.freeBlocks = append(a.freeBlocks, freeBlock{})
	copy(a.freeBlocks[idx+1:], a.freeBlocks[idx:])
	a.freeBlocks[idx] = blk
}

// Free releases a previously allocated (offset, size) back to the free
// list, coalescing with adjacent neighbors, then shrinks peak while
// the highest-offset free block abuts it.
func (a *Allocator) Free(offset, size int) error {
	if a.ptr != nil {
		return tgerr.New(tgerr.UseAfterMaterialize, "free called after the arena was materialized")
	}
	size = alignUp(size, a.alignment)
	if a.used < size {
		return tgerr.New(tgerr.DoubleFreeOrOverFree, "free(%d, %d) exceeds used=%d", offset, size, a.used)
	}
	a.used -= size
	a.addFreeBlock(offset, size)
	a.shrinkPeak()
	return nil
}

func (a *Allocator) addFreeBlock(offset, size int) {
	idx := sort.Search(len(a.freeBlocks), func(i int) bool {
		return a.freeBlocks[i].offset >= offset
	})

	// Coalesce with the left neighbor.
	if idx > 0 {
		left := a.freeBlocks[idx-1]
		if left.offset+left.size == offset {
			offset = left.offset
			size += left.size
			a.freeBlocks = append(a.freeBlocks[:idx-1], a.freeBlocks[idx:]...)
			idx--
		}
	}

	// Coalesce with the right neighbor (idx now points at it, if any).
	if idx < len(a.freeBlocks) {
		right := a.freeBlocks[idx]
		if offset+size == right.offset {
			size += right.size
			a.freeBlocks = append(a.freeBlocks[:idx], a.freeBlocks[idx+1:]...)
		}
	}

	a.insertSorted(freeBlock{offset: offset, size: size})
}

// shrinkPeak repeatedly absorbs the highest-offset free block into
// peak while it is flush with peak; only the top-most block can ever
// qualify, so one check per iteration suffices.
func (a *Allocator) shrinkPeak() {
	for len(a.freeBlocks) > 0 {
		top := a.freeBlocks[len(a.freeBlocks)-1]
		if top.offset+top.size != a.peak {
			break
		}
		a.peak = top.offset
		a.freeBlocks = a.freeBlocks[:len(a.freeBlocks)-1]
	}
}

// GetPtr materializes the arena on first call, sized to the final
// peak, and returns it. Subsequent calls return the same buffer.
func (a *Allocator) GetPtr() ([]byte, error) {
	if a.ptr == nil {
		buf, err := a.rt.Alloc(a.peak)
		if err != nil {
			return nil, err
		}
		a.ptr = buf
	}
	return a.ptr, nil
}

// Close releases the materialized arena, if any, back to the runtime.
// Safe to call more than once.
func (a *Allocator) Close() {
	if a.ptr != nil {
		a.rt.Dealloc(a.ptr)
		a.ptr = nil
	}
}

// Peak returns the current high-water mark.
func (a *Allocator) Peak() int { return a.peak }

// Used returns the current sum of live allocation sizes.
func (a *Allocator) Used() int { return a.used }

// FreeBlockCount returns the number of entries in the free list, for
// tests asserting canonical form.
func (a *Allocator) FreeBlockCount() int { return len(a.freeBlocks) }

// Info prints the allocator's diagnostic counters, matching the
// original's plain stdout dump rather than a structured logger —
// there is no process boundary here for a logging framework to cross.
func (a *Allocator) Info() {
	fmt.Printf("Used memory: %d, peak memory: %d\n", a.used, a.peak)
}
