package smt

import (
	"fmt"
	"sync"

	"github.com/gogpu/glance/shm"
)

// Memory is a heap-allocated message buffer handle returned by Heap.Alloc,
// corresponding to spec.md §4.1's `mem_alloc(...) → memory`.
type Memory struct {
	ID     HeapBlockID
	Offset uint64
	Size   uint64
}

type heapBlock struct {
	offset uint64
	size   uint64
}

// freeRun is a contiguous run of unallocated heap bytes.
type freeRun struct {
	offset uint64
	size   uint64
}

// Heap is a first-fit allocator carving variable-size message buffers out of
// the shared region's heap area. Blocks are addressed by byte offset from
// the heap's base. store is the backing bytes every offset indexes into:
// NewHeapOverRegion ties it to a real shm.Region (the IVSHMEM BAR mapped by
// every address space on a real deployment); NewHeap instead allocates a
// plain Go slice for tests and same-process loopback, where no platform
// mapping is available.
//
// Thread-safe for concurrent use.
type Heap struct {
	mu     sync.Mutex
	total  uint64
	region shm.Region // nil when store is a plain Go slice
	store  []byte
	free   []freeRun
	blocks *Registry[heapBlock, heapBlockMarker]
}

// NewHeap creates a heap allocator over `total` bytes of ordinary
// process memory.
func NewHeap(total uint64) *Heap {
	return &Heap{
		total:  total,
		store:  make([]byte, total),
		free:   []freeRun{{offset: 0, size: total}},
		blocks: NewRegistry[heapBlock, heapBlockMarker](),
	}
}

// NewHeapOverRegion creates a heap allocator whose backing bytes are
// region's mapping, so every Memory offset this Heap hands out is also a
// valid offset into the region from any other address space that maps it
// (spec.md §3). reserved bytes at the front of the region are excluded from
// allocation - this is where HostInitOverRegion writes the wire.Header every
// address space reads to find the queue/heap layout before it knows
// anything else about the session. The caller retains ownership of region
// and must Close it after the Heap (and its Host) are done with it.
func NewHeapOverRegion(region shm.Region, reserved uint64) *Heap {
	total := region.Size()
	return &Heap{
		total:  total,
		region: region,
		store:  region.Bytes(),
		free:   []freeRun{{offset: reserved, size: total - reserved}},
		blocks: NewRegistry[heapBlock, heapBlockMarker](),
	}
}

// Alloc carves a block of at least `size` bytes, with the block's offset
// aligned to `alignment` (the alignment the capture backend negotiated at
// init time, typically the system page size so consumers can DMA-import
// pixel data directly). Returns ErrNoMemory if no free run can satisfy the
// request after alignment padding - a transient condition the caller should
// retry or drop per spec.md §7.
func (h *Heap) Alloc(size, alignment uint64) (Memory, error) {
	if alignment == 0 {
		alignment = 1
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for i, run := range h.free {
		aligned := alignUp(run.offset, alignment)
		pad := aligned - run.offset
		if pad+size > run.size {
			continue
		}

		// Consume the run: [run.offset, aligned+size) is taken, remainder
		// (if any) on either side goes back to the free list.
		var replacement []freeRun
		if pad > 0 {
			replacement = append(replacement, freeRun{offset: run.offset, size: pad})
		}
		tailOffset := aligned + size
		tailSize := run.size - pad - size
		if tailSize > 0 {
			replacement = append(replacement, freeRun{offset: tailOffset, size: tailSize})
		}
		h.free = append(h.free[:i], append(replacement, h.free[i+1:]...)...)

		id := h.blocks.Register(heapBlock{offset: aligned, size: size})
		return Memory{ID: id, Offset: aligned, Size: size}, nil
	}

	return Memory{}, ErrNoMemory
}

// Free releases a previously allocated block, merging it back into the free
// list. Safe to call once per successful Alloc; a second Free on the same ID
// returns ErrNotFound.
func (h *Heap) Free(id HeapBlockID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	blk, err := h.blocks.Unregister(id)
	if err != nil {
		return err
	}

	h.free = append(h.free, freeRun{offset: blk.offset, size: blk.size})
	h.coalesce()
	return nil
}

// coalesce merges adjacent free runs. Must be called with h.mu held.
func (h *Heap) coalesce() {
	if len(h.free) < 2 {
		return
	}
	// Insertion sort by offset; the free list is small in practice (bounded
	// by the number of concurrently in-flight messages).
	for i := 1; i < len(h.free); i++ {
		for j := i; j > 0 && h.free[j-1].offset > h.free[j].offset; j-- {
			h.free[j-1], h.free[j] = h.free[j], h.free[j-1]
		}
	}

	merged := h.free[:1]
	for _, run := range h.free[1:] {
		last := &merged[len(merged)-1]
		if last.offset+last.size == run.offset {
			last.size += run.size
		} else {
			merged = append(merged, run)
		}
	}
	h.free = merged
}

// WriteAt copies data into the heap's backing store at mem's offset.
// data must not exceed mem.Size; the caller (Host.WriteMessage) allocated
// mem to fit exactly the bytes it intends to write.
func (h *Heap) WriteAt(mem Memory, data []byte) error {
	if uint64(len(data)) > mem.Size {
		return fmt.Errorf("smt: WriteAt: %d bytes exceeds allocation of %d", len(data), mem.Size)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	copy(h.store[mem.Offset:], data)
	return nil
}

// ReadAt returns a copy of `size` bytes starting at `offset`, per a
// subscriber's `Message.Offset`/`Message.Size` (client_process). Returns a
// copy rather than a sub-slice so a subscriber cannot observe a producer's
// in-flight write to a later-reused offset.
func (h *Heap) ReadAt(offset uint64, size uint32) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	end := offset + uint64(size)
	if end > uint64(len(h.store)) {
		end = uint64(len(h.store))
	}
	if offset > end {
		return nil
	}
	out := make([]byte, end-offset)
	copy(out, h.store[offset:end])
	return out
}

// Available returns the total number of free bytes across all runs.
func (h *Heap) Available() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var total uint64
	for _, r := range h.free {
		total += r.size
	}
	return total
}

func alignUp(v, alignment uint64) uint64 {
	return (v + alignment - 1) / alignment * alignment
}
