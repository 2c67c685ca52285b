package palloc

import (
	"fmt"
	"math"
)

// Heap is the raw memory source behind a pool. Blocks and large allocations are
// obtained from it and handed back on reset and destroy.
type Heap interface {
	// Alloc returns size bytes whose first byte is aligned to alignment.
	// An alignment of 0 requests the heap's natural alignment.
	Alloc(size int, alignment int) ([]byte, error)

	// Free returns memory obtained from Alloc.
	Free(b []byte)
}

// maxGoHeapAlloc is the largest request a GoHeap attempts: the address space the
// runtime can hand out on 64-bit platforms, math.MaxInt on 32-bit ones.
const maxGoHeapAlloc = math.MaxInt >> (16 * (ptrSize / 8))

// GoHeap is a Heap backed by the Go heap. Free is a no-op; the memory is reclaimed
// by the garbage collector once the pool drops its references.
type GoHeap struct{}

func NewGoHeap() *GoHeap { return &GoHeap{} }

func (h *GoHeap) Alloc(size int, alignment int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	pad := 0
	if alignment > Alignment {
		pad = alignment
	}
	if size > maxGoHeapAlloc-pad {
		return nil, fmt.Errorf("%w: %d bytes", ErrNoMemory, size)
	}
	if pad == 0 {
		return make([]byte, size), nil
	}
	buf := make([]byte, size+pad) // Padding to shift the start onto the boundary.
	shift := int(alignPtr(addr(buf), uintptr(alignment)) - addr(buf))
	return buf[shift : shift+size : shift+size], nil
}

func (h *GoHeap) Free(b []byte) {}
