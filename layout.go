package palloc

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const ptrSize = int(unsafe.Sizeof(uintptr(0)))

const (
	// Alignment is the boundary aligned allocations start on.
	Alignment = ptrSize

	// PoolAlignment is the alignment requested from the heap for every block.
	PoolAlignment = 16
)

// Footprints, in bytes, of the bookkeeping records a pool keeps in its own memory.
const (
	blockHeaderSize  = 4 * ptrSize                 // last, end, next, failed
	poolHeaderSize   = blockHeaderSize + 5*ptrSize // + max, current, large, cleanup, logger
	largeSlotSize    = 2 * ptrSize                 // next, payload
	cleanupEntrySize = 3 * ptrSize                 // handler, data, next
	fileCleanupSize  = 3 * ptrSize                 // fd, name, logger
)

// MaxAllocFromPool is the default ceiling for bump allocations: one page minus one byte.
var MaxAllocFromPool = unix.Getpagesize() - 1

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

func alignPtr(p uintptr, align uintptr) uintptr {
	return (p + align - 1) &^ (align - 1)
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// addr returns the address of the first byte backing b.
func addr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}
