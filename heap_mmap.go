package palloc

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sys/unix"
)

// MmapHeap is a Heap serving memory from anonymous private mappings outside the Go heap,
// which keeps pool blocks out of reach of the garbage collector. Mappings are whole pages;
// alignments above the page size are met by over-mapping.
//
// Freed mappings are cached per mapping length and handed out again, so the uniform
// blocks of short-lived pools are recycled instead of being mapped and unmapped on every
// request. An MmapHeap is safe for concurrent use by multiple goroutines.
//
// Memory served by an MmapHeap must never hold pointers into the Go heap.
type MmapHeap struct {
	mu       sync.Mutex
	logger   *slog.Logger
	pageSize int
	free     map[int][][]byte   // Cached mappings by length.
	live     map[uintptr][]byte // Whole mapping by the address handed out.

	// freeThreshold is the number of cached mappings per length the heap
	// can hold before starting to unmap.
	freeThreshold int
}

// NewMmapHeap creates a new, empty mmap heap.
func NewMmapHeap(config MmapHeapConfig) *MmapHeap {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MmapHeap{
		logger:        logger,
		pageSize:      unix.Getpagesize(),
		free:          make(map[int][][]byte),
		live:          make(map[uintptr][]byte),
		freeThreshold: config.FreeThreshold,
	}
}

// mappingLen returns the length of the mapping needed to serve size bytes at alignment.
func (h *MmapHeap) mappingLen(size int, alignment int) int {
	n := alignUp(max(size, 1), h.pageSize)
	if alignment > h.pageSize {
		n += alignment
	}
	return n
}

func (h *MmapHeap) Alloc(size int, alignment int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if alignment != 0 && !isPowerOfTwo(alignment) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAlignment, alignment)
	}
	if size > math.MaxInt-h.pageSize-max(alignment, 0) {
		return nil, fmt.Errorf("%w: %d bytes", ErrNoMemory, size)
	}
	length := h.mappingLen(size, alignment)

	h.mu.Lock()
	defer h.mu.Unlock()

	var m []byte
	if cached := h.free[length]; len(cached) > 0 {
		n := len(cached) - 1
		m = cached[n]
		h.free[length] = cached[:n]
	} else {
		var err error
		m, err = h.mmap(length)
		if err != nil {
			return nil, err
		}
	}

	shift := 0
	if alignment > h.pageSize {
		shift = int(alignPtr(addr(m), uintptr(alignment)) - addr(m))
	}
	// Capacity is at least one byte so that the slice keeps pointing into the mapping.
	b := m[shift : shift+size : shift+max(size, 1)]
	h.live[addr(b)] = m
	return b, nil
}

func (h *MmapHeap) Free(b []byte) {
	var toUnmap [][]byte

	h.mu.Lock()
	m, ok := h.live[addr(b)]
	if !ok {
		h.mu.Unlock()
		h.logger.Error("free of memory not owned by the heap", "addr", fmt.Sprintf("%#x", addr(b)))
		return
	}
	delete(h.live, addr(b))
	if h.freeThreshold <= 0 {
		toUnmap = append(toUnmap, m)
	} else {
		h.free[len(m)] = append(h.free[len(m)], m)
		h.free[len(m)], toUnmap = releaseMappings(h.free[len(m)], h.freeThreshold)
	}
	h.mu.Unlock()

	// Perform unmap outside of the lock to avoid blocking other operations.
	for _, m := range toUnmap {
		h.unmap(m)
	}
}

// Prealloc ensures that at least n mappings able to serve size bytes are cached.
// This is useful for pre-warming the heap for a known pool size.
func (h *MmapHeap) Prealloc(size int, n int) error {
	if n <= 0 {
		return nil
	}
	if size < 0 || size > math.MaxInt-h.pageSize {
		return fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	length := h.mappingLen(size, 0)

	h.mu.Lock()
	defer h.mu.Unlock()

	for len(h.free[length]) < n {
		m, err := h.mmap(length)
		if err != nil {
			return err
		}
		h.free[length] = append(h.free[length], m)
	}
	return nil
}

// Purge unmaps every cached mapping. Memory currently handed out is not affected.
func (h *MmapHeap) Purge() {
	h.mu.Lock()
	free := h.free
	h.free = make(map[int][][]byte)
	h.mu.Unlock()

	for _, cached := range free {
		for _, m := range cached {
			h.unmap(m)
		}
	}
}

// mmap maps length bytes of anonymous memory.
// It assumes the caller holds the mutex.
func (h *MmapHeap) mmap(length int) ([]byte, error) {
	m, err := unix.Mmap(-1, 0, length,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot map %d bytes: %w", ErrNoMemory, length, err)
	}
	return m, nil
}

// unmap releases the memory of a mapping back to the operating system.
func (h *MmapHeap) unmap(m []byte) {
	if err := unix.Munmap(m); err != nil {
		h.logger.Error("failed to unmap memory", "length", len(m), "error", err)
	}
}

// numFree returns the number of cached mappings of the given length.
// It is primarily intended as helper method in tests.
func (h *MmapHeap) numFree(length int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.free[length])
}

// numLive returns the number of mappings currently handed out.
func (h *MmapHeap) numLive() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}

// releaseMappings trims the free list if it exceeds the given threshold.
// It returns the updated list and the mappings that were removed and should be unmapped.
func releaseMappings[P any](freeList []P, threshold int) (newList []P, toUnmap []P) {
	if threshold > 0 && len(freeList) > threshold {
		// Release half of the free mappings to prevent thrashing around the threshold.
		freeCount := len(freeList) / 2
		toUnmap = freeList[:freeCount]
		newList = freeList[freeCount:]
		return newList, toUnmap
	}
	return freeList, nil
}
