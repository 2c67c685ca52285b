// Package testutils provides test doubles shared by the package tests.
package testutils

import (
	"errors"
	"sync"
	"sync/atomic"
	"unsafe"
)

// ErrInjected is returned by a MockHeap once its allocation budget is spent.
var ErrInjected = errors.New("injected allocation failure")

// MockHeap is a heap backed by the Go heap that counts calls, tracks live memory and
// can be told to fail.
type MockHeap struct {
	allocCalls atomic.Int64
	freeCalls  atomic.Int64

	// FailAfter makes every allocation after the first FailAfter ones fail.
	// Zero disables failure injection.
	FailAfter int64

	mu   sync.Mutex
	live map[uintptr]int // Size by address.
}

func (h *MockHeap) Alloc(size int, alignment int) ([]byte, error) {
	n := h.allocCalls.Add(1)
	if h.FailAfter > 0 && n > h.FailAfter {
		return nil, ErrInjected
	}
	if size < 0 {
		return nil, errors.New("negative size")
	}
	// One extra byte keeps zero-size allocations distinct.
	buf := make([]byte, size+max(alignment, 1))
	shift := 0
	if alignment > 1 {
		p := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
		shift = int((p+uintptr(alignment)-1)&^(uintptr(alignment)-1) - p)
	}
	b := buf[shift : shift+size : shift+size+1]

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.live == nil {
		h.live = make(map[uintptr]int)
	}
	h.live[address(b)] = size
	return b, nil
}

func (h *MockHeap) Free(b []byte) {
	h.freeCalls.Add(1)
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.live, address(b))
}

func (h *MockHeap) AllocCalls() int64 {
	return h.allocCalls.Load()
}

func (h *MockHeap) FreeCalls() int64 {
	return h.freeCalls.Load()
}

// Live returns the number of allocations not freed yet.
func (h *MockHeap) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}

// LiveBytes returns the total size of allocations not freed yet.
func (h *MockHeap) LiveBytes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, size := range h.live {
		n += size
	}
	return n
}

// IsLive reports whether b is the start of an allocation not freed yet.
func (h *MockHeap) IsLive(b []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.live[address(b)]
	return ok
}

func (h *MockHeap) Reset() {
	h.allocCalls.Store(0)
	h.freeCalls.Store(0)
	h.mu.Lock()
	h.live = nil
	h.mu.Unlock()
}

func address(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}
