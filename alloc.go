package palloc

import (
	"fmt"
	"math"
	"unsafe"
)

// Alloc allocates size bytes aligned to Alignment. Requests up to Max are bump
// allocated from the block chain, larger ones are large allocations.
//
// The returned slice has its capacity clipped to size and is valid until the pool is
// reset or destroyed. Its contents are undefined; see AllocZeroed.
func (p *Pool) Alloc(size int) ([]byte, error) {
	p.checkLive()
	if size < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if size <= p.max && !p.debugAlloc {
		return p.allocSmall(size, true)
	}
	return p.allocLarge(size)
}

// AllocUnaligned is like Alloc but does not align small allocations, which saves the
// padding for byte data such as strings.
func (p *Pool) AllocUnaligned(size int) ([]byte, error) {
	p.checkLive()
	if size < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if size <= p.max && !p.debugAlloc {
		return p.allocSmall(size, false)
	}
	return p.allocLarge(size)
}

// AllocZeroed is like Alloc but zeroes the returned memory.
func (p *Pool) AllocZeroed(size int) ([]byte, error) {
	b, err := p.Alloc(size)
	if err != nil {
		return nil, err
	}
	clear(b)
	return b, nil
}

// allocSmall bump allocates size bytes from the first block, starting at current,
// that has room for them, and grows the chain when none has.
func (p *Pool) allocSmall(size int, align bool) ([]byte, error) {
	for i := p.current; i < len(p.blocks); i++ {
		b := &p.blocks[i]
		m := b.last
		if align {
			m = int(alignPtr(addr(b.buf)+uintptr(m), uintptr(Alignment)) - addr(b.buf))
		}
		if b.end()-m >= size {
			b.last = m + size
			return b.buf[m : m+size : m+size], nil
		}
	}
	return p.growBlock(size)
}

// CopyBytes copies b into unaligned pool memory.
func (p *Pool) CopyBytes(b []byte) ([]byte, error) {
	dst, err := p.AllocUnaligned(len(b))
	if err != nil {
		return nil, err
	}
	copy(dst, b)
	return dst, nil
}

// CopyString copies s into unaligned pool memory and returns the copy.
// The copy is valid until the pool is reset or destroyed.
func (p *Pool) CopyString(s string) (string, error) {
	if len(s) == 0 {
		return "", nil
	}
	dst, err := p.AllocUnaligned(len(s))
	if err != nil {
		return "", err
	}
	copy(dst, s)
	return unsafe.String(unsafe.SliceData(dst), len(dst)), nil
}

// New allocates a zeroed T from the pool.
//
// Pool memory is invisible to the garbage collector: T must not contain pointers
// into the Go heap.
func New[T any](p *Pool) (*T, error) {
	var zero T
	b, err := allocTyped(p, int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero)))
	if err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(unsafe.SliceData(b))), nil
}

// MakeSlice allocates a zeroed slice of n elements of type T from the pool.
// The restrictions of New apply to T.
func MakeSlice[T any](p *Pool, n int) ([]T, error) {
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if n < 0 || (elemSize > 0 && n > math.MaxInt/elemSize) {
		return nil, fmt.Errorf("%w: %d elements of %d bytes", ErrInvalidSize, n, elemSize)
	}
	if n == 0 {
		return []T{}, nil
	}
	b, err := allocTyped(p, n*elemSize, int(unsafe.Alignof(zero)))
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n), nil
}

// allocTyped allocates zeroed memory for a value with the given size and alignment.
func allocTyped(p *Pool, size int, align int) ([]byte, error) {
	if align <= Alignment {
		return p.AllocZeroed(size)
	}
	b, err := p.AllocAligned(size, align)
	if err != nil {
		return nil, err
	}
	clear(b)
	return b, nil
}
