package palloc

import "fmt"

// largeSlot tracks a large allocation until it is released.
type largeSlot struct {
	next *largeSlot
	buf  []byte // Nil once released, making the slot reusable.
}

// allocLarge serves size bytes from the heap. The most recent slots are probed for
// one freed by Release before a new slot is recorded.
func (p *Pool) allocLarge(size int) ([]byte, error) {
	buf, err := heapAlloc(p.heap, size, 0)
	if err != nil {
		return nil, err
	}
	n := 0
	for l := p.large; l != nil && n < p.probes; l = l.next {
		if l.buf == nil {
			l.buf = buf
			return buf, nil
		}
		n++
	}
	return p.track(buf)
}

// AllocAligned allocates size bytes from the heap aligned to alignment, which must be
// a power of two. The allocation is always tracked in a new large slot, whatever its size.
func (p *Pool) AllocAligned(size int, alignment int) ([]byte, error) {
	p.checkLive()
	if size < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if !isPowerOfTwo(alignment) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAlignment, alignment)
	}
	buf, err := heapAlloc(p.heap, size, alignment)
	if err != nil {
		return nil, err
	}
	return p.track(buf)
}

// track records buf in a new large slot at the head of the list. The slot record is
// charged to the pool's own memory; if that fails buf is handed back to the heap.
func (p *Pool) track(buf []byte) ([]byte, error) {
	if _, err := p.allocSmall(largeSlotSize, true); err != nil {
		p.heap.Free(buf)
		return nil, err
	}
	p.large = &largeSlot{next: p.large, buf: buf}
	return buf, nil
}

// Release returns a large allocation to the heap ahead of the pool's destruction.
// It reports whether b was a live large allocation of this pool; memory served by
// bump allocation is never released individually.
func (p *Pool) Release(b []byte) bool {
	p.checkLive()
	for l := p.large; l != nil; l = l.next {
		if l.buf != nil && addr(l.buf) == addr(b) {
			p.logger.Debug("free", addrAttr("addr", l.buf), "size", len(l.buf))
			p.heap.Free(l.buf)
			l.buf = nil
			return true
		}
	}
	return false
}
