// Package palloc implements a region ("pool") memory allocator for short-lived,
// bulk-owned allocations, such as everything a server allocates while handling
// one connection or one request.
//
// Small requests are served by bumping a cursor through a chain of uniform blocks.
// Requests above the pool's threshold go straight to the heap and are tracked so that
// they can be released individually. Cleanup handlers registered with a pool run
// when it is destroyed, most recent first, which makes pools a natural owner of
// file descriptors and other resources with the same lifetime as their memory.
//
// A Pool is not safe for concurrent use. Use one pool per goroutine or unit of work,
// or guard it externally; a Registry hands out pools per key.
package palloc

import (
	"errors"
	"fmt"
	"log/slog"
)

// DefaultHeap is the heap used by Create.
var DefaultHeap Heap = NewMmapHeap(DefaultMmapHeapConfig())

// Pool is a region allocator. The zero value is not usable; see Create and Custom.
type Pool struct {
	logger *slog.Logger
	heap   Heap

	// blocks is the block chain. blocks[0] carries the pool header,
	// the rest only a data header.
	blocks []block

	// current is the index of the block bump allocation starts probing at.
	// It only moves forward, except on Reset.
	current int

	max        int        // Largest request served by bump allocation.
	size       int        // Size of every block, header included.
	probes     int        // Large slots inspected for reuse.
	debugAlloc bool       // Serve every request from the heap.
	large      *largeSlot // Most recent large allocation first.
	cleanup    *Cleanup   // Most recent cleanup first.
}

// Create creates a pool of size bytes from DefaultHeap using the default configuration.
func Create(size int, logger *slog.Logger) (*Pool, error) {
	config := DefaultConfig()
	config.Size = size
	return Custom(DefaultHeap, logger, config)
}

// Custom creates a pool with a custom heap and config.
// A nil logger selects slog.Default.
func Custom(heap Heap, logger *slog.Logger, config Config) (*Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	buf, err := heapAlloc(heap, config.Size, PoolAlignment)
	if err != nil {
		return nil, err
	}

	maxAlloc := config.MaxAlloc
	if maxAlloc == 0 {
		maxAlloc = MaxAllocFromPool
	}
	p := &Pool{
		logger:     logger,
		heap:       heap,
		blocks:     []block{{buf: buf, last: poolHeaderSize}},
		max:        min(config.Size-poolHeaderSize, maxAlloc),
		size:       config.Size,
		probes:     config.LargeReuseProbes,
		debugAlloc: config.DebugAlloc,
	}
	return p, nil
}

// Destroy runs every pending cleanup, most recently registered first, and then
// returns all large allocations and blocks to the heap. The pool must not be used
// afterwards; calling Destroy again is a no-op.
func (p *Pool) Destroy() {
	if p.blocks == nil {
		return
	}
	for c := p.cleanup; c != nil; c = c.next {
		if c.pending() {
			p.logger.Debug("run cleanup", "cleanup", fmt.Sprintf("%p", c))
			c.run()
		}
	}
	for l := p.large; l != nil; l = l.next {
		if l.buf != nil {
			p.logger.Debug("free", addrAttr("addr", l.buf), "size", len(l.buf))
			p.heap.Free(l.buf)
		}
	}
	for i := range p.blocks {
		b := &p.blocks[i]
		p.logger.Debug("free", addrAttr("addr", b.buf), "unused", b.end()-b.last)
		p.heap.Free(b.buf)
	}
	p.blocks = nil
	p.large = nil
	p.cleanup = nil
	p.current = 0
}

// Reset returns all large allocations to the heap and rewinds every block, making
// the whole chain available again. Registered cleanups are dropped without running.
// The chain keeps its length.
func (p *Pool) Reset() {
	p.checkLive()
	for l := p.large; l != nil; l = l.next {
		if l.buf != nil {
			p.heap.Free(l.buf)
		}
	}
	for i := range p.blocks {
		p.blocks[i].last = headerSize(i)
		p.blocks[i].failed = 0
	}
	p.current = 0
	p.large = nil
	p.cleanup = nil
}

// Max returns the largest request served by bump allocation.
func (p *Pool) Max() int {
	return p.max
}

// Size returns the size of every block in the chain, header included.
func (p *Pool) Size() int {
	return p.size
}

// NumBlocks returns the length of the block chain.
func (p *Pool) NumBlocks() int {
	return len(p.blocks)
}

// Current returns the index of the block bump allocation starts probing at.
func (p *Pool) Current() int {
	return p.current
}

// Logger returns the pool's diagnostic logger.
func (p *Pool) Logger() *slog.Logger {
	return p.logger
}

func (p *Pool) checkLive() {
	if p.blocks == nil {
		panic(ErrPoolDestroyed)
	}
}

// heapAlloc requests memory from heap, reporting every failure as ErrNoMemory.
func heapAlloc(heap Heap, size int, alignment int) ([]byte, error) {
	b, err := heap.Alloc(size, alignment)
	if err != nil {
		if errors.Is(err, ErrNoMemory) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %d bytes: %w", ErrNoMemory, size, err)
	}
	return b, nil
}
