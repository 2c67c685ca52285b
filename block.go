package palloc

// maxBlockFailures is the number of times a block may be passed over while linking
// new blocks before bump allocation stops probing it first.
const maxBlockFailures = 4

type block struct {
	buf    []byte // Whole block; its header footprint is reserved at the front.
	last   int    // Bump cursor.
	failed int    // Times passed over while linking a new block.
}

func (b *block) end() int {
	return len(b.buf)
}

// headerSize returns the header footprint of the i-th block in the chain.
func headerSize(i int) int {
	if i == 0 {
		return poolHeaderSize
	}
	return blockHeaderSize
}

// growBlock appends a new block to the chain and serves size bytes from it.
// New blocks always have the pool's original size; oversized requests never get
// here since they are routed to the heap.
func (p *Pool) growBlock(size int) ([]byte, error) {
	buf, err := heapAlloc(p.heap, p.size, PoolAlignment)
	if err != nil {
		return nil, err
	}
	m := int(alignPtr(addr(buf)+uintptr(blockHeaderSize), uintptr(Alignment)) - addr(buf))

	// Every block between current and the tail failed to serve this request.
	// Once a block has failed too often, start probing at its successor.
	for i := p.current; i < len(p.blocks)-1; i++ {
		if p.blocks[i].failed > maxBlockFailures {
			p.current = i + 1
		}
		p.blocks[i].failed++
	}

	p.blocks = append(p.blocks, block{buf: buf, last: m + size})
	return buf[m : m+size : m+size], nil
}
