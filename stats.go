package palloc

// Stats is a snapshot of a pool's memory use.
type Stats struct {
	Blocks      int // Length of the block chain.
	Current     int // Index of the block bump allocation starts probing at.
	Capacity    int // Bytes available to bump allocation, headers excluded.
	Used        int // Bytes taken by bump allocation, alignment padding included.
	LargeAllocs int // Live large allocations.
	LargeBytes  int // Bytes held by live large allocations.
	Cleanups    int // Cleanups still to run on destroy.
}

// Utilization returns the ratio of used to available bump allocation bytes (0.0 to 1.0).
func (s Stats) Utilization() float64 {
	if s.Capacity == 0 {
		return 0
	}
	return float64(s.Used) / float64(s.Capacity)
}

// Stats returns a snapshot of the pool's memory use.
func (p *Pool) Stats() Stats {
	p.checkLive()
	s := Stats{
		Blocks:  len(p.blocks),
		Current: p.current,
	}
	for i := range p.blocks {
		b := &p.blocks[i]
		s.Capacity += b.end() - headerSize(i)
		s.Used += b.last - headerSize(i)
	}
	for l := p.large; l != nil; l = l.next {
		if l.buf != nil {
			s.LargeAllocs++
			s.LargeBytes += len(l.buf)
		}
	}
	for c := p.cleanup; c != nil; c = c.next {
		if c.pending() {
			s.Cleanups++
		}
	}
	return s
}
