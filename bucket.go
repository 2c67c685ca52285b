package palloc

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// RegistryStats represents registry stats.
type RegistryStats struct {
	Created   uint64 // Pools created by Acquire.
	Destroyed uint64 // Pools destroyed by Destroy or Clear.
}

func (s *RegistryStats) Reset() {
	s.Created = 0
	s.Destroyed = 0
}

// bucket is one shard of a registry.
type bucket struct {
	sync.Mutex
	heap   Heap
	logger *slog.Logger
	config Config
	pools  map[string]*Pool
	stats  RegistryStats
}

func (b *bucket) Init(heap Heap, logger *slog.Logger, config Config) {
	b.heap = heap
	b.logger = logger
	b.config = config
	b.pools = make(map[string]*Pool)
}

func (b *bucket) UpdateStats(s *RegistryStats) {
	s.Created += atomic.LoadUint64(&b.stats.Created)
	s.Destroyed += atomic.LoadUint64(&b.stats.Destroyed)
}

// Acquire returns the pool registered under key, creating it if needed.
func (b *bucket) Acquire(key string) (*Pool, error) {
	b.Lock()
	defer b.Unlock()

	if p, ok := b.pools[key]; ok {
		return p, nil
	}
	p, err := Custom(b.heap, b.logger.With("pool", key), b.config)
	if err != nil {
		return nil, err
	}
	b.pools[key] = p
	atomic.AddUint64(&b.stats.Created, 1)
	return p, nil
}

func (b *bucket) Get(key string) (*Pool, bool) {
	b.Lock()
	defer b.Unlock()
	p, ok := b.pools[key]
	return p, ok
}

// Remove unregisters the pool under key and returns it. The caller destroys it.
func (b *bucket) Remove(key string) (*Pool, bool) {
	b.Lock()
	defer b.Unlock()
	p, ok := b.pools[key]
	if ok {
		delete(b.pools, key)
		atomic.AddUint64(&b.stats.Destroyed, 1)
	}
	return p, ok
}

// Drain unregisters every pool in the bucket and returns them.
func (b *bucket) Drain() []*Pool {
	b.Lock()
	defer b.Unlock()
	pools := make([]*Pool, 0, len(b.pools))
	for _, p := range b.pools {
		pools = append(pools, p)
	}
	// A fresh map lets the old backing array be reclaimed; maps never shrink.
	b.pools = make(map[string]*Pool)
	atomic.AddUint64(&b.stats.Destroyed, uint64(len(pools)))
	return pools
}

func (b *bucket) Len() int {
	b.Lock()
	defer b.Unlock()
	return len(b.pools)
}
