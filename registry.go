package palloc

import (
	"log/slog"

	"github.com/cespare/xxhash/v2"
)

const (
	bucketCount = 512 // Must be a power of two for unbiased modulo.
)

func bucketIndex(n uint64) uint64 {
	// Faster modulo via bitwise AND; requires bucketCount to be a power of two.
	return n & (bucketCount - 1)
}

// Registry hands out pools by key, such as a connection or request ID, creating them
// on first use. It is safe for concurrent use; the pools it hands out are not, and
// each must be used by one goroutine at a time.
type Registry struct {
	buckets [bucketCount]bucket
}

// NewRegistry creates a registry whose pools are created with heap, logger and
// config. A nil logger selects slog.Default.
func NewRegistry(heap Heap, logger *slog.Logger, config Config) (*Registry, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{}
	for i := range r.buckets {
		r.buckets[i].Init(heap, logger, config)
	}
	return r, nil
}

func (r *Registry) bucketFor(key string) *bucket {
	return &r.buckets[bucketIndex(xxhash.Sum64String(key))]
}

// Acquire returns the pool registered under key, creating it if there is none.
func (r *Registry) Acquire(key string) (*Pool, error) {
	return r.bucketFor(key).Acquire(key)
}

// Get returns the pool registered under key.
// The ok result indicates whether the key was found in the registry.
func (r *Registry) Get(key string) (p *Pool, ok bool) {
	return r.bucketFor(key).Get(key)
}

// Destroy unregisters and destroys the pool under key. It reports whether the key
// was registered. The pool's cleanups run on the calling goroutine.
func (r *Registry) Destroy(key string) bool {
	p, ok := r.bucketFor(key).Remove(key)
	if ok {
		p.Destroy()
	}
	return ok
}

// Clear destroys every registered pool.
func (r *Registry) Clear() {
	for i := range r.buckets {
		for _, p := range r.buckets[i].Drain() {
			p.Destroy()
		}
	}
}

// Len returns the number of registered pools.
func (r *Registry) Len() int {
	n := 0
	for i := range r.buckets {
		n += r.buckets[i].Len()
	}
	return n
}

func (r *Registry) UpdateStats(s *RegistryStats) {
	for i := range r.buckets {
		r.buckets[i].UpdateStats(s)
	}
}
