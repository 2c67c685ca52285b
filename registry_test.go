package palloc

import (
	"strconv"
	"sync"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/holmberd/go-palloc/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *testutils.MockHeap) {
	t.Helper()
	heap := &testutils.MockHeap{}
	config := DefaultConfig()
	config.Size = 1 * KiB
	r, err := NewRegistry(heap, discardLogger, config)
	require.NoError(t, err)
	t.Cleanup(r.Clear)
	return r, heap
}

func TestBucketIndex(t *testing.T) {
	for _, key := range []string{"", "1", "conn-42", "\xde\xad\xbe\xef"} {
		h := xxhash.Sum64String(key)
		assert.Equal(t, h%bucketCount, bucketIndex(h), "key %q", key)
	}
}

func TestRegistryAcquire(t *testing.T) {
	r, heap := newTestRegistry(t)

	p1, err := r.Acquire("1")
	require.NoError(t, err)
	p2, err := r.Acquire("1")
	require.NoError(t, err)
	require.Same(t, p1, p2, "same key returns the same pool")
	_, err = r.Acquire("2")
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 2, heap.Live())
	assert.Equal(t, 1*KiB, p1.Size())

	got, ok := r.Get("1")
	assert.True(t, ok)
	assert.Same(t, p1, got)
	_, ok = r.Get("3")
	assert.False(t, ok)
}

func TestRegistryDestroy(t *testing.T) {
	r, heap := newTestRegistry(t)

	p, err := r.Acquire("1")
	require.NoError(t, err)
	ran := false
	c, err := p.AddCleanup(0)
	require.NoError(t, err)
	c.Handler = func([]byte) { ran = true }

	require.True(t, r.Destroy("1"))
	assert.True(t, ran, "cleanups run on destroy")
	assert.Zero(t, heap.Live())
	assert.False(t, r.Destroy("1"), "second destroy finds nothing")
	assert.Zero(t, r.Len())

	// A destroyed key gets a fresh pool.
	p2, err := r.Acquire("1")
	require.NoError(t, err)
	assert.NotSame(t, p, p2)
}

func TestRegistryClear(t *testing.T) {
	r, heap := newTestRegistry(t)
	const n = 100
	for i := 0; i < n; i++ {
		_, err := r.Acquire(strconv.Itoa(i))
		require.NoError(t, err)
	}
	r.Clear()
	assert.Zero(t, r.Len())
	assert.Zero(t, heap.Live())

	s := &RegistryStats{}
	r.UpdateStats(s)
	assert.Equal(t, RegistryStats{Created: n, Destroyed: n}, *s)
	s.Reset()
	assert.Equal(t, RegistryStats{}, *s)
}

func TestRegistryInvalidConfig(t *testing.T) {
	_, err := NewRegistry(NewGoHeap(), nil, Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRegistryConcurrent(t *testing.T) {
	r, _ := newTestRegistry(t)
	const workers = 8
	const keys = 64

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < keys; i++ {
				// Each worker owns its keys; the pools are single-owner.
				key := strconv.Itoa(w*keys + i)
				p, err := r.Acquire(key)
				if !assert.NoError(t, err) {
					return
				}
				if _, err := p.Alloc(100); !assert.NoError(t, err) {
					return
				}
				if i%2 == 0 {
					r.Destroy(key)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*keys/2, r.Len())
	s := &RegistryStats{}
	r.UpdateStats(s)
	assert.EqualValues(t, workers*keys, s.Created)
}
