package palloc

import (
	"errors"
	"fmt"
	"log/slog"
)

const (
	KiB = 1024
	MiB = KiB * KiB

	// DefaultPoolSize is the block size used by Create callers that have no better estimate.
	DefaultPoolSize = 16 * KiB

	// DefaultLargeReuseProbes is the number of large slots probed for reuse.
	DefaultLargeReuseProbes = 4
)

// MinPoolSize is the smallest block size accepted by Config.Validate: room for the
// pool header and two large slot records.
var MinPoolSize = alignUp(poolHeaderSize+2*largeSlotSize, PoolAlignment)

type Config struct {
	// Size is the total capacity of the first block, header included.
	// Every block added on growth has exactly the same size.
	Size int

	// MaxAlloc caps the size of requests served by bump allocation. Requests above
	// min(Size - header, MaxAlloc) go to the heap as large allocations.
	// Zero selects MaxAllocFromPool.
	MaxAlloc int

	// LargeReuseProbes bounds how many large slots, counted from the most recent,
	// are inspected for reuse before a new slot is recorded. Zero disables reuse.
	LargeReuseProbes int

	// DebugAlloc routes every Alloc and AllocUnaligned call to the heap so that
	// memory checkers see each allocation individually. This includes the records
	// charged by AddCleanup and AddFileCleanup, which then show up in
	// Stats.LargeAllocs.
	DebugAlloc bool
}

func (c Config) Validate() error {
	var errs []error
	if c.Size < MinPoolSize {
		errs = append(errs, fmt.Errorf("%w: size %d is below the minimum of %d", ErrInvalidConfig, c.Size, MinPoolSize))
	}
	if c.MaxAlloc < 0 {
		errs = append(errs, fmt.Errorf("%w: max alloc %d must not be negative", ErrInvalidConfig, c.MaxAlloc))
	}
	if c.LargeReuseProbes < 0 {
		errs = append(errs, fmt.Errorf("%w: large reuse probes %d must not be negative", ErrInvalidConfig, c.LargeReuseProbes))
	}
	return errors.Join(errs...)
}

func DefaultConfig() Config {
	return Config{
		Size:             DefaultPoolSize,
		MaxAlloc:         MaxAllocFromPool, // One page minus one byte.
		LargeReuseProbes: DefaultLargeReuseProbes,
	}
}

type MmapHeapConfig struct {
	// Number of cached free mappings per mapping length the heap can hold
	// before starting to unmap. A value <= 0 disables caching.
	FreeThreshold int

	// Logger receives frees of unknown memory and unmap failures.
	// Nil selects slog.Default.
	Logger *slog.Logger
}

func DefaultMmapHeapConfig() MmapHeapConfig {
	return MmapHeapConfig{
		FreeThreshold: 256, // 4MB of default-sized pool blocks.
	}
}
