package main

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/holmberd/go-palloc"
	"github.com/spf13/cobra"
)

type runOptions struct {
	conns     int
	requests  int
	workers   int
	poolSize  int
	objects   int
	maxObject int
	largeRate float64
	heap      string
	prealloc  int
	seed      int64
}

type runResult struct {
	Conns          int           `json:"conns"`
	Requests       int64         `json:"requests"`
	Elapsed        time.Duration `json:"elapsed_ns"`
	PoolsCreated   uint64        `json:"pools_created"`
	PoolsDestroyed uint64        `json:"pools_destroyed"`
	CleanupsRun    int64         `json:"cleanups_run"`
	SmallBytes     int64         `json:"small_bytes"`
	LargeBytes     int64         `json:"large_bytes"`
	MaxBlocks      int64         `json:"max_blocks"`
	UsedPeak       int64         `json:"used_peak"`
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate connections that allocate from per-connection pools",
		Long: `The run command simulates connections served by a set of workers. Every
connection acquires a pool from a registry and serves its requests from it, resetting
the pool between requests. Closing a connection destroys its pool, running its
cleanups.

Example:
  pallocbench run --conns 1000 --requests 100
  pallocbench run --heap go --pool-size 4096 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts)
		},
	}
	cmd.Flags().IntVar(&opts.conns, "conns", 1000, "Number of connections")
	cmd.Flags().IntVar(&opts.requests, "requests", 100, "Requests per connection")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 8, "Number of worker goroutines")
	cmd.Flags().IntVar(&opts.poolSize, "pool-size", palloc.DefaultPoolSize, "Pool block size in bytes")
	cmd.Flags().IntVar(&opts.objects, "objects", 32, "Small objects allocated per request")
	cmd.Flags().IntVar(&opts.maxObject, "max-object", 256, "Largest small object in bytes")
	cmd.Flags().Float64Var(&opts.largeRate, "large-rate", 0.1, "Fraction of requests making a large allocation")
	cmd.Flags().StringVar(&opts.heap, "heap", "mmap", "Heap backing the pools: mmap or go")
	cmd.Flags().IntVar(&opts.prealloc, "prealloc", 0, "Blocks mapped ahead of the run (mmap heap only)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 1, "Random seed")
	return cmd
}

func runRun(cmd *cobra.Command, opts runOptions) error {
	if opts.conns < 0 || opts.requests < 0 || opts.workers <= 0 || opts.objects < 0 || opts.maxObject <= 0 {
		return fmt.Errorf("invalid run options: %+v", opts)
	}

	logger := newLogger()
	var heap palloc.Heap
	switch opts.heap {
	case "mmap":
		heapConfig := palloc.DefaultMmapHeapConfig()
		heapConfig.Logger = logger
		mh := palloc.NewMmapHeap(heapConfig)
		defer mh.Purge()
		if err := mh.Prealloc(opts.poolSize, opts.prealloc); err != nil {
			return fmt.Errorf("failed to prealloc: %w", err)
		}
		heap = mh
	case "go":
		heap = palloc.NewGoHeap()
	default:
		return fmt.Errorf("unknown heap %q", opts.heap)
	}

	config := palloc.DefaultConfig()
	config.Size = opts.poolSize
	registry, err := palloc.NewRegistry(heap, logger, config)
	if err != nil {
		return err
	}
	defer registry.Clear()

	var res runResult
	res.Conns = opts.conns

	conns := make(chan int)
	errs := make(chan error, opts.workers)
	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < opts.workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewSource(opts.seed + int64(w)))
			for conn := range conns {
				if err := serveConn(registry, rng, conn, opts, &res); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	func() {
		defer close(conns)
		for i := 0; i < opts.conns; i++ {
			select {
			case conns <- i:
			case err = <-errs:
				return
			}
		}
	}()
	wg.Wait()
	res.Elapsed = time.Since(start)
	if err != nil {
		return err
	}
	select {
	case err := <-errs:
		return err
	default:
	}

	s := &palloc.RegistryStats{}
	registry.UpdateStats(s)
	res.PoolsCreated, res.PoolsDestroyed = s.Created, s.Destroyed

	w := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(w, res)
	}
	fmt.Fprintf(w, "\nRun Summary:\n")
	fmt.Fprintf(w, "  Connections:     %s\n", humanize.Comma(int64(res.Conns)))
	fmt.Fprintf(w, "  Requests:        %s\n", humanize.Comma(res.Requests))
	fmt.Fprintf(w, "  Elapsed:         %s\n", res.Elapsed.Round(time.Microsecond))
	if res.Requests > 0 {
		perReq := res.Elapsed / time.Duration(res.Requests)
		fmt.Fprintf(w, "  Per request:     %s\n", perReq)
	}
	fmt.Fprintf(w, "  Pools:           %s created, %s destroyed\n",
		humanize.Comma(int64(res.PoolsCreated)), humanize.Comma(int64(res.PoolsDestroyed)))
	fmt.Fprintf(w, "  Cleanups run:    %s\n", humanize.Comma(res.CleanupsRun))
	fmt.Fprintf(w, "  Small allocated: %s\n", humanize.IBytes(uint64(res.SmallBytes)))
	fmt.Fprintf(w, "  Large allocated: %s\n", humanize.IBytes(uint64(res.LargeBytes)))
	fmt.Fprintf(w, "  Peak pool usage: %s in up to %d blocks\n", humanize.IBytes(uint64(res.UsedPeak)), res.MaxBlocks)
	return nil
}

// serveConn serves one connection's requests from a pool of its own.
func serveConn(registry *palloc.Registry, rng *rand.Rand, conn int, opts runOptions, res *runResult) error {
	key := "conn-" + strconv.Itoa(conn)
	p, err := registry.Acquire(key)
	if err != nil {
		return fmt.Errorf("failed to acquire pool for %s: %w", key, err)
	}

	for req := 0; req < opts.requests; req++ {
		var small, large int64
		for obj := 0; obj < opts.objects; obj++ {
			n := 1 + rng.Intn(opts.maxObject)
			if _, err := p.Alloc(n); err != nil {
				return err
			}
			small += int64(n)
		}
		if rng.Float64() < opts.largeRate {
			n := p.Max() + 1 + rng.Intn(opts.poolSize)
			b, err := p.Alloc(n)
			if err != nil {
				return err
			}
			large += int64(n)
			// Half of the large buffers are handed back before the request ends.
			if rng.Intn(2) == 0 {
				p.Release(b)
			}
		}

		s := p.Stats()
		storeMax(&res.MaxBlocks, int64(s.Blocks))
		storeMax(&res.UsedPeak, int64(s.Used))
		atomic.AddInt64(&res.SmallBytes, small)
		atomic.AddInt64(&res.LargeBytes, large)
		atomic.AddInt64(&res.Requests, 1)
		p.Reset()
	}

	c, err := p.AddCleanup(0)
	if err != nil {
		return err
	}
	c.Handler = func([]byte) { atomic.AddInt64(&res.CleanupsRun, 1) }
	registry.Destroy(key)
	return nil
}

func storeMax(addr *int64, v int64) {
	for {
		old := atomic.LoadInt64(addr)
		if v <= old || atomic.CompareAndSwapInt64(addr, old, v) {
			return
		}
	}
}
