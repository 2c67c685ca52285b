package main

import (
	"fmt"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/holmberd/go-palloc"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

type layoutInfo struct {
	PageSize         int `json:"page_size"`
	PointerSize      int `json:"pointer_size"`
	Alignment        int `json:"alignment"`
	PoolAlignment    int `json:"pool_alignment"`
	MaxAllocFromPool int `json:"max_alloc_from_pool"`
	MinPoolSize      int `json:"min_pool_size"`
	DefaultPoolSize  int `json:"default_pool_size"`
	DefaultMax       int `json:"default_max"`
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Report the allocator's memory layout",
		Long: `The info command reports the page size, alignments and size limits the
pool allocator uses on this platform.

Example:
  pallocbench info
  pallocbench info --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd)
		},
	}
	return cmd
}

func runInfo(cmd *cobra.Command) error {
	p, err := palloc.Create(palloc.DefaultPoolSize, newLogger())
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}
	defer p.Destroy()

	info := layoutInfo{
		PageSize:         unix.Getpagesize(),
		PointerSize:      int(unsafe.Sizeof(uintptr(0))),
		Alignment:        palloc.Alignment,
		PoolAlignment:    palloc.PoolAlignment,
		MaxAllocFromPool: palloc.MaxAllocFromPool,
		MinPoolSize:      palloc.MinPoolSize,
		DefaultPoolSize:  palloc.DefaultPoolSize,
		DefaultMax:       p.Max(),
	}
	w := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(w, info)
	}

	fmt.Fprintf(w, "\nAllocator Layout:\n")
	fmt.Fprintf(w, "  Page size:           %s\n", humanize.IBytes(uint64(info.PageSize)))
	fmt.Fprintf(w, "  Pointer size:        %d\n", info.PointerSize)
	fmt.Fprintf(w, "  Alignment:           %d\n", info.Alignment)
	fmt.Fprintf(w, "  Pool alignment:      %d\n", info.PoolAlignment)
	fmt.Fprintf(w, "  Max alloc from pool: %s\n", humanize.IBytes(uint64(info.MaxAllocFromPool)))
	fmt.Fprintf(w, "  Min pool size:       %s\n", humanize.IBytes(uint64(info.MinPoolSize)))
	fmt.Fprintf(w, "  Default pool size:   %s (threshold %s)\n",
		humanize.IBytes(uint64(info.DefaultPoolSize)), humanize.IBytes(uint64(info.DefaultMax)))
	return nil
}
