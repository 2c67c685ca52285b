package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/holmberd/go-palloc"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "pallocbench",
	Short: "Inspect and exercise the palloc pool allocator",
	Long: `pallocbench reports the pool allocator's memory layout on this platform and
simulates connection workloads, where every connection owns a pool that serves
a stream of requests and is destroyed when the connection closes.`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pool activity to stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger returns the logger handed to pools: debug output on stderr in verbose
// mode, alerts only otherwise.
func newLogger() *slog.Logger {
	if verbose {
		return palloc.NewLogger(os.Stderr, slog.LevelDebug)
	}
	return palloc.NewLogger(os.Stderr, palloc.LevelAlert)
}

// printJSON outputs data as JSON
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
