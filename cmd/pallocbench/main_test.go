package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// runCommand executes the root command with args and returns its output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { jsonOut, verbose = false, false })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInfoCommand(t *testing.T) {
	out, err := runCommand(t, "info")
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	for _, want := range []string{"Allocator Layout", "Page size", "Min pool size"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestInfoCommandJSON(t *testing.T) {
	out, err := runCommand(t, "info", "--json")
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	var info layoutInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("failed to decode output: %v\n%s", err, out)
	}
	if info.PageSize <= 0 || info.MinPoolSize <= 0 {
		t.Errorf("expected page and min pool sizes, got %+v", info)
	}
	if info.DefaultMax > info.MaxAllocFromPool {
		t.Errorf("expected default threshold %d to be at most %d", info.DefaultMax, info.MaxAllocFromPool)
	}
}

func TestRunCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"mmap heap", []string{"--heap", "mmap", "--prealloc", "4"}, false},
		{"go heap", []string{"--heap", "go", "--pool-size", "1024"}, false},
		{"unknown heap", []string{"--heap", "nope"}, true},
		{"pool too small", []string{"--pool-size", "16"}, true},
		{"no workers", []string{"--workers", "0"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"run", "--json", "--conns", "20", "--requests", "10", "--workers", "4", "--large-rate", "0.5", "--heap", "mmap", "--pool-size", "4096"}, tt.args...)
			out, err := runCommand(t, args...)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			var res runResult
			if err := json.Unmarshal([]byte(out), &res); err != nil {
				t.Fatalf("failed to decode output: %v\n%s", err, out)
			}
			if res.Requests != 200 {
				t.Errorf("expected 200 requests, got %d", res.Requests)
			}
			if res.PoolsCreated != 20 || res.PoolsDestroyed != 20 {
				t.Errorf("expected 20 pools created and destroyed, got %d and %d", res.PoolsCreated, res.PoolsDestroyed)
			}
			if res.CleanupsRun != 20 {
				t.Errorf("expected 20 cleanups run, got %d", res.CleanupsRun)
			}
		})
	}
}
