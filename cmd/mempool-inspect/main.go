// Command mempool-inspect runs a scripted sequence of pool operations
// from a JSON fixture and prints the resulting partition. It exists to
// exercise the mempool package end to end outside of its test suite.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/arcpool/mempool"
)

// step is one scripted operation. Op is one of "allocate" or "free";
// Size is required for "allocate", Ref names the allocation (by the
// order it was allocated in) for "free".
type step struct {
	Op   string `json:"op"`
	Size int    `json:"size,omitempty"`
	Ref  int    `json:"ref,omitempty"`
}

type script struct {
	PoolSize int    `json:"pool_size"`
	Policy   string `json:"policy"`
	Steps    []step `json:"steps"`
}

func main() {
	var (
		scriptFile string
		jsonOutput bool
	)

	flag.StringVar(&scriptFile, "script", "", "path to a JSON operation script (required)")
	flag.BoolVar(&jsonOutput, "json", false, "print the final partition as JSON instead of a table")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -script FILE [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Runs a scripted allocate/free sequence against one pool and prints its final partition.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if scriptFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(scriptFile, jsonOutput); err != nil {
		fmt.Fprintf(os.Stderr, "mempool-inspect: %v\n", err)
		os.Exit(1)
	}
}

func run(scriptFile string, jsonOutput bool) error {
	raw, err := os.ReadFile(scriptFile)
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}

	var s script
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("parsing script: %w", err)
	}

	policy := mempool.FirstFit
	if s.Policy == "BEST_FIT" {
		policy = mempool.BestFit
	}

	if err := mempool.RegistryInit(); err != nil {
		return fmt.Errorf("registry init: %w", err)
	}
	defer mempool.RegistryTeardown()

	h, err := mempool.Open(s.PoolSize, policy)
	if err != nil {
		return fmt.Errorf("open pool: %w", err)
	}

	allocs := make([]mempool.Allocation, 0, len(s.Steps))

	for i, st := range s.Steps {
		switch st.Op {
		case "allocate":
			a, err := mempool.Allocate(h, st.Size)
			if err != nil {
				return fmt.Errorf("step %d: allocate %d: %w", i, st.Size, err)
			}

			allocs = append(allocs, a)
		case "free":
			if st.Ref < 0 || st.Ref >= len(allocs) {
				return fmt.Errorf("step %d: ref %d out of range", i, st.Ref)
			}

			if err := mempool.Free(h, allocs[st.Ref]); err != nil {
				return fmt.Errorf("step %d: free ref %d: %w", i, st.Ref, err)
			}
		default:
			return fmt.Errorf("step %d: unknown op %q", i, st.Op)
		}
	}

	segs, err := mempool.Inspect(h)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(segs)
	}

	fmt.Printf("%-10s %-10s\n", "SIZE", "ALLOCATED")

	for _, seg := range segs {
		fmt.Printf("%-10d %-10t\n", seg.Size, seg.Allocated)
	}

	return nil
}
