package streamconv

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sync/errgroup"
)

// parallelLineThreshold is the minimum number of newline-aligned lines a
// single push must contain before intra-chunk parallel field parsing is
// worth the goroutine overhead (spec.md §5 "Optional intra-chunk
// parallelism").
const parallelLineThreshold = 256

// csvWorkerCount picks a bounded worker count from the host's logical
// core count, the way raceordie690-simdcsv's cpuid-gated dispatch decides
// whether a SIMD path is worth taking on this machine.
func csvWorkerCount(lineCount int) int {
	cores := cpuid.CPU.LogicalCores
	if cores < 2 {
		return 1
	}
	workers := cores
	if workers > runtime.GOMAXPROCS(0) {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > 8 {
		workers = 8
	}
	if workers > lineCount {
		workers = lineCount
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// parseFieldsForLines parses every line's fields, splitting the work
// across a bounded worker pool when the batch is large enough. Workers
// read only their own slice of the immutable `lines` input and write into
// disjoint slots of the pre-sized `results` slice, so no synchronization
// is needed beyond the errgroup join; output order always matches input
// order regardless of worker count (spec.md §5 correctness constraints).
func parseFieldsForLines(lines [][]byte, delim byte, trim bool) [][]string {
	results := make([][]string, len(lines))
	if len(lines) < parallelLineThreshold {
		for i, line := range lines {
			results[i] = parseCSVFields(line, delim, trim)
		}
		return results
	}

	workers := csvWorkerCount(len(lines))
	if workers <= 1 {
		for i, line := range lines {
			results[i] = parseCSVFields(line, delim, trim)
		}
		return results
	}

	chunkSize := (len(lines) + workers - 1) / workers
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		if start >= len(lines) {
			break
		}
		end := start + chunkSize
		if end > len(lines) {
			end = len(lines)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				results[i] = parseCSVFields(lines[i], delim, trim)
			}
			return nil
		})
	}
	_ = g.Wait() // parseCSVFields never errors; nothing to propagate.
	return results
}
