package streamconv

import "golang.org/x/sync/errgroup"

// validateLinesParallel runs QuickValidate+ParseAndValidate for a batch
// of already newline-split lines, splitting the work across a bounded
// worker pool once the batch is large enough to be worth it (spec.md §5).
// Each worker only reads its own slice of the immutable `lines` input and
// writes into disjoint slots of `valid`, so output order is preserved
// regardless of scheduling.
func validateLinesParallel(lines [][]byte) []bool {
	valid := make([]bool, len(lines))
	if len(lines) < parallelLineThreshold {
		for i, line := range lines {
			valid[i] = quickAndFullyValidate(line)
		}
		return valid
	}

	workers := csvWorkerCount(len(lines))
	if workers <= 1 {
		for i, line := range lines {
			valid[i] = quickAndFullyValidate(line)
		}
		return valid
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
				valid[i] = quickAndFullyValidate(lines[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	return valid
}

func quickAndFullyValidate(line []byte) bool {
	if len(line) == 0 || !QuickValidate(line) {
		return false
	}
	_, err := ParseAndValidate(line)
	return err == nil
}
