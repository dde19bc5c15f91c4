package streamconv

import (
	"fmt"
	"testing"
)

func TestValidateLinesParallelBelowThreshold(t *testing.T) {
	lines := [][]byte{[]byte(`{"a":1}`), []byte("not json"), []byte(`{"b":2}`)}
	got := validateLinesParallel(lines)
	want := []bool{true, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("valid[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestValidateLinesParallelAboveThresholdPreservesOrder(t *testing.T) {
	n := parallelLineThreshold + 20
	lines := make([][]byte, n)
	for i := 0; i < n; i++ {
		if i%7 == 0 {
			lines[i] = []byte("garbage")
		} else {
			lines[i] = []byte(fmt.Sprintf(`{"i":%d}`, i))
		}
	}
	got := validateLinesParallel(lines)
	if len(got) != n {
		t.Fatalf("expected %d results, got %d", n, len(got))
	}
	for i := 0; i < n; i++ {
		want := i%7 != 0
		if got[i] != want {
			t.Fatalf("valid[%d] = %v, want %v (order not preserved or wrong classification)", i, got[i], want)
		}
	}
}

func TestValidateLinesParallelMatchesSequentialResult(t *testing.T) {
	n := parallelLineThreshold + 50
	lines := make([][]byte, n)
	for i := 0; i < n; i++ {
		lines[i] = []byte(fmt.Sprintf(`{"n":%d}`, i))
	}
	parallelResult := validateLinesParallel(lines)
	for i, line := range lines {
		want := quickAndFullyValidate(line)
		if parallelResult[i] != want {
			t.Errorf("line %d: parallel=%v sequential=%v", i, parallelResult[i], want)
		}
	}
}

func TestValidateLinesParallelRejectsEmptyLine(t *testing.T) {
	lines := [][]byte{[]byte(""), []byte(`{"a":1}`)}
	got := validateLinesParallel(lines)
	if got[0] != false || got[1] != true {
		t.Errorf("unexpected result: %+v", got)
	}
}
