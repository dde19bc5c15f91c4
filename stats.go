package streamconv

import "time"

// Timer measures elapsed wall-clock time for a single stage of the
// pipeline (parse/transform/write), grounded on original_source's
// crates/convert-buddy/src/timing.rs Timer.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() Timer {
	return Timer{start: time.Now()}
}

// Elapsed returns the duration since the timer was started.
func (t Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// Stats holds the running counters described in spec.md §6.1. All counters
// except CurrentPartialSize, which holds the latest push's value, are
// monotonically non-decreasing across Push calls (spec.md §8.1.5).
type Stats struct {
	BytesIn             uint64
	BytesOut            uint64
	ChunksIn            uint64
	RecordsProcessed    uint64
	ParseTimeNs         uint64
	TransformTimeNs     uint64
	WriteTimeNs         uint64
	MaxBufferSize       int
	CurrentPartialSize  int
}

// ThroughputMBPerSec derives throughput from the accumulated stage timings,
// matching original_source's stats.rs throughput_mb_per_sec getter.
func (s *Stats) ThroughputMBPerSec() float64 {
	totalSeconds := float64(s.ParseTimeNs+s.TransformTimeNs+s.WriteTimeNs) / 1e9
	if totalSeconds <= 0 {
		return 0
	}
	return (float64(s.BytesIn) / 1_048_576.0) / totalSeconds
}

func (s *Stats) recordChunk(n int) {
	s.BytesIn += uint64(n)
	s.ChunksIn++
}

func (s *Stats) recordOutput(n int) {
	s.BytesOut += uint64(n)
}

func (s *Stats) recordRecords(n int) {
	s.RecordsProcessed += uint64(n)
}

func (s *Stats) recordParseTime(d time.Duration) {
	s.ParseTimeNs += uint64(d.Nanoseconds())
}

func (s *Stats) recordTransformTime(d time.Duration) {
	s.TransformTimeNs += uint64(d.Nanoseconds())
}

func (s *Stats) recordWriteTime(d time.Duration) {
	s.WriteTimeNs += uint64(d.Nanoseconds())
}

func (s *Stats) updateBufferSize(size int) {
	s.CurrentPartialSize = size
	if size > s.MaxBufferSize {
		s.MaxBufferSize = size
	}
}
