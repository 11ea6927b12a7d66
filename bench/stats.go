package bench

import (
	"fmt"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/montanaflynn/stats"
)

// Stats accumulates latency and throughput samples for one operation
// kind. The runner keeps an interval instance that is swapped out on
// every report tick and a cumulative one that lives for the whole run.
type Stats struct {
	mu sync.Mutex

	requests   int64
	errors     int64
	writeBytes int64
	readBytes  int64
	latencies  []float64
}

func NewStats() *Stats {
	return &Stats{}
}

// Record adds one completed request. Latency is kept in microseconds.
func (s *Stats) Record(latency time.Duration, writeBytes, readBytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	s.writeBytes += int64(writeBytes)
	s.readBytes += int64(readBytes)
	s.latencies = append(s.latencies, float64(latency.Microseconds()))
}

func (s *Stats) RecordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	s.errors++
}

// Merge folds other into s. Used to fold an interval into the
// cumulative stats.
func (s *Stats) Merge(other *Stats) {
	other.mu.Lock()
	requests, errors := other.requests, other.errors
	writeBytes, readBytes := other.writeBytes, other.readBytes
	latencies := append([]float64(nil), other.latencies...)
	other.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests += requests
	s.errors += errors
	s.writeBytes += writeBytes
	s.readBytes += readBytes
	s.latencies = append(s.latencies, latencies...)
}

func (s *Stats) Requests() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *Stats) Errors() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors
}

// Report renders one line of throughput and latency percentiles over
// the elapsed window.
func (s *Stats) Report(tag string, elapsed time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seconds := elapsed.Seconds()
	if seconds <= 0 {
		seconds = 1
	}
	qps := float64(s.requests) / seconds
	rate := units.HumanSize(float64(s.writeBytes+s.readBytes) / seconds)

	p50, p95, p99 := percentiles(s.latencies)
	return fmt.Sprintf("%-10s req %8d err %4d qps %9.1f rate %9s/s lat(us) p50 %8.0f p95 %8.0f p99 %8.0f",
		tag, s.requests, s.errors, qps, rate, p50, p95, p99)
}

func percentiles(latencies []float64) (p50, p95, p99 float64) {
	if len(latencies) == 0 {
		return 0, 0, 0
	}
	p50, _ = stats.Percentile(latencies, 50)
	p95, _ = stats.Percentile(latencies, 95)
	p99, _ = stats.Percentile(latencies, 99)
	return p50, p95, p99
}
