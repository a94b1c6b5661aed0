package oracle

import (
	"math"
	"sort"
	"sync"
	"time"
)

// sample is one completed oracle attempt: when it finished and how long
// the round trip took.
type sample struct {
	at  time.Time
	dur time.Duration
}

// StatsSnapshot aggregates the attempt latencies still inside the
// window, in milliseconds. The stats endpoint serves it as-is.
type StatsSnapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// Stats keeps a sliding window of oracle attempt latencies. The client
// records each attempt individually, so a stage that retried weighs in
// once per round trip; backoff sleeps between attempts never count.
type Stats struct {
	mu      sync.Mutex
	samples []sample
	window  time.Duration
}

func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{window: window}
}

// Record adds one attempt's round-trip time to the window. Negative
// durations (clock adjustments) count as zero.
func (s *Stats) Record(d time.Duration) {
	if d < 0 {
		d = 0
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(now)
	s.samples = append(s.samples, sample{at: now, dur: d})
}

// Snapshot summarizes the attempts still inside the window. Percentiles
// interpolate linearly between neighboring samples.
func (s *Stats) Snapshot() StatsSnapshot {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(now)
	if len(s.samples) == 0 {
		return StatsSnapshot{}
	}

	ms := make([]float64, len(s.samples))
	var sum float64
	for i, sm := range s.samples {
		v := float64(sm.dur.Milliseconds())
		ms[i] = v
		sum += v
	}
	sort.Float64s(ms)

	return StatsSnapshot{
		Count: len(ms),
		MinMs: int64(ms[0]),
		MaxMs: int64(ms[len(ms)-1]),
		AvgMs: sum / float64(len(ms)),
		P50Ms: percentile(ms, 50),
		P95Ms: percentile(ms, 95),
		P99Ms: percentile(ms, 99),
	}
}

// dropExpired cuts samples older than the window. Samples are appended
// in arrival order, so the expired ones form a prefix. Callers hold mu.
func (s *Stats) dropExpired(now time.Time) {
	cutoff := now.Add(-s.window)
	n := 0
	for n < len(s.samples) && s.samples[n].at.Before(cutoff) {
		n++
	}
	if n > 0 {
		s.samples = append(s.samples[:0], s.samples[n:]...)
	}
}

// percentile reads a rank off the sorted latencies, interpolating
// between the two nearest samples when the rank is fractional.
func percentile(sorted []float64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := pct / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		lo = 0
	}
	if hi >= len(sorted) {
		hi = len(sorted) - 1
	}
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}
