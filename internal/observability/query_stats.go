// Package observability tracks query timings and predicate usage for the
// index benchmark.
package observability

import (
	"sort"
	"sync"
	"time"
)

// QueryStats records timing samples per benchmark phase and how often each
// column appeared in a predicate.
type QueryStats struct {
	mu            sync.RWMutex
	predicateFreq map[string]*ColumnStats
	samples       map[string][]time.Duration
}

// ColumnStats holds predicate statistics for a column.
type ColumnStats struct {
	Column    string
	Frequency int64
	LastSeen  time.Time
	Operators map[string]int // operator → count (e.g., "=" → 5, "LIKE" → 2)
}

// TimingSummary describes the samples recorded for one phase.
type TimingSummary struct {
	Phase  string
	Count  int
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	Median time.Duration
}

// NewQueryStats creates a new query statistics tracker.
func NewQueryStats() *QueryStats {
	return &QueryStats{
		predicateFreq: make(map[string]*ColumnStats),
		samples:       make(map[string][]time.Duration),
	}
}

// RecordPredicate records a predicate access for a column.
// This method is O(1) and thread-safe.
func (q *QueryStats) RecordPredicate(column, operator string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats, exists := q.predicateFreq[column]
	if !exists {
		stats = &ColumnStats{
			Column:    column,
			Operators: make(map[string]int),
		}
		q.predicateFreq[column] = stats
	}

	stats.Frequency++
	stats.LastSeen = time.Now()
	stats.Operators[operator]++
}

// RecordSample records one timed execution of the phase.
func (q *QueryStats) RecordSample(phase string, d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.samples[phase] = append(q.samples[phase], d)
}

// Samples returns a copy of the samples recorded for phase, in recording order.
func (q *QueryStats) Samples(phase string) []time.Duration {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]time.Duration(nil), q.samples[phase]...)
}

// Summary summarizes the samples of phase. The median of an even number of
// samples is the mean of the two middle ones. ok is false when nothing was
// recorded.
func (q *QueryStats) Summary(phase string) (TimingSummary, bool) {
	sorted := q.Samples(phase)
	if len(sorted) == 0 {
		return TimingSummary{Phase: phase}, false
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return TimingSummary{
		Phase:  phase,
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   total / time.Duration(n),
		Median: median,
	}, true
}

// GetTopPredicates returns the top N predicates by frequency.
// Returns a copy of the stats sorted by frequency (descending), ties by column.
func (q *QueryStats) GetTopPredicates(n int) []ColumnStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if n <= 0 || len(q.predicateFreq) == 0 {
		return []ColumnStats{}
	}

	stats := make([]ColumnStats, 0, len(q.predicateFreq))
	for _, s := range q.predicateFreq {
		// Deep copy so callers cannot mutate the tracker
		statsCopy := ColumnStats{
			Column:    s.Column,
			Frequency: s.Frequency,
			LastSeen:  s.LastSeen,
			Operators: make(map[string]int, len(s.Operators)),
		}
		for op, count := range s.Operators {
			statsCopy.Operators[op] = count
		}
		stats = append(stats, statsCopy)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].Column < stats[j].Column
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}
