package obs

import (
	"sync/atomic"
	"time"
)

// Counter names one dispatch outcome.
type Counter uint8

const (
	CounterMessages Counter = iota
	CounterCorrelated
	CounterNotFound
	CounterDataTypeMismatch
	CounterMembershipViolation
	CounterSeqDuplicate
	CounterSeqGap
	CounterSeqMissing
	CounterEntries
	CounterIncomplete
	CounterCompleted
	CounterRejected
	CounterOrderStateInvalid
	CounterQueueDrops
	counterCount
)

var counterNames = [counterCount]string{
	CounterMessages:            "messages",
	CounterCorrelated:          "correlated",
	CounterNotFound:            "not_found",
	CounterDataTypeMismatch:    "data_type_mismatch",
	CounterMembershipViolation: "membership_violation",
	CounterSeqDuplicate:        "seq_duplicate",
	CounterSeqGap:              "seq_gap",
	CounterSeqMissing:          "seq_missing",
	CounterEntries:             "order_log_entries",
	CounterIncomplete:          "order_log_incomplete",
	CounterCompleted:           "requests_completed",
	CounterRejected:            "requests_rejected",
	CounterOrderStateInvalid:   "order_state_invalid",
	CounterQueueDrops:          "queue_drops",
}

func (c Counter) String() string {
	if c >= counterCount {
		return "unknown"
	}
	return counterNames[c]
}

// Metrics collects lightweight counters and latency stats.
type Metrics struct {
	counters [counterCount]uint64

	handleLatency LatencyStats
	feedLatency   LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Counters      map[Counter]uint64
	HandleLatency LatencySnapshot
	FeedLatency   LatencySnapshot
}

// Get returns a counter value from the snapshot.
func (s Snapshot) Get(c Counter) uint64 {
	return s.Counters[c]
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc increments a counter.
func (m *Metrics) Inc(c Counter) {
	m.Add(c, 1)
}

// Add adds n to a counter.
func (m *Metrics) Add(c Counter, n uint64) {
	if m == nil || c >= counterCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[c], n)
}

// ObserveHandle measures the time spent handling one message.
func (m *Metrics) ObserveHandle(d time.Duration) {
	if m == nil {
		return
	}
	m.handleLatency.Observe(d)
}

// ObserveFeed measures the delay between server time and local processing.
func (m *Metrics) ObserveFeed(serverTime, now time.Time) {
	if m == nil || serverTime.IsZero() {
		return
	}
	m.feedLatency.Observe(now.Sub(serverTime))
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	counters := make(map[Counter]uint64)
	for i := range m.counters {
		if v := atomic.LoadUint64(&m.counters[i]); v > 0 {
			counters[Counter(i)] = v
		}
	}
	return Snapshot{
		Counters:      counters,
		HandleLatency: m.handleLatency.Snapshot(),
		FeedLatency:   m.feedLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
