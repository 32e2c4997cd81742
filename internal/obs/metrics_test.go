package obs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.Inc(CounterMessages)
	m.Inc(CounterMessages)
	m.Add(CounterSeqMissing, 5)
	m.Add(CounterSeqGap, 0)
	m.Inc(counterCount)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.Get(CounterMessages))
	assert.Equal(t, uint64(5), snap.Get(CounterSeqMissing))
	assert.Zero(t, snap.Get(CounterSeqGap))
	assert.Len(t, snap.Counters, 2)
	assert.Equal(t, "seq_missing", CounterSeqMissing.String())
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(CounterMessages)
	m.ObserveHandle(time.Millisecond)
	m.ObserveFeed(time.Now(), time.Now())
	assert.Empty(t, m.Snapshot().Counters)
}

func TestLatencyStats(t *testing.T) {
	m := NewMetrics()
	m.ObserveHandle(2 * time.Millisecond)
	m.ObserveHandle(4 * time.Millisecond)
	m.ObserveHandle(-time.Millisecond)

	now := time.Now()
	m.ObserveFeed(now.Add(-time.Second), now)
	m.ObserveFeed(time.Time{}, now)

	snap := m.Snapshot()
	assert.Equal(t, LatencySnapshot{Count: 2, Min: 2 * time.Millisecond, Max: 4 * time.Millisecond, Avg: 3 * time.Millisecond}, snap.HandleLatency)
	assert.Equal(t, uint64(1), snap.FeedLatency.Count)
	assert.Equal(t, time.Second, snap.FeedLatency.Max)
}

func TestIDGeneratorUnique(t *testing.T) {
	g := NewIDGenerator(-3)

	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{})
		wg   sync.WaitGroup
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				id := g.Next()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 400)
	_, zero := seen[0]
	assert.False(t, zero, "0 is never issued")
}

func TestRuntimeMemory(t *testing.T) {
	var m RuntimeMemory
	m.Sample()
	m.Sample()
	line := m.String()
	assert.Contains(t, line, "heap alloc=")
	assert.Contains(t, line, "goroutines=")

	assert.Equal(t, "512 B", string(appendBytes(nil, 512)))
	assert.Equal(t, "64 KB", string(appendBytes(nil, 64<<10)))
	assert.Equal(t, "40 GB", string(appendBytes(nil, 40<<30)))
}
