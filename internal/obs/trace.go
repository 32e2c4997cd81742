package obs

import (
	"sync/atomic"
	"time"
)

// IDGenerator hands out unique, monotonically increasing transaction ids.
type IDGenerator struct {
	next int64
}

// NewIDGenerator returns a generator seeded with the given value.
// A zero seed uses the current time so ids differ across restarts.
func NewIDGenerator(seed int64) *IDGenerator {
	if seed == 0 {
		seed = time.Now().UTC().UnixNano()
	}
	return &IDGenerator{next: seed}
}

// Next returns the next transaction id. It never returns 0.
func (g *IDGenerator) Next() int64 {
	if g == nil {
		return 0
	}
	for {
		id := atomic.AddInt64(&g.next, 1)
		if id != 0 {
			return id
		}
	}
}
