package sequence

import (
	"fmt"
	"sync"

	"tradecore/internal/shard"
)

// Status is the verdict for one observed sequence number.
type Status uint8

const (
	// StatusUntracked is returned for seq 0.
	StatusUntracked Status = iota
	StatusOk
	// StatusDuplicate is a re-delivered or out-of-order number; tracking does not move.
	StatusDuplicate
	// StatusGap means numbers were skipped; tracking advances past the gap.
	StatusGap
)

func (s Status) String() string {
	switch s {
	case StatusUntracked:
		return "untracked"
	case StatusOk:
		return "ok"
	case StatusDuplicate:
		return "duplicate"
	case StatusGap:
		return "gap"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Gap is an inclusive range of missing sequence numbers.
type Gap struct {
	SubscriptionID int64
	From           uint64
	To             uint64
}

// Len returns the number of missing sequence numbers.
func (g Gap) Len() uint64 {
	if g.To < g.From {
		return 0
	}
	return g.To - g.From + 1
}

func (g Gap) String() string {
	return fmt.Sprintf("subscription %d missing [%d, %d]", g.SubscriptionID, g.From, g.To)
}

// Result is the outcome of Track.
type Result struct {
	Status Status
	// Last is the highest number seen before this call.
	Last uint64
	// Gap is set when Status is StatusGap.
	Gap Gap
}

type part struct {
	mu   sync.Mutex
	last map[int64]uint64
}

// Tracker keeps the last sequence number per subscription.
//
// It only reports: gaps are never resynchronized here, the caller decides.
// Numbers of one subscription must be fed in delivery order.
type Tracker struct {
	parts *shard.Set[part]
}

// NewTracker creates a tracker with the given shard count, 0 for the default.
func NewTracker(shards int) *Tracker {
	return &Tracker{
		parts: shard.New(shards, func(p *part) { p.last = make(map[int64]uint64) }),
	}
}

// Track records seq for a subscription.
func (t *Tracker) Track(subscriptionID int64, seq uint64) Result {
	if seq == 0 {
		return Result{Status: StatusUntracked}
	}
	p := t.parts.For(subscriptionID)
	p.mu.Lock()
	defer p.mu.Unlock()

	last := p.last[subscriptionID]
	switch {
	case last == 0 || seq == last+1:
		p.last[subscriptionID] = seq
		return Result{Status: StatusOk, Last: last}
	case seq <= last:
		return Result{Status: StatusDuplicate, Last: last}
	default:
		p.last[subscriptionID] = seq
		return Result{
			Status: StatusGap,
			Last:   last,
			Gap:    Gap{SubscriptionID: subscriptionID, From: last + 1, To: seq - 1},
		}
	}
}

// Last returns the last tracked number, false when the subscription is not tracked.
func (t *Tracker) Last(subscriptionID int64) (uint64, bool) {
	p := t.parts.For(subscriptionID)
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.last[subscriptionID]
	return last, ok
}

// Reset handles a restarted subscription: the next number is a first observation.
func (t *Tracker) Reset(subscriptionID int64) {
	p := t.parts.For(subscriptionID)
	p.mu.Lock()
	p.last[subscriptionID] = 0
	p.mu.Unlock()
}

// Remove forgets a finished subscription.
func (t *Tracker) Remove(subscriptionID int64) {
	p := t.parts.For(subscriptionID)
	p.mu.Lock()
	delete(p.last, subscriptionID)
	p.mu.Unlock()
}

// Len returns the number of tracked subscriptions.
func (t *Tracker) Len() int {
	n := 0
	t.parts.Each(func(p *part) {
		p.mu.Lock()
		n += len(p.last)
		p.mu.Unlock()
	})
	return n
}
