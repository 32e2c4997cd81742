package orderlog

import (
	"sync"

	"tradecore/internal/message"
	"tradecore/internal/shard"
	"tradecore/pkg/exception"

	"github.com/yanun0323/errors"
)

// Entry is an order-state fact paired with the trade fact that filled it.
type Entry struct {
	SubscriptionID int64
	ID             message.ComplexID
	Order          message.OrderLogFact
	Trade          message.OrderLogFact
}

// Incomplete is a buffered half evicted before its counterpart arrived.
type Incomplete struct {
	SubscriptionID int64
	ID             message.ComplexID
	Side           message.FactSide
	Fact           message.OrderLogFact
}

type half struct {
	id    message.ComplexID
	order message.OrderLogFact
	// trades wait in arrival order, each pairs with one order half
	trades []message.OrderLogFact
}

func (h *half) empty() bool {
	return h.order == nil && len(h.trades) == 0
}

type part struct {
	mu     sync.Mutex
	halves map[int64]map[message.ComplexKey]*half
	// last reported order state per subscription and order, kept until flush
	states map[int64]map[message.ComplexKey]message.OrderState
}

// Builder pairs order and trade facts into order log entries.
//
// Pairing does not depend on arrival order: whichever half comes first waits
// for the other. Halves of one subscription live in one shard.
//
// Order facts must follow the order state machine per subscription; a fact
// that moves an order backwards or out of a terminal state is rejected with
// ErrOrderStateTransition and not buffered.
type Builder struct {
	parts *shard.Set[part]
}

// NewBuilder creates a builder with the given shard count, 0 for the default.
func NewBuilder(shards int) *Builder {
	return &Builder{
		parts: shard.New(shards, func(p *part) {
			p.halves = make(map[int64]map[message.ComplexKey]*half)
			p.states = make(map[int64]map[message.ComplexKey]message.OrderState)
		}),
	}
}

// Reconstruct buffers fact under its owning subscription and returns an entry
// when the counterpart half is already buffered.
func (b *Builder) Reconstruct(fact message.OrderLogFact) (Entry, bool, error) {
	return b.ReconstructFor(fact.GetSubscriptionID(), fact)
}

// ReconstructFor is Reconstruct for one explicit subscription of a fanned-in fact.
func (b *Builder) ReconstructFor(subscriptionID int64, fact message.OrderLogFact) (Entry, bool, error) {
	id := fact.GetComplexID()
	if subscriptionID == 0 || id.IsEmpty() {
		return Entry{}, false, errors.Wrapf(exception.ErrInvalidOrderLogFact, "subscription %d, id %q", subscriptionID, id)
	}
	side := fact.FactSide()
	if !side.IsAvailable() {
		return Entry{}, false, errors.Wrapf(exception.ErrUnsupportedMessage, "%s has no fact side", fact.GetKind())
	}

	key := id.Key()
	p := b.parts.For(subscriptionID)
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.advance(subscriptionID, key, fact); err != nil {
		return Entry{}, false, err
	}

	bySub := p.halves[subscriptionID]
	if bySub == nil {
		bySub = make(map[message.ComplexKey]*half)
		p.halves[subscriptionID] = bySub
	}
	h := bySub[key]
	if h == nil {
		h = &half{id: id}
		bySub[key] = h
	}

	var (
		entry Entry
		ok    bool
	)
	switch side {
	case message.FactSideOrder:
		if len(h.trades) != 0 {
			entry = Entry{SubscriptionID: subscriptionID, ID: h.id, Order: fact, Trade: h.trades[0]}
			h.trades[0] = nil
			h.trades = h.trades[1:]
			h.order = nil
			ok = true
		} else {
			h.order = fact
		}
	case message.FactSideTrade:
		if h.order != nil {
			entry = Entry{SubscriptionID: subscriptionID, ID: h.id, Order: h.order, Trade: fact}
			h.order = nil
			ok = true
		} else {
			h.trades = append(h.trades, fact)
		}
	}

	if h.empty() {
		delete(bySub, key)
		if len(bySub) == 0 {
			delete(p.halves, subscriptionID)
		}
	}
	return entry, ok, nil
}

// advance records the order state of fact, failing on a forbidden transition.
func (p *part) advance(subscriptionID int64, key message.ComplexKey, fact message.OrderLogFact) error {
	next, ok := message.OrderStateOf(fact)
	if !ok {
		return nil
	}
	bySub := p.states[subscriptionID]
	prev := bySub[key]
	if !prev.CanBecome(next) {
		return errors.Wrapf(exception.ErrOrderStateTransition, "subscription %d, id %s, %s -> %s", subscriptionID, key, prev, next)
	}
	if bySub == nil {
		bySub = make(map[message.ComplexKey]message.OrderState)
		p.states[subscriptionID] = bySub
	}
	bySub[key] = next
	return nil
}

// FlushIncomplete evicts every buffered half of a subscription and forgets
// its order states.
func (b *Builder) FlushIncomplete(subscriptionID int64) []Incomplete {
	p := b.parts.For(subscriptionID)
	p.mu.Lock()
	bySub := p.halves[subscriptionID]
	delete(p.halves, subscriptionID)
	delete(p.states, subscriptionID)
	p.mu.Unlock()

	if len(bySub) == 0 {
		return nil
	}
	out := make([]Incomplete, 0, len(bySub))
	for _, h := range bySub {
		if h.order != nil {
			out = append(out, Incomplete{SubscriptionID: subscriptionID, ID: h.id, Side: message.FactSideOrder, Fact: h.order})
		}
		for _, tr := range h.trades {
			out = append(out, Incomplete{SubscriptionID: subscriptionID, ID: h.id, Side: message.FactSideTrade, Fact: tr})
		}
	}
	return out
}

// Pending returns the number of buffered halves of a subscription.
func (b *Builder) Pending(subscriptionID int64) int {
	p := b.parts.For(subscriptionID)
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, h := range p.halves[subscriptionID] {
		if h.order != nil {
			n++
		}
		n += len(h.trades)
	}
	return n
}
