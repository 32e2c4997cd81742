package chaos

import (
	"math/rand"
	"slices"
	"time"

	"tradecore/internal/codec"
	"tradecore/internal/message"
	"tradecore/pkg/exception"

	"github.com/yanun0323/errors"
)

// Event is one captured message passing through the engine.
type Event struct {
	Message message.Message
	Env     codec.Envelope
}

// Config selects the feed faults to inject.
type Config struct {
	// Seed 0 picks one from the clock.
	Seed          int64
	DropRate      float64
	DuplicateRate float64
	// ReorderWindow is how many feed messages may be shuffled, 0 or 1 keeps order.
	ReorderWindow int
	MaxDelay      time.Duration
}

// IsZero reports whether the config injects nothing.
func (c Config) IsZero() bool {
	return c.DropRate == 0 && c.DuplicateRate == 0 && c.ReorderWindow <= 1 && c.MaxDelay == 0
}

func (c Config) Validate() error {
	switch {
	case c.DropRate < 0 || c.DropRate > 1:
		return errors.Wrapf(exception.ErrInvalidArgument, "chaos: drop rate %v not in [0, 1]", c.DropRate)
	case c.DuplicateRate < 0 || c.DuplicateRate > 1:
		return errors.Wrapf(exception.ErrInvalidArgument, "chaos: duplicate rate %v not in [0, 1]", c.DuplicateRate)
	case c.ReorderWindow < 0:
		return errors.Wrapf(exception.ErrInvalidArgument, "chaos: reorder window %d is negative", c.ReorderWindow)
	case c.MaxDelay < 0:
		return errors.Wrapf(exception.ErrInvalidArgument, "chaos: max delay %s is negative", c.MaxDelay)
	}
	return nil
}

// Stats counts the faults an engine injected.
type Stats struct {
	Passed     uint64
	Dropped    uint64
	Duplicated uint64
	Reordered  uint64
	Delayed    uint64
}

// Engine turns a clean capture into a lossy feed: subscription traffic is
// dropped, resent, shuffled and delayed, which shows up downstream as gaps,
// duplicates and late data.
//
// Requests and responses are never faulted. They first release the reorder
// window, so no feed message crosses a request boundary. The same seed
// replays the same faults.
type Engine struct {
	cfg    Config
	rng    *rand.Rand
	window []Event
	stats  Stats
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ReorderWindow = max(cfg.ReorderWindow, 1)
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &Engine{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}, nil
}

// Process feeds one event and returns the events to deliver now.
// A nil engine passes events through.
func (e *Engine) Process(ev Event) []Event {
	if e == nil {
		return []Event{ev}
	}
	if !isFeed(ev.Message) {
		out := e.release(nil)
		e.stats.Passed++
		return append(out, ev)
	}

	if e.chance(e.cfg.DropRate) {
		e.stats.Dropped++
		return nil
	}
	e.window = append(e.window, e.delay(ev))
	if len(e.window) < e.cfg.ReorderWindow {
		return nil
	}
	return e.emit(nil, e.take())
}

// Flush delivers whatever the reorder window still holds.
func (e *Engine) Flush() []Event {
	if e == nil {
		return nil
	}
	return e.release(nil)
}

// Stats returns the faults injected so far.
func (e *Engine) Stats() Stats {
	if e == nil {
		return Stats{}
	}
	return e.stats
}

// isFeed reports whether m is subscription traffic.
func isFeed(m message.Message) bool {
	return len(message.SubscriptionsOf(m)) != 0
}

func (e *Engine) chance(p float64) bool {
	return p > 0 && e.rng.Float64() < p
}

func (e *Engine) release(out []Event) []Event {
	for len(e.window) != 0 {
		out = e.emit(out, e.take())
	}
	return out
}

// take removes a random event from the window.
func (e *Engine) take() Event {
	idx := 0
	if len(e.window) > 1 {
		idx = e.rng.Intn(len(e.window))
	}
	if idx != 0 {
		e.stats.Reordered++
	}
	ev := e.window[idx]
	e.window = slices.Delete(e.window, idx, idx+1)
	return ev
}

// emit delivers ev, sometimes twice as a resend would.
func (e *Engine) emit(out []Event, ev Event) []Event {
	out = append(out, ev)
	e.stats.Passed++
	if e.chance(e.cfg.DuplicateRate) {
		out = append(out, ev)
		e.stats.Duplicated++
	}
	return out
}

// delay pushes the receive time back by up to MaxDelay. Without a receive
// time the server time is the base; the server time itself is untouched.
func (e *Engine) delay(ev Event) Event {
	if e.cfg.MaxDelay <= 0 {
		return ev
	}
	d := time.Duration(e.rng.Int63n(int64(e.cfg.MaxDelay) + 1))
	base := ev.Env.ReceivedAt()
	if st, ok := ev.Message.(message.ServerTimeMessage); ok && base.IsZero() {
		base = st.GetServerTime()
	}
	if d == 0 || base.IsZero() {
		return ev
	}
	ev.Env.RecvTime = base.Add(d).UnixNano()
	e.stats.Delayed++
	return ev
}
