package dispatch

import (
	"slices"
	"sync"

	"tradecore/internal/correlation"
	"tradecore/internal/message"
	"tradecore/internal/orderlog"
	"tradecore/internal/sequence"
)

// Sink receives the outcome of every handled message.
//
// Callbacks run on dispatcher workers, several at a time, and must not block.
type Sink interface {
	// OnRaw receives every message that was not dropped as a duplicate.
	OnRaw(m message.Message)
	OnCorrelated(m message.Message, requests []correlation.RequestHandle)
	// OnUncorrelated receives messages that could not be routed to a live request.
	OnUncorrelated(m message.Message, err error)
	OnGap(gap sequence.Gap)
	OnDuplicate(subscriptionID int64, seq uint64, m message.Message)
	OnEntry(entry orderlog.Entry)
	OnIncomplete(incomplete orderlog.Incomplete)
	OnCompleted(done correlation.Completion)
}

// NopSink ignores everything. Embed it to implement a part of Sink.
type NopSink struct{}

func (NopSink) OnRaw(message.Message) {}
func (NopSink) OnCorrelated(message.Message, []correlation.RequestHandle) {}
func (NopSink) OnUncorrelated(message.Message, error) {}
func (NopSink) OnGap(sequence.Gap) {}
func (NopSink) OnDuplicate(int64, uint64, message.Message) {}
func (NopSink) OnEntry(orderlog.Entry) {}
func (NopSink) OnIncomplete(orderlog.Incomplete) {}
func (NopSink) OnCompleted(correlation.Completion) {}

// MultiSink fans every callback out to each sink in order.
type MultiSink []Sink

func (ms MultiSink) OnRaw(m message.Message) {
	for _, s := range ms {
		s.OnRaw(m)
	}
}

func (ms MultiSink) OnCorrelated(m message.Message, requests []correlation.RequestHandle) {
	for _, s := range ms {
		s.OnCorrelated(m, requests)
	}
}

func (ms MultiSink) OnUncorrelated(m message.Message, err error) {
	for _, s := range ms {
		s.OnUncorrelated(m, err)
	}
}

func (ms MultiSink) OnGap(gap sequence.Gap) {
	for _, s := range ms {
		s.OnGap(gap)
	}
}

func (ms MultiSink) OnDuplicate(subscriptionID int64, seq uint64, m message.Message) {
	for _, s := range ms {
		s.OnDuplicate(subscriptionID, seq, m)
	}
}

func (ms MultiSink) OnEntry(entry orderlog.Entry) {
	for _, s := range ms {
		s.OnEntry(entry)
	}
}

func (ms MultiSink) OnIncomplete(incomplete orderlog.Incomplete) {
	for _, s := range ms {
		s.OnIncomplete(incomplete)
	}
}

func (ms MultiSink) OnCompleted(done correlation.Completion) {
	for _, s := range ms {
		s.OnCompleted(done)
	}
}

// Correlated is one recorded OnCorrelated call.
type Correlated struct {
	Message  message.Message
	Requests []correlation.RequestHandle
}

// Uncorrelated is one recorded OnUncorrelated call.
type Uncorrelated struct {
	Message message.Message
	Err     error
}

// Duplicate is one recorded OnDuplicate call.
type Duplicate struct {
	SubscriptionID int64
	SeqNum         uint64
	Message        message.Message
}

// Recorded is a copy of everything an Events sink has seen.
type Recorded struct {
	Raw          []message.Message
	Correlated   []Correlated
	Uncorrelated []Uncorrelated
	Gaps         []sequence.Gap
	Duplicates   []Duplicate
	Entries      []orderlog.Entry
	Incompletes  []orderlog.Incomplete
	Completions  []correlation.Completion
}

// Events is a Sink that records every callback.
type Events struct {
	mu  sync.Mutex
	rec Recorded
}

func NewEvents() *Events {
	return &Events{}
}

func (e *Events) OnRaw(m message.Message) {
	e.mu.Lock()
	e.rec.Raw = append(e.rec.Raw, m)
	e.mu.Unlock()
}

func (e *Events) OnCorrelated(m message.Message, requests []correlation.RequestHandle) {
	e.mu.Lock()
	e.rec.Correlated = append(e.rec.Correlated, Correlated{Message: m, Requests: requests})
	e.mu.Unlock()
}

func (e *Events) OnUncorrelated(m message.Message, err error) {
	e.mu.Lock()
	e.rec.Uncorrelated = append(e.rec.Uncorrelated, Uncorrelated{Message: m, Err: err})
	e.mu.Unlock()
}

func (e *Events) OnGap(gap sequence.Gap) {
	e.mu.Lock()
	e.rec.Gaps = append(e.rec.Gaps, gap)
	e.mu.Unlock()
}

func (e *Events) OnDuplicate(subscriptionID int64, seq uint64, m message.Message) {
	e.mu.Lock()
	e.rec.Duplicates = append(e.rec.Duplicates, Duplicate{SubscriptionID: subscriptionID, SeqNum: seq, Message: m})
	e.mu.Unlock()
}

func (e *Events) OnEntry(entry orderlog.Entry) {
	e.mu.Lock()
	e.rec.Entries = append(e.rec.Entries, entry)
	e.mu.Unlock()
}

func (e *Events) OnIncomplete(incomplete orderlog.Incomplete) {
	e.mu.Lock()
	e.rec.Incompletes = append(e.rec.Incompletes, incomplete)
	e.mu.Unlock()
}

func (e *Events) OnCompleted(done correlation.Completion) {
	e.mu.Lock()
	e.rec.Completions = append(e.rec.Completions, done)
	e.mu.Unlock()
}

// Snapshot returns a copy of the recorded callbacks.
func (e *Events) Snapshot() Recorded {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Recorded{
		Raw:          slices.Clone(e.rec.Raw),
		Correlated:   slices.Clone(e.rec.Correlated),
		Uncorrelated: slices.Clone(e.rec.Uncorrelated),
		Gaps:         slices.Clone(e.rec.Gaps),
		Duplicates:   slices.Clone(e.rec.Duplicates),
		Entries:      slices.Clone(e.rec.Entries),
		Incompletes:  slices.Clone(e.rec.Incompletes),
		Completions:  slices.Clone(e.rec.Completions),
	}
}
