package correlation

import (
	"slices"
	"sync"
	"sync/atomic"

	"tradecore/internal/message"
	"tradecore/internal/shard"
	"tradecore/pkg/exception"

	"github.com/yanun0323/errors"
)

// RequestHandle is a point-in-time view of a tracked request.
type RequestHandle struct {
	TransactionID int64
	State         State
	Subscriptions []int64
	// Err is the terminal error of an errored request.
	Err error
}

// Completion describes a request that was just completed.
type Completion struct {
	Request RequestHandle
	// Released lists the subscriptions no other live request owns anymore.
	Released []int64
}

type request struct {
	mu    sync.Mutex
	id    int64
	state State
	subs  []int64
	err   error
}

func (req *request) handleLocked() RequestHandle {
	return RequestHandle{
		TransactionID: req.id,
		State:         req.state,
		Subscriptions: slices.Clone(req.subs),
		Err:           req.err,
	}
}

type binding struct {
	dataType message.DataType
	owners   map[int64]*request
}

type requestShard struct {
	mu sync.Mutex
	m  map[int64]*request
}

type bindingShard struct {
	mu sync.Mutex
	m  map[int64]*binding
}

// Resolver maps correlation ids carried by inbound messages back to the live
// requests that caused them.
//
// Requests and subscription bindings are kept in separate sharded tables.
// A request is always locked before a binding shard.
type Resolver struct {
	requests *shard.Set[requestShard]
	bindings *shard.Set[bindingShard]
	live     atomic.Int64
}

// NewResolver creates a resolver with the given shard count, 0 for the default.
func NewResolver(shards int) *Resolver {
	return &Resolver{
		requests: shard.New(shards, func(s *requestShard) { s.m = make(map[int64]*request) }),
		bindings: shard.New(shards, func(s *bindingShard) { s.m = make(map[int64]*binding) }),
	}
}

// Live returns the number of requests not yet completed.
func (r *Resolver) Live() int {
	return int(r.live.Load())
}

// Register records a newly issued request.
func (r *Resolver) Register(transactionID int64) error {
	if transactionID == 0 {
		return exception.ErrInvalidTransactionID
	}
	sh := r.requests.For(transactionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.m[transactionID]; ok {
		return errors.Wrapf(exception.ErrDuplicateTransaction, "transaction %d", transactionID)
	}
	sh.m[transactionID] = &request{id: transactionID, state: StatePending}
	r.live.Add(1)
	return nil
}

func (r *Resolver) lookup(transactionID int64) (*request, error) {
	sh := r.requests.For(transactionID)
	sh.mu.Lock()
	req, ok := sh.m[transactionID]
	sh.mu.Unlock()
	if !ok {
		return nil, errors.Wrapf(exception.ErrTransactionNotFound, "transaction %d", transactionID)
	}
	return req, nil
}

// Resolve looks up the live request a response correlates to.
func (r *Resolver) Resolve(originalTransactionID int64) (RequestHandle, error) {
	req, err := r.lookup(originalTransactionID)
	if err != nil {
		return RequestHandle{}, err
	}
	req.mu.Lock()
	defer req.mu.Unlock()
	if req.state.IsTerminal() {
		return RequestHandle{}, errors.Wrapf(exception.ErrTransactionNotFound, "transaction %d is %s", originalTransactionID, req.state)
	}
	return req.handleLocked(), nil
}

// AttachSubscription binds a subscription to its owning request.
//
// Several requests may own the same subscription when they share one feed,
// but all of them must agree on the data type. The first binding stays
// authoritative.
func (r *Resolver) AttachSubscription(transactionID, subscriptionID int64, dataType message.DataType) error {
	if subscriptionID == 0 {
		return exception.ErrInvalidSubscription
	}
	if dataType.IsZero() {
		return errors.Wrapf(exception.ErrInvalidSubscription, "subscription %d has no data type", subscriptionID)
	}
	req, err := r.lookup(transactionID)
	if err != nil {
		return err
	}

	req.mu.Lock()
	defer req.mu.Unlock()
	next, ok := transition(req.state, StateActive)
	if !ok {
		return errors.Wrapf(exception.ErrTransactionNotFound, "transaction %d is %s", transactionID, req.state)
	}

	bs := r.bindings.For(subscriptionID)
	bs.mu.Lock()
	b, exists := bs.m[subscriptionID]
	if exists && b.dataType != dataType {
		bs.mu.Unlock()
		return errors.Wrapf(exception.ErrDataTypeMismatch, "subscription %d bound to %s, got %s", subscriptionID, b.dataType, dataType)
	}
	if !exists {
		b = &binding{dataType: dataType, owners: make(map[int64]*request, 1)}
		bs.m[subscriptionID] = b
	}
	b.owners[transactionID] = req
	bs.mu.Unlock()

	if !slices.Contains(req.subs, subscriptionID) {
		req.subs = append(req.subs, subscriptionID)
	}
	req.state = next
	return nil
}

// DataTypeOf returns the classification a subscription is bound to.
func (r *Resolver) DataTypeOf(subscriptionID int64) (message.DataType, bool) {
	bs := r.bindings.For(subscriptionID)
	bs.mu.Lock()
	defer bs.mu.Unlock()
	b, ok := bs.m[subscriptionID]
	if !ok {
		return message.DataType{}, false
	}
	return b.dataType, true
}

// FanIn returns every live request interested in any of the subscriptions,
// without duplicates and in no particular order.
//
// The subscriptions of one physical message must share a classification;
// otherwise FanIn fails closed with ErrDataTypeMismatch.
func (r *Resolver) FanIn(subscriptionIDs []int64) ([]RequestHandle, error) {
	return r.FanInAs(subscriptionIDs, message.DataType{})
}

// FanInAs is FanIn that also requires every binding to match dataType.
// A zero dataType only checks that the bindings agree with each other.
func (r *Resolver) FanInAs(subscriptionIDs []int64, expect message.DataType) ([]RequestHandle, error) {
	var (
		reqs []*request
		seen = make(map[int64]struct{}, len(subscriptionIDs))
	)
	for _, id := range subscriptionIDs {
		if id == 0 {
			continue
		}
		bs := r.bindings.For(id)
		bs.mu.Lock()
		b, ok := bs.m[id]
		if !ok {
			bs.mu.Unlock()
			continue
		}
		if !expect.IsZero() && b.dataType != expect {
			bs.mu.Unlock()
			return nil, errors.Wrapf(exception.ErrDataTypeMismatch, "subscription %d bound to %s, got %s", id, b.dataType, expect)
		}
		expect = b.dataType
		for tid, req := range b.owners {
			if _, dup := seen[tid]; dup {
				continue
			}
			seen[tid] = struct{}{}
			reqs = append(reqs, req)
		}
		bs.mu.Unlock()
	}

	handles := make([]RequestHandle, 0, len(reqs))
	for _, req := range reqs {
		req.mu.Lock()
		if !req.state.IsTerminal() {
			handles = append(handles, req.handleLocked())
		}
		req.mu.Unlock()
	}
	if len(handles) == 0 {
		return nil, errors.Wrapf(exception.ErrTransactionNotFound, "subscriptions %v", subscriptionIDs)
	}
	return handles, nil
}

// ResolveMessage correlates m by capability: subscription ids first, then the
// original transaction id.
func (r *Resolver) ResolveMessage(m message.Message) ([]RequestHandle, error) {
	if ids := message.SubscriptionsOf(m); len(ids) != 0 {
		dt, _ := message.DataTypeOf(m)
		return r.FanInAs(ids, dt)
	}
	if id, ok := message.OriginalTransactionIDOf(m); ok && id != 0 {
		h, err := r.Resolve(id)
		if err != nil {
			return nil, err
		}
		return []RequestHandle{h}, nil
	}
	return nil, errors.Wrapf(exception.ErrUnsupportedMessage, "%s carries no correlation id", m.GetKind())
}

// MarkOnline moves a live request to StateOnline: its history is delivered
// and live data follows.
func (r *Resolver) MarkOnline(transactionID int64) (RequestHandle, error) {
	req, err := r.lookup(transactionID)
	if err != nil {
		return RequestHandle{}, err
	}
	req.mu.Lock()
	defer req.mu.Unlock()
	next, ok := transition(req.state, StateOnline)
	if !ok {
		return RequestHandle{}, errors.Wrapf(exception.ErrTransactionNotFound, "transaction %d is %s", transactionID, req.state)
	}
	req.state = next
	return req.handleLocked(), nil
}

// Complete marks a request terminal and releases its subscriptions.
//
// Complete is idempotent: only the call that performs the transition returns
// true, every other call returns false and no error.
func (r *Resolver) Complete(originalTransactionID int64, outcome Outcome) (Completion, bool) {
	req, ok := r.detach(originalTransactionID)
	if !ok {
		return Completion{}, false
	}
	return r.finish(req, outcome)
}

// detach removes a request from the request table. The id may be registered
// again right after.
func (r *Resolver) detach(transactionID int64) (*request, bool) {
	sh := r.requests.For(transactionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	req, ok := sh.m[transactionID]
	if ok {
		delete(sh.m, transactionID)
	}
	return req, ok
}

// finish moves a detached request to its terminal state and drops the
// bindings it still owns. A binding taken over by a newer request with the
// same id is left alone.
func (r *Resolver) finish(req *request, outcome Outcome) (Completion, bool) {
	req.mu.Lock()
	next, ok := transition(req.state, outcome.state())
	if !ok {
		req.mu.Unlock()
		return Completion{}, false
	}
	req.state = next
	req.err = outcome.Err
	done := Completion{Request: req.handleLocked()}
	req.mu.Unlock()
	r.live.Add(-1)

	for _, id := range done.Request.Subscriptions {
		bs := r.bindings.For(id)
		bs.mu.Lock()
		if b, ok := bs.m[id]; ok && b.owners[req.id] == req {
			delete(b.owners, req.id)
			if len(b.owners) == 0 {
				delete(bs.m, id)
				done.Released = append(done.Released, id)
			}
		}
		bs.mu.Unlock()
	}
	return done, true
}
