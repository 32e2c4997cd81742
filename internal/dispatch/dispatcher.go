/*
Dispatch routes inbound adapter messages through the correlation core.

# Per message
 1. membership check of the subscription id set
 2. sequence tracking per subscription, duplicates stop here
 3. result signals complete their request and release its subscriptions
 4. everything else is correlated to the live requests it answers
 5. order and trade facts are paired into order log entries

# Sharded
  - subscription id, so one subscription is handled by one worker
  - a message naming several subscriptions is split, one delivery per subscription
  - requests travel on the lane of the subscription they open or end
*/
package dispatch

import (
	"context"
	"slices"
	"time"

	"tradecore/internal/bus"
	"tradecore/internal/correlation"
	"tradecore/internal/message"
	"tradecore/internal/obs"
	"tradecore/internal/orderlog"
	"tradecore/internal/sequence"
	"tradecore/internal/shard"
	"tradecore/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"
)

const _defaultQueueCapacity = 4096

type Config struct {
	// Workers is rounded up to a power of two, 0 means one worker.
	Workers       int
	QueueCapacity int
	// Shards sizes the resolver, tracker and builder tables, 0 for the default.
	Shards int
}

// delivery is one unit of work on a worker lane.
type delivery struct {
	msg message.Message
	// scope limits a split message to one of its subscriptions, 0 for all
	scope int64
	// request is applied with Subscribe instead of handled as inbound traffic
	request bool
}

type worker struct {
	queue *bus.Queue[delivery]
}

type Dispatcher struct {
	resolver *correlation.Resolver
	tracker  *sequence.Tracker
	builder  *orderlog.Builder
	sink     Sink
	metrics  *obs.Metrics
	workers  *shard.Set[worker]
	now      func() time.Time
}

// New creates a dispatcher. A nil sink discards every outcome and a nil
// metrics allocates a private one.
func New(cfg Config, sink Sink, metrics *obs.Metrics) *Dispatcher {
	if sink == nil {
		sink = NopSink{}
	}
	if metrics == nil {
		metrics = obs.NewMetrics()
	}
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = _defaultQueueCapacity
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		resolver: correlation.NewResolver(cfg.Shards),
		tracker:  sequence.NewTracker(cfg.Shards),
		builder:  orderlog.NewBuilder(cfg.Shards),
		sink:     sink,
		metrics:  metrics,
		workers:  shard.New(workers, func(w *worker) { w.queue = bus.NewQueue[delivery](capacity) }),
		now:      time.Now,
	}
}

func (d *Dispatcher) Resolver() *correlation.Resolver { return d.resolver }

func (d *Dispatcher) Tracker() *sequence.Tracker { return d.tracker }

func (d *Dispatcher) Builder() *orderlog.Builder { return d.builder }

func (d *Dispatcher) Metrics() *obs.Metrics { return d.metrics }

// Subscribe registers an outbound request and binds the subscription it opens.
// The subscription id of a request is its own transaction id.
//
// A SubscriptionRequest with GetIsSubscribe false is an unsubscribe: it
// finishes the request its OriginalTransactionID points at.
func (d *Dispatcher) Subscribe(req message.TransactionIDMessage) error {
	err := d.subscribe(req)
	if err != nil {
		d.metrics.Inc(obs.CounterRejected)
	}
	return err
}

func (d *Dispatcher) subscribe(req message.TransactionIDMessage) error {
	if sr, ok := req.(message.SubscriptionRequest); ok && !sr.GetIsSubscribe() {
		target, _ := message.OriginalTransactionIDOf(req)
		if target == 0 {
			return errors.Wrapf(exception.ErrInvalidArgument, "unsubscribe %d names no subscription", req.GetTransactionID())
		}
		if !d.Unsubscribe(target) {
			return errors.Wrapf(exception.ErrTransactionNotFound, "transaction %d", target)
		}
		return nil
	}

	tid := req.GetTransactionID()
	if err := d.resolver.Register(tid); err != nil {
		return errors.Wrap(err, "register")
	}
	dt, ok := message.DataTypeOf(req)
	if !ok || dt.IsZero() {
		return nil
	}
	if err := d.resolver.AttachSubscription(tid, tid, dt); err != nil {
		d.complete(tid, correlation.Errored(err))
		return errors.Wrap(err, "attach subscription")
	}
	// a reused id starts a new stream
	d.tracker.Reset(tid)
	return nil
}

// Unsubscribe finishes a live request, false when it is not live.
func (d *Dispatcher) Unsubscribe(transactionID int64) bool {
	return d.complete(transactionID, correlation.Finished())
}

// Restart makes the next sequence number of a restarted subscription a first observation.
func (d *Dispatcher) Restart(subscriptionID int64) {
	d.tracker.Reset(subscriptionID)
}

// Handle processes one message synchronously.
//
// Messages of one subscription must be handled in delivery order; different
// subscriptions may be handled concurrently.
func (d *Dispatcher) Handle(m message.Message) {
	d.handle(m, 0)
}

// handle processes m for every subscription it names, or only for scope when
// scope is set. Of the deliveries of a split message, the one of its first
// subscription counts the message and passes it to OnRaw.
func (d *Dispatcher) handle(m message.Message, scope int64) {
	subs := message.SubscriptionsOf(m)
	primary := scope == 0 || scope == subs[0]
	if scope != 0 {
		subs = []int64{scope}
	}

	start := d.now()
	defer func() { d.metrics.ObserveHandle(d.now().Sub(start)) }()
	if primary {
		d.metrics.Inc(obs.CounterMessages)
		if st, ok := m.(message.ServerTimeMessage); ok {
			d.metrics.ObserveFeed(st.GetServerTime(), start)
		}
	}

	if err := message.ValidateMembership(m); err != nil {
		d.metrics.Inc(obs.CounterMembershipViolation)
		logs.Warnf("drop %s, err: %+v", m.GetKind(), err)
		d.sink.OnUncorrelated(m, err)
		d.sink.OnRaw(m)
		return
	}

	subs, fresh := d.track(m, subs)
	if !fresh {
		if scope != 0 && primary {
			d.sink.OnRaw(m)
		}
		return
	}

	if m.GetKind() == message.KindSubscriptionOnline {
		d.online(m)
	}

	if res, ok := message.ResultOf(m); ok {
		outcome := correlation.Finished()
		if !res.IsFinished() {
			outcome = correlation.Errored(res.Err)
		}
		if !d.complete(res.OriginalTransactionID, outcome) {
			logs.Debugf("%s for transaction %d which is not live", m.GetKind(), res.OriginalTransactionID)
		}
		if primary {
			d.sink.OnRaw(m)
		}
		return
	}

	requests, err := d.correlate(m, subs)
	switch {
	case err == nil:
		d.metrics.Inc(obs.CounterCorrelated)
		d.sink.OnCorrelated(m, requests)
		if fact, ok := m.(message.OrderLogFact); ok {
			d.reconstruct(fact, subs, requests)
		}
	case exception.IsNotFound(err):
		d.metrics.Inc(obs.CounterNotFound)
		logs.Warnf("uncorrelated %s, err: %+v", m.GetKind(), err)
		d.sink.OnUncorrelated(m, err)
	case exception.IsDataTypeMismatch(err):
		d.metrics.Inc(obs.CounterDataTypeMismatch)
		logs.Warnf("uncorrelated %s, err: %+v", m.GetKind(), err)
		d.sink.OnUncorrelated(m, err)
	default:
		// no correlation id at all, e.g. a system notice
		logs.Debugf("pass %s, err: %+v", m.GetKind(), err)
	}
	if primary {
		d.sink.OnRaw(m)
	}
}

// online moves the request a SubscriptionOnline answers to the online state.
func (d *Dispatcher) online(m message.Message) {
	tid, ok := message.OriginalTransactionIDOf(m)
	if !ok || tid == 0 {
		return
	}
	if _, err := d.resolver.MarkOnline(tid); err != nil {
		logs.Debugf("%s for transaction %d, err: %+v", m.GetKind(), tid, err)
	}
}

// track feeds the sequence number of m to each of subs that is bound to a
// live request. It returns the subscriptions that saw m for the first time
// and false when none did. Unbound subscriptions are left to correlation,
// so late data never recreates tracking state.
func (d *Dispatcher) track(m message.Message, subs []int64) ([]int64, bool) {
	seq := message.SeqNumOf(m)
	if seq == 0 || len(subs) == 0 {
		return subs, true
	}

	fresh := make([]int64, 0, len(subs))
	tracked := false
	for _, sub := range subs {
		if _, bound := d.resolver.DataTypeOf(sub); !bound {
			continue
		}
		tracked = true
		res := d.tracker.Track(sub, seq)
		switch res.Status {
		case sequence.StatusDuplicate:
			d.metrics.Inc(obs.CounterSeqDuplicate)
			d.sink.OnDuplicate(sub, seq, m)
			continue
		case sequence.StatusGap:
			d.metrics.Inc(obs.CounterSeqGap)
			d.metrics.Add(obs.CounterSeqMissing, res.Gap.Len())
			logs.Infof("sequence gap, %s", res.Gap)
			d.sink.OnGap(res.Gap)
		}
		fresh = append(fresh, sub)
	}
	if !tracked {
		return subs, true
	}
	return fresh, len(fresh) != 0
}

func (d *Dispatcher) correlate(m message.Message, subs []int64) ([]correlation.RequestHandle, error) {
	if len(subs) == 0 {
		return d.resolver.ResolveMessage(m)
	}
	dt, _ := message.DataTypeOf(m)
	return d.resolver.FanInAs(subs, dt)
}

// reconstruct pairs fact once per live subscription it belongs to. A fact
// with no subscription id is keyed by the request it answers.
func (d *Dispatcher) reconstruct(fact message.OrderLogFact, subs []int64, requests []correlation.RequestHandle) {
	keys := make([]int64, 0, len(subs))
	for _, req := range requests {
		if len(subs) == 0 {
			keys = append(keys, req.TransactionID)
			continue
		}
		for _, sub := range req.Subscriptions {
			if slices.Contains(subs, sub) && !slices.Contains(keys, sub) {
				keys = append(keys, sub)
			}
		}
	}
	for _, sub := range keys {
		entry, ok, err := d.builder.ReconstructFor(sub, fact)
		if err != nil {
			if exception.IsOrderStateTransition(err) {
				d.metrics.Inc(obs.CounterOrderStateInvalid)
			}
			logs.Warnf("reconstruct %s, err: %+v", fact.GetKind(), err)
			continue
		}
		if ok {
			d.metrics.Inc(obs.CounterEntries)
			d.sink.OnEntry(entry)
		}
	}
}

// complete finishes a request once and drops the per-subscription state it
// was the last owner of.
func (d *Dispatcher) complete(transactionID int64, outcome correlation.Outcome) bool {
	done, ok := d.resolver.Complete(transactionID, outcome)
	if !ok {
		return false
	}
	d.metrics.Inc(obs.CounterCompleted)
	if done.Request.Err != nil {
		logs.Warnf("request %d failed, err: %+v", transactionID, done.Request.Err)
	}

	flush := done.Released
	if !slices.Contains(done.Request.Subscriptions, transactionID) {
		flush = append(slices.Clone(flush), transactionID)
	}
	for _, sub := range flush {
		for _, inc := range d.builder.FlushIncomplete(sub) {
			d.metrics.Inc(obs.CounterIncomplete)
			logs.Warnf("incomplete order log %s half, subscription %d, id %s", inc.Side, inc.SubscriptionID, inc.ID)
			d.sink.OnIncomplete(inc)
		}
		d.tracker.Remove(sub)
	}
	d.sink.OnCompleted(done)
	return true
}

// Enqueue hands m to the workers owning its subscriptions without blocking.
// A split message may be partly queued when a queue is full.
func (d *Dispatcher) Enqueue(m message.Message) error {
	for _, dl := range d.split(m) {
		err := d.lane(dl).TryPublish(dl)
		if err == exception.ErrQueueFull {
			d.metrics.Inc(obs.CounterQueueDrops)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Publish is Enqueue that waits for room until ctx is done.
func (d *Dispatcher) Publish(ctx context.Context, m message.Message) error {
	for _, dl := range d.split(m) {
		if err := d.lane(dl).Publish(ctx, dl); err != nil {
			return err
		}
	}
	return nil
}

// Submit queues Subscribe behind the traffic already queued for the
// subscription req opens or ends. Rejections are logged and counted.
func (d *Dispatcher) Submit(ctx context.Context, req message.TransactionIDMessage) error {
	dl := delivery{msg: req, request: true}
	return d.lane(dl).Publish(ctx, dl)
}

// Run drains every worker queue until ctx is done or Close was called and the
// queues are empty.
func (d *Dispatcher) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	d.workers.Each(func(w *worker) {
		eg.Go(func() error {
			w.queue.Run(ctx, d.process)
			return nil
		})
	})
	return eg.Wait()
}

func (d *Dispatcher) process(dl delivery) {
	if !dl.request {
		d.handle(dl.msg, dl.scope)
		return
	}
	req := dl.msg.(message.TransactionIDMessage)
	if err := d.Subscribe(req); err != nil {
		logs.Warnf("request %s %d rejected, err: %+v", req.GetKind(), req.GetTransactionID(), err)
	}
}

// split turns m into worker deliveries. With several workers a message naming
// several subscriptions becomes one delivery per subscription, so each
// subscription is still seen by a single worker in delivery order.
func (d *Dispatcher) split(m message.Message) []delivery {
	subs := message.SubscriptionsOf(m)
	if d.workers.Len() == 1 || len(subs) < 2 || message.ValidateMembership(m) != nil {
		return []delivery{{msg: m}}
	}
	out := make([]delivery, len(subs))
	for i, sub := range subs {
		out[i] = delivery{msg: m, scope: sub}
	}
	return out
}

func (d *Dispatcher) lane(dl delivery) *bus.Queue[delivery] {
	key := dl.scope
	switch {
	case dl.request:
		key = requestKey(dl.msg.(message.TransactionIDMessage))
	case key == 0:
		key = routeKey(dl.msg)
	}
	return d.workers.For(key).queue
}

// Close stops accepting messages. Run returns once queued messages are handled.
func (d *Dispatcher) Close() {
	d.workers.Each(func(w *worker) { w.queue.Close() })
}

// Pending returns the number of queued messages over all workers.
func (d *Dispatcher) Pending() int {
	n := 0
	d.workers.Each(func(w *worker) { n += w.queue.Len() })
	return n
}

// requestKey is the subscription a request opens, or the one an unsubscribe ends.
func requestKey(req message.TransactionIDMessage) int64 {
	if sr, ok := req.(message.SubscriptionRequest); ok && !sr.GetIsSubscribe() {
		if id, ok := message.OriginalTransactionIDOf(req); ok && id != 0 {
			return id
		}
	}
	return req.GetTransactionID()
}

// routeKey picks the id every message of one request stream shares: the
// subscription, else the request it answers, else its own transaction.
func routeKey(m message.Message) int64 {
	if subs := message.SubscriptionsOf(m); len(subs) != 0 {
		return subs[0]
	}
	if id, ok := message.OriginalTransactionIDOf(m); ok && id != 0 {
		return id
	}
	if id, ok := message.TransactionIDOf(m); ok {
		return id
	}
	return 0
}
