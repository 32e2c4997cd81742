package main

import (
	"context"
	"time"

	"tradecore/internal/codec"
	"tradecore/internal/dispatch"
	"tradecore/internal/lookup"
	"tradecore/internal/message"
	"tradecore/internal/obs"
	"tradecore/internal/schedule"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

var errOutOfSchedule = errors.New("replay: outside working time")

type transactionSetter interface {
	SetTransactionID(id int64)
}

// feeder turns captured lines into dispatcher calls. Board lookups are
// answered from boards, everything that is not a request is inbound traffic.
// Queued requests travel behind the traffic of their subscription, so an
// unsubscribe never overtakes data replayed before it.
type feeder struct {
	d      *dispatch.Dispatcher
	boards lookup.Provider
	ids    *obs.IDGenerator
	task   *schedule.Task
	// direct handles inbound traffic on the caller goroutine instead of the worker queues.
	direct bool

	requests uint64
	inbound  uint64
}

func (f *feeder) feed(ctx context.Context, m message.Message, env codec.Envelope) error {
	if f.task != nil {
		at := env.ReceivedAt()
		if at.IsZero() {
			at = time.Now()
		}
		if f.task.ShouldStop(at) {
			logs.Infof("%s reached the end of working time at %s", f.task.Name, at.Format(time.RFC3339))
			return errOutOfSchedule
		}
	}

	req, ok := m.(message.TransactionIDMessage)
	if !ok {
		return f.forward(ctx, m)
	}

	if req.GetTransactionID() == 0 {
		if ts, ok := m.(transactionSetter); ok {
			ts.SetTransactionID(f.ids.Next())
		}
	}
	f.requests++
	if f.direct {
		if err := f.d.Subscribe(req); err != nil {
			logs.Warnf("request %s %d rejected, err: %+v", m.GetKind(), req.GetTransactionID(), err)
			return nil
		}
	} else if err := f.d.Submit(ctx, req); err != nil {
		return err
	}

	if lr, ok := m.(*message.BoardLookupRequest); ok && f.boards != nil {
		for _, resp := range lookup.Respond(f.boards, lr) {
			if err := f.forward(ctx, resp); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *feeder) forward(ctx context.Context, m message.Message) error {
	f.inbound++
	if f.direct {
		f.d.Handle(m)
		return nil
	}
	return f.d.Publish(ctx, m)
}
