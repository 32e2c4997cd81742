package main

import (
	"context"
	"testing"
	"time"

	"tradecore/internal/codec"
	"tradecore/internal/dispatch"
	"tradecore/internal/lookup"
	"tradecore/internal/message"
	"tradecore/internal/obs"
	"tradecore/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFeeder(t *testing.T, ev *dispatch.Events) *feeder {
	t.Helper()
	reg := lookup.NewRegistry()
	require.NoError(t, reg.Add(message.Board{Code: "TQBR", Exchange: "MOEX"}))
	require.NoError(t, reg.Add(message.Board{Code: "SPBFUT", Exchange: "MOEX"}))
	return &feeder{
		d:      dispatch.New(dispatch.Config{}, ev, nil),
		boards: reg,
		ids:    obs.NewIDGenerator(100),
		direct: true,
	}
}

func TestFeederSubscribesAndForwards(t *testing.T) {
	ev := dispatch.NewEvents()
	f := newFeeder(t, ev)
	ctx := context.Background()

	require.NoError(t, f.feed(ctx, &message.MarketDataRequest{
		TransactionFields: message.TransactionFields{TransactionID: 5},
		DataType:          message.DataTypeLevel1,
		IsSubscribe:       true,
	}, codec.Envelope{}))
	require.NoError(t, f.feed(ctx, &message.Level1Change{
		SubscriptionFields: message.SubscriptionFields{SubscriptionID: 5},
	}, codec.Envelope{}))

	rec := ev.Snapshot()
	require.Len(t, rec.Correlated, 1)
	assert.Equal(t, int64(5), rec.Correlated[0].Requests[0].TransactionID)
	assert.Equal(t, uint64(1), f.requests)
	assert.Equal(t, uint64(1), f.inbound)
}

func TestFeederAnswersBoardLookup(t *testing.T) {
	ev := dispatch.NewEvents()
	f := newFeeder(t, ev)

	req := &message.BoardLookupRequest{Criteria: message.BoardCriteria{Code: "tqbr"}}
	require.NoError(t, f.feed(context.Background(), req, codec.Envelope{}))
	assert.Equal(t, int64(101), req.GetTransactionID(), "missing transaction id is generated")

	rec := ev.Snapshot()
	require.Len(t, rec.Correlated, 1)
	board := rec.Correlated[0].Message.(*message.Board)
	assert.Equal(t, "TQBR", board.Code)
	require.Len(t, rec.Completions, 1)
	assert.Zero(t, f.d.Resolver().Live())
}

func TestFeederRejectedRequestIsNotFatal(t *testing.T) {
	f := newFeeder(t, dispatch.NewEvents())
	req := &message.MarketDataRequest{
		TransactionFields: message.TransactionFields{TransactionID: 7},
		DataType:          message.DataTypeLevel1,
		IsSubscribe:       true,
	}
	require.NoError(t, f.feed(context.Background(), req, codec.Envelope{}))
	require.NoError(t, f.feed(context.Background(), req, codec.Envelope{}))
	assert.Equal(t, uint64(1), f.d.Metrics().Snapshot().Get(obs.CounterRejected))
}

func TestFeederStopsOutsideWorkingTime(t *testing.T) {
	f := newFeeder(t, dispatch.NewEvents())
	window, err := schedule.ParseWindow("10:00-18:00")
	require.NoError(t, err)
	f.task = schedule.NewTask("replay", schedule.Weekdays(time.UTC, window), func() bool { return true })

	monday := time.Date(2025, 7, 7, 12, 0, 0, 0, time.UTC)
	env := codec.Envelope{RecvTime: monday.UnixNano()}
	l1 := &message.Level1Change{SubscriptionFields: message.SubscriptionFields{SubscriptionID: 1}}
	require.NoError(t, f.feed(context.Background(), l1, env))

	env.RecvTime = monday.Add(7 * time.Hour).UnixNano()
	assert.Equal(t, errOutOfSchedule, f.feed(context.Background(), l1, env))
}

func TestFeederQueued(t *testing.T) {
	ev := dispatch.NewEvents()
	f := newFeeder(t, ev)
	f.d = dispatch.New(dispatch.Config{Workers: 4, QueueCapacity: 64}, ev, nil)
	f.direct = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.d.Run(ctx) }()

	require.NoError(t, f.feed(ctx, &message.MarketDataRequest{
		TransactionFields: message.TransactionFields{TransactionID: 9},
		DataType:          message.DataTypeLevel1,
		IsSubscribe:       true,
	}, codec.Envelope{}))
	for seq := uint64(1); seq <= 10; seq++ {
		require.NoError(t, f.feed(ctx, &message.Level1Change{
			SubscriptionFields: message.SubscriptionFields{SubscriptionID: 9},
			SeqFields:          message.SeqFields{SeqNum: seq},
		}, codec.Envelope{}))
	}
	// the unsubscribe waits behind the data queued for subscription 9
	require.NoError(t, f.feed(ctx, &message.MarketDataRequest{
		TransactionFields: message.TransactionFields{TransactionID: 10},
		ResponseFields:    message.ResponseFields{OriginalTransactionID: 9},
		DataType:          message.DataTypeLevel1,
	}, codec.Envelope{}))
	require.NoError(t, f.feed(ctx, &message.Level1Change{
		SubscriptionFields: message.SubscriptionFields{SubscriptionID: 9},
		SeqFields:          message.SeqFields{SeqNum: 11},
	}, codec.Envelope{}))

	f.d.Close()
	require.NoError(t, <-done)

	rec := ev.Snapshot()
	assert.Len(t, rec.Correlated, 10)
	require.Len(t, rec.Completions, 1)
	require.Len(t, rec.Uncorrelated, 1, "data after the unsubscribe is late")
	assert.Equal(t, uint64(11), message.SeqNumOf(rec.Uncorrelated[0].Message))
	assert.Zero(t, f.d.Resolver().Live())
	assert.Zero(t, f.d.Tracker().Len())
}
