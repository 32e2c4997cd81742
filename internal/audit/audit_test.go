package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"tradecore/internal/message"
	"tradecore/internal/orderlog"
	"tradecore/internal/sequence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type fakeWriter struct {
	mu          sync.Mutex
	gaps        []GapRecord
	incompletes []IncompleteRecord
	err         error
}

func (w *fakeWriter) SaveGaps(_ context.Context, gaps []GapRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil && len(gaps) != 0 {
		return w.err
	}
	w.gaps = append(w.gaps, gaps...)
	return nil
}

func (w *fakeWriter) SaveIncompletes(_ context.Context, incompletes []IncompleteRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil && len(incompletes) != 0 {
		return w.err
	}
	w.incompletes = append(w.incompletes, incompletes...)
	return nil
}

func (w *fakeWriter) counts() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.gaps), len(w.incompletes)
}

func incomplete(sub, id int64) orderlog.Incomplete {
	fact := &message.TradeFact{
		SubscriptionFields: message.SubscriptionFields{SubscriptionID: sub},
		SeqFields:          message.SeqFields{SeqNum: 9},
		OrderID:            message.ComplexID{ID: id},
	}
	return orderlog.Incomplete{SubscriptionID: sub, ID: fact.OrderID, Side: message.FactSideTrade, Fact: fact}
}

func TestRecords(t *testing.T) {
	at := time.Date(2025, 7, 7, 10, 0, 0, 0, time.UTC)

	gap := NewGapRecord(sequence.Gap{SubscriptionID: 3, From: 4, To: 6}, at)
	assert.Equal(t, GapRecord{SubscriptionID: 3, FromSeq: 4, ToSeq: 6, Missing: 3, DetectedAt: at}, gap)

	inc := NewIncompleteRecord(incomplete(3, 42), at)
	assert.Equal(t, "trade", inc.Side)
	assert.Equal(t, int64(42), inc.OrderID)
	assert.Equal(t, "trade_fact", inc.Kind)
	assert.Equal(t, uint64(9), inc.SeqNum)
}

func TestSinkFlushesOnShutdown(t *testing.T) {
	w := &fakeWriter{}
	s := NewSink(w, Config{BatchSize: 100, FlushInterval: time.Hour})

	s.OnGap(sequence.Gap{SubscriptionID: 1, From: 2, To: 2})
	s.OnIncomplete(incomplete(1, 7))
	s.OnIncomplete(incomplete(1, 8))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx)

	gaps, incompletes := w.counts()
	assert.Equal(t, 1, gaps)
	assert.Equal(t, 2, incompletes)
	assert.Zero(t, s.Dropped())
}

func TestSinkFlushesOnBatchSize(t *testing.T) {
	w := &fakeWriter{}
	s := NewSink(w, Config{BatchSize: 2, FlushInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	s.OnGap(sequence.Gap{SubscriptionID: 1, From: 2, To: 2})
	s.OnGap(sequence.Gap{SubscriptionID: 1, From: 5, To: 6})
	require.Eventually(t, func() bool {
		gaps, _ := w.counts()
		return gaps == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestSinkDropsWhenFull(t *testing.T) {
	w := &fakeWriter{}
	s := NewSink(w, Config{Buffer: 1})

	s.OnGap(sequence.Gap{SubscriptionID: 1, From: 1, To: 1})
	s.OnGap(sequence.Gap{SubscriptionID: 1, From: 3, To: 3})
	assert.Equal(t, uint64(1), s.Dropped())
}

func TestSinkWriteFailureIsNotFatal(t *testing.T) {
	w := &fakeWriter{err: errors.New("db down")}
	s := NewSink(w, Config{})
	s.OnGap(sequence.Gap{SubscriptionID: 1, From: 1, To: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx)
	assert.Equal(t, uint64(1), s.Failed())
}

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.Open("postgres://localhost:5432/tradecore?sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return db
}

func TestStoreSQL(t *testing.T) {
	db := dryRunDB(t)

	rec := NewGapRecord(sequence.Gap{SubscriptionID: 1, From: 2, To: 3}, time.Now())
	stmt := db.Create(&rec).Statement
	assert.Contains(t, stmt.SQL.String(), `INSERT INTO "sequence_gaps"`)
	assert.Contains(t, stmt.SQL.String(), `"subscription_id"`)

	inc := NewIncompleteRecord(incomplete(1, 5), time.Now())
	stmt = db.Create(&inc).Statement
	assert.Contains(t, stmt.SQL.String(), `INSERT INTO "incomplete_order_log"`)

	store := NewStore(db)
	require.NoError(t, store.SaveGaps(t.Context(), nil))
	require.NoError(t, store.SaveGaps(t.Context(), []GapRecord{rec}))
	require.NoError(t, store.SaveIncompletes(t.Context(), []IncompleteRecord{inc}))
}
