package bus

import (
	"context"
	"testing"
	"time"

	"tradecore/internal/message"
	"tradecore/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqMsg(seq uint64) message.Message {
	return &message.Level1Change{SeqFields: message.SeqFields{SeqNum: seq}}
}

func TestQueueOrderAndClose(t *testing.T) {
	q := NewQueue[message.Message](8)
	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, q.TryPublish(seqMsg(seq)))
	}
	assert.Equal(t, 5, q.Len())
	q.Close()
	require.ErrorIs(t, q.TryPublish(seqMsg(6)), exception.ErrQueueClosed)

	var got []uint64
	q.Run(t.Context(), func(m message.Message) {
		got = append(got, message.SeqNumOf(m))
	})
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, got, "queued messages drain after close")
}

func TestQueueFull(t *testing.T) {
	q := NewQueue[message.Message](1)
	require.NoError(t, q.TryPublish(seqMsg(1)))
	require.ErrorIs(t, q.TryPublish(seqMsg(2)), exception.ErrQueueFull)
	assert.Equal(t, uint64(1), q.Dropped())

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.Publish(ctx, seqMsg(3)), context.DeadlineExceeded)
}

func TestQueueRunStopsOnContext(t *testing.T) {
	q := NewQueue[message.Message](1)
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		q.Run(ctx, func(message.Message) {})
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}
