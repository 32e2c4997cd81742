package recorder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tradecore/internal/codec"
	"tradecore/internal/message"
	"tradecore/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	slept []time.Duration
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	return nil
}

func level1(sub int64, seq uint64, at time.Time) *message.Level1Change {
	return &message.Level1Change{
		SubscriptionFields: message.SubscriptionFields{SubscriptionID: sub},
		SeqFields:          message.SeqFields{SeqNum: seq},
		ServerTimeFields:   message.ServerTimeFields{ServerTime: at},
	}
}

func writeCapture(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))
}

func TestReader(t *testing.T) {
	r := NewReader(strings.NewReader(strings.Join([]string{
		"# capture",
		"",
		`{"kind":"subscription_online","body":{"originalTransactionId":1}}`,
		`{"kind":"level1_change","body":{"subscriptionId":1,"seqNum":1}}`,
		`broken`,
	}, "\n")), 0)

	m, _, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, message.KindSubscriptionOnline, m.GetKind())
	assert.Equal(t, 3, r.Line())

	m, _, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, message.KindLevel1Change, m.GetKind())

	_, _, err = r.Next()
	require.ErrorIs(t, err, exception.ErrMalformedCapture)
	assert.Contains(t, err.Error(), "line 5")

	_, _, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestWriterThenPlayback(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: dir, QueueSize: 16})
	require.NoError(t, err)
	require.ErrorIs(t, w.TryAppend(level1(1, 1, time.Time{}), time.Now()), ErrNotStarted)

	require.NoError(t, w.Start(context.Background()))
	require.ErrorIs(t, w.Start(context.Background()), ErrAlreadyStarted)
	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, w.TryAppend(level1(1, seq, time.Time{}), time.Now()))
	}
	require.NoError(t, w.Close())
	assert.Equal(t, uint64(5), w.Written())
	require.ErrorIs(t, w.TryAppend(level1(1, 6, time.Time{}), time.Now()), ErrClosed)

	p, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)

	var seqs []uint64
	require.NoError(t, p.Run(context.Background(), func(m message.Message, env codec.Envelope) error {
		seqs = append(seqs, message.SeqNumOf(m))
		assert.NotZero(t, env.RecvTime)
		return nil
	}))
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, seqs)
}

func TestWriterRotates(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: dir, QueueSize: 16, SegmentMaxBytes: 1})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, w.TryAppend(level1(1, seq, time.Time{}), time.Time{}))
	}
	require.NoError(t, w.Close())

	files, err := filepath.Glob(filepath.Join(dir, defaultFilePrefix+"-*"+fileSuffix))
	require.NoError(t, err)
	assert.Len(t, files, 3, "one line per segment")
	assert.Equal(t, files, w.Segments(), "opened in name order")
	assert.Zero(t, w.Skipped())
}

func TestWriterCloseWithoutStart(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: filepath.Join(dir, "nested")})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.ErrorIs(t, w.TryAppend(level1(1, 1, time.Time{}), time.Time{}), ErrClosed)
	require.ErrorIs(t, w.TryAppend(nil, time.Time{}), exception.ErrNilInstance)
	assert.Empty(t, w.Segments())

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	assert.Empty(t, entries, "no segment before the first line")
}

func TestPlaybackPacing(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2025, 7, 7, 10, 0, 0, 0, time.UTC)
	var lines []string
	for i, offset := range []time.Duration{0, time.Second, 3 * time.Second} {
		line, err := codec.Encode(level1(1, uint64(i+1), base.Add(offset)), time.Time{})
		require.NoError(t, err)
		lines = append(lines, string(line))
	}
	writeCapture(t, filepath.Join(dir, "capture-a.jsonl"), lines...)

	clock := &fakeClock{}
	p, err := NewPlayback(PlaybackConfig{Dir: dir, Speed: 2})
	require.NoError(t, err)
	p.WithClock(clock)

	n := 0
	require.NoError(t, p.Run(context.Background(), func(message.Message, codec.Envelope) error {
		n++
		return nil
	}))
	assert.Equal(t, 3, n)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, clock.slept)
}

func TestPlaybackFilesAndOrder(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, filepath.Join(dir, "capture-2.jsonl"), `{"kind":"level1_change","body":{"seqNum":2}}`)
	writeCapture(t, filepath.Join(dir, "capture-1.jsonl"), `{"kind":"level1_change","body":{"seqNum":1}}`)
	writeCapture(t, filepath.Join(dir, "other-3.jsonl"), `{"kind":"level1_change","body":{"seqNum":9}}`)
	extra := filepath.Join(t.TempDir(), "extra.jsonl")
	writeCapture(t, extra, `{"kind":"level1_change","body":{"seqNum":3}}`)

	p, err := NewPlayback(PlaybackConfig{Dir: dir, Files: []string{extra}})
	require.NoError(t, err)

	var seqs []uint64
	require.NoError(t, p.Run(context.Background(), func(m message.Message, _ codec.Envelope) error {
		seqs = append(seqs, message.SeqNumOf(m))
		return nil
	}))
	assert.Equal(t, []uint64{1, 2, 3}, seqs)
}

func TestPlaybackConfig(t *testing.T) {
	_, err := NewPlayback(PlaybackConfig{})
	require.ErrorIs(t, err, exception.ErrInvalidArgument)
	_, err = NewPlayback(PlaybackConfig{Dir: "x", Speed: -1})
	require.ErrorIs(t, err, exception.ErrInvalidArgument)

	p, err := NewPlayback(PlaybackConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	require.ErrorIs(t, p.Run(context.Background(), nil), exception.ErrNilInstance)
}

func TestSinkDeadLetter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: dir, QueueSize: 4})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	s := NewSink(w, true)
	s.OnRaw(level1(1, 1, time.Time{}))
	s.OnUncorrelated(level1(2, 7, time.Time{}), exception.ErrTransactionNotFound)
	require.NoError(t, w.Close())
	assert.Zero(t, s.Dropped())

	p, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)
	var subs []int64
	require.NoError(t, p.Run(context.Background(), func(m message.Message, _ codec.Envelope) error {
		subs = append(subs, message.SubscriptionsOf(m)...)
		return nil
	}))
	assert.Equal(t, []int64{2}, subs)

	s.OnUncorrelated(level1(3, 1, time.Time{}), exception.ErrTransactionNotFound)
	assert.Equal(t, uint64(1), s.Dropped(), "closed writer drops")
}
