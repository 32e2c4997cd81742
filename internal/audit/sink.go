package audit

import (
	"context"
	"sync/atomic"
	"time"

	"tradecore/internal/dispatch"
	"tradecore/internal/orderlog"
	"tradecore/internal/sequence"

	"github.com/yanun0323/logs"
)

const (
	_defaultBuffer    = 1024
	_defaultBatchSize = 128
	_defaultFlush     = time.Second
)

// Config controls the audit sink batching.
type Config struct {
	Buffer        int
	BatchSize     int
	FlushInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Buffer <= 0 {
		c.Buffer = _defaultBuffer
	}
	if c.BatchSize <= 0 {
		c.BatchSize = _defaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = _defaultFlush
	}
	return c
}

type event struct {
	gap        *GapRecord
	incomplete *IncompleteRecord
}

// Sink buffers gaps and incomplete order log halves and writes them in
// batches from Run. Callbacks never block: a full buffer drops the event.
// Write failures are logged and the batch is discarded.
type Sink struct {
	dispatch.NopSink
	cfg     Config
	w       Writer
	ch      chan event
	now     func() time.Time
	dropped atomic.Uint64
	failed  atomic.Uint64
}

func NewSink(w Writer, cfg Config) *Sink {
	cfg = cfg.withDefaults()
	return &Sink{
		cfg: cfg,
		w:   w,
		ch:  make(chan event, cfg.Buffer),
		now: time.Now,
	}
}

// Dropped returns the number of events lost to a full buffer.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// Failed returns the number of rows lost to write errors.
func (s *Sink) Failed() uint64 {
	return s.failed.Load()
}

func (s *Sink) OnGap(gap sequence.Gap) {
	rec := NewGapRecord(gap, s.now())
	s.push(event{gap: &rec})
}

func (s *Sink) OnIncomplete(inc orderlog.Incomplete) {
	rec := NewIncompleteRecord(inc, s.now())
	s.push(event{incomplete: &rec})
}

func (s *Sink) push(ev event) {
	select {
	case s.ch <- ev:
	default:
		if s.dropped.Add(1) == 1 {
			logs.Warnf("audit buffer full, dropping events")
		}
	}
}

// Run writes buffered events until ctx is done, then flushes what is left.
func (s *Sink) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	var (
		gaps        []GapRecord
		incompletes []IncompleteRecord
	)
	flush := func(ctx context.Context) {
		if err := s.w.SaveGaps(ctx, gaps); err != nil {
			s.failed.Add(uint64(len(gaps)))
			logs.Errorf("audit gaps, err: %+v", err)
		}
		if err := s.w.SaveIncompletes(ctx, incompletes); err != nil {
			s.failed.Add(uint64(len(incompletes)))
			logs.Errorf("audit incompletes, err: %+v", err)
		}
		gaps, incompletes = gaps[:0], incompletes[:0]
	}
	add := func(ev event) {
		if ev.gap != nil {
			gaps = append(gaps, *ev.gap)
		}
		if ev.incomplete != nil {
			incompletes = append(incompletes, *ev.incomplete)
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.drain(add)
			flush(context.WithoutCancel(ctx))
			return
		case ev := <-s.ch:
			add(ev)
			if len(gaps)+len(incompletes) >= s.cfg.BatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

func (s *Sink) drain(add func(event)) {
	for {
		select {
		case ev := <-s.ch:
			add(ev)
		default:
			return
		}
	}
}
