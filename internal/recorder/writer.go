package recorder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tradecore/internal/codec"
	"tradecore/internal/message"
	"tradecore/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

var (
	ErrClosed         = errors.New("recorder: writer closed")
	ErrNotStarted     = errors.New("recorder: writer not started")
	ErrAlreadyStarted = errors.New("recorder: writer already started")
)

// capture is a message waiting to be encoded by the writer goroutine.
type capture struct {
	msg  message.Message
	recv time.Time
}

// Writer captures dispatcher traffic into rotating JSONL segments.
//
// TryAppend only queues, so a sink callback never pays for encoding or disk
// I/O. The writer goroutine encodes and writes; the first write failure stops
// it and is reported by Err and Close. A message that fails to encode is
// skipped and counted.
type Writer struct {
	cfg  Config
	ch   chan capture
	done chan struct{}
	err  atomic.Pointer[error]

	started atomic.Bool
	closed  atomic.Bool
	written atomic.Uint64
	skipped atomic.Uint64

	mu       sync.Mutex
	segments []string
}

// NewWriter creates a capture writer and ensures the target directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := makeDir(cfg.Dir); err != nil {
		return nil, err
	}
	return &Writer{
		cfg:  cfg,
		ch:   make(chan capture, cfg.QueueSize),
		done: make(chan struct{}),
	}, nil
}

func (w *Writer) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go func() {
		defer close(w.done)
		w.loop(ctx)
	}()
	return nil
}

// Close stops accepting captures, waits for the queued ones and closes the
// open segment.
func (w *Writer) Close() error {
	if w.closed.CompareAndSwap(false, true) {
		close(w.ch)
	}
	if w.started.Load() {
		<-w.done
	}
	return w.Err()
}

func (w *Writer) Err() error {
	if p := w.err.Load(); p != nil {
		return *p
	}
	return nil
}

// Written returns the number of lines handed to segment buffers.
func (w *Writer) Written() uint64 {
	return w.written.Load()
}

// Skipped returns the number of captures that could not be encoded.
func (w *Writer) Skipped() uint64 {
	return w.skipped.Load()
}

// Segments returns the paths of the segments opened so far, oldest first.
func (w *Writer) Segments() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.segments...)
}

// TryAppend queues m without blocking.
func (w *Writer) TryAppend(m message.Message, recvTime time.Time) (err error) {
	switch {
	case m == nil:
		return exception.ErrNilInstance
	case w.closed.Load():
		return ErrClosed
	case !w.started.Load():
		return ErrNotStarted
	}
	if err := w.Err(); err != nil {
		return err
	}

	// Close may win the race after the check above.
	defer func() {
		if recover() != nil {
			err = ErrClosed
		}
	}()
	select {
	case w.ch <- capture{msg: m, recv: recvTime}:
		return nil
	default:
		return exception.ErrQueueFull
	}
}

func (w *Writer) loop(ctx context.Context) {
	r := &roller{cfg: w.cfg, opened: w.opened}
	flushes, syncs := every(w.cfg.FlushInterval), every(w.cfg.SyncInterval)
	defer func() {
		flushes.stop()
		syncs.stop()
		w.setErr(r.close())
	}()

	for {
		var err error
		select {
		case <-ctx.Done():
			w.drain(r)
			return
		case c, ok := <-w.ch:
			if !ok {
				return
			}
			err = w.write(r, c)
		case <-flushes.c():
			err = r.flush()
		case <-syncs.c():
			err = r.sync()
		}
		if err != nil {
			w.setErr(err)
			return
		}
	}
}

// drain writes what is already queued after ctx is done.
func (w *Writer) drain(r *roller) {
	for {
		select {
		case c, ok := <-w.ch:
			if !ok {
				return
			}
			if err := w.write(r, c); err != nil {
				w.setErr(err)
				return
			}
		default:
			return
		}
	}
}

func (w *Writer) write(r *roller, c capture) error {
	line, err := codec.Encode(c.msg, c.recv)
	if err != nil {
		if w.skipped.Add(1) == 1 {
			logs.Warnf("capture skipped %s, err: %+v", c.msg.GetKind(), err)
		}
		return nil
	}
	if err := r.write(line, time.Now().UTC()); err != nil {
		return err
	}
	w.written.Add(1)
	return nil
}

func (w *Writer) opened(path string) {
	w.mu.Lock()
	w.segments = append(w.segments, path)
	w.mu.Unlock()
	logs.Debugf("capture segment %s opened", path)
}

func (w *Writer) setErr(err error) {
	if err == nil {
		return
	}
	w.err.CompareAndSwap(nil, &err)
}
