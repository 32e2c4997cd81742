package recorder

import (
	"sync/atomic"
	"time"

	"tradecore/internal/dispatch"
	"tradecore/internal/message"

	"github.com/yanun0323/logs"
)

// Sink captures messages leaving the dispatcher. With OnlyUncorrelated set it
// keeps the messages no live request claimed, a dead letter capture.
type Sink struct {
	dispatch.NopSink
	w                *Writer
	onlyUncorrelated bool
	now              func() time.Time
	dropped          atomic.Uint64
}

func NewSink(w *Writer, onlyUncorrelated bool) *Sink {
	return &Sink{w: w, onlyUncorrelated: onlyUncorrelated, now: time.Now}
}

// Dropped returns the number of messages the writer could not take.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Sink) OnRaw(m message.Message) {
	if !s.onlyUncorrelated {
		s.append(m)
	}
}

func (s *Sink) OnUncorrelated(m message.Message, err error) {
	if s.onlyUncorrelated {
		s.append(m)
	}
}

func (s *Sink) append(m message.Message) {
	if err := s.w.TryAppend(m, s.now()); err != nil {
		if s.dropped.Add(1) == 1 {
			logs.Warnf("capture dropped %s, err: %+v", m.GetKind(), err)
		}
	}
}
