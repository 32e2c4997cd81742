package recorder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tradecore/internal/codec"
	"tradecore/internal/message"
	"tradecore/pkg/exception"

	"github.com/yanun0323/errors"
)

// Clock allows deterministic playback control.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Handler receives every played message. A returned error stops playback.
type Handler func(m message.Message, env codec.Envelope) error

// Playback replays capture files in order.
type Playback struct {
	cfg   PlaybackConfig
	clock Clock
}

// NewPlayback validates the config and creates a playback engine.
func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Playback{cfg: cfg, clock: realClock{}}, nil
}

// WithClock swaps the clock implementation.
func (p *Playback) WithClock(clock Clock) *Playback {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Run replays every capture and calls the handler for each message.
func (p *Playback) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.Wrap(exception.ErrNilInstance, "playback handler")
	}
	files, err := p.collectFiles()
	if err != nil {
		return err
	}

	var prev time.Time
	for _, path := range files {
		if err := p.playFile(ctx, path, handler, &prev); err != nil {
			return err
		}
	}
	return nil
}

func (p *Playback) collectFiles() ([]string, error) {
	var files []string
	if p.cfg.Dir != "" {
		entries, err := os.ReadDir(p.cfg.Dir)
		if err != nil {
			return nil, errors.Wrap(err, "read capture dir")
		}
		prefix := p.cfg.FilePrefix + "-"
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, fileSuffix) {
				continue
			}
			files = append(files, filepath.Join(p.cfg.Dir, name))
		}
		sort.Strings(files)
	}
	return append(files, p.cfg.Files...), nil
}

func (p *Playback) playFile(ctx context.Context, path string, handler Handler, prev *time.Time) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open capture")
	}
	defer file.Close()

	reader := NewReader(file, p.cfg.MaxLineSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		m, env, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrapf(err, "read %s", path)
		}

		if err := p.pace(ctx, p.timestamp(m, env), prev); err != nil {
			return err
		}
		if err := handler(m, env); err != nil {
			return err
		}
	}
}

func (p *Playback) timestamp(m message.Message, env codec.Envelope) time.Time {
	if p.cfg.UseRecvTime {
		return env.ReceivedAt()
	}
	if st, ok := m.(message.ServerTimeMessage); ok {
		return st.GetServerTime()
	}
	return time.Time{}
}

func (p *Playback) pace(ctx context.Context, current time.Time, prev *time.Time) error {
	if p.cfg.Speed <= 0 || current.IsZero() {
		return nil
	}
	if !prev.IsZero() {
		if delta := current.Sub(*prev); delta > 0 {
			if err := p.clock.Sleep(ctx, time.Duration(float64(delta)/p.cfg.Speed)); err != nil {
				return err
			}
		}
	}
	*prev = current
	return nil
}
