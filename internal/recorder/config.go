package recorder

import (
	"time"

	"tradecore/pkg/exception"

	"github.com/yanun0323/errors"
)

const (
	defaultSegmentMaxBytes int64 = 256 << 20
	defaultQueueSize             = 4096
	defaultBufferSize            = 64 * 1024
	defaultFilePrefix            = "capture"
	defaultMaxLineSize           = 1 << 20

	fileSuffix = ".jsonl"
)

var defaultSegmentMaxDuration = 15 * time.Minute

// Config controls capture writer behavior.
type Config struct {
	Dir                string
	SegmentMaxBytes    int64
	SegmentMaxDuration time.Duration
	QueueSize          int
	BufferSize         int
	FilePrefix         string
	FlushInterval      time.Duration
	SyncInterval       time.Duration
}

// DefaultConfig returns a baseline configuration for the capture writer.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:                dir,
		SegmentMaxBytes:    defaultSegmentMaxBytes,
		SegmentMaxDuration: defaultSegmentMaxDuration,
		QueueSize:          defaultQueueSize,
		BufferSize:         defaultBufferSize,
		FilePrefix:         defaultFilePrefix,
		FlushInterval:      time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.SegmentMaxBytes == 0 {
		c.SegmentMaxBytes = defaultSegmentMaxBytes
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	switch {
	case c.Dir == "":
		return errors.Wrap(exception.ErrInvalidArgument, "recorder: Dir is empty")
	case c.SegmentMaxBytes <= 0:
		return errors.Wrap(exception.ErrInvalidArgument, "recorder: SegmentMaxBytes must be > 0")
	case c.QueueSize <= 0:
		return errors.Wrap(exception.ErrInvalidArgument, "recorder: QueueSize must be > 0")
	case c.BufferSize <= 0:
		return errors.Wrap(exception.ErrInvalidArgument, "recorder: BufferSize must be > 0")
	case c.FilePrefix == "":
		return errors.Wrap(exception.ErrInvalidArgument, "recorder: FilePrefix is empty")
	case c.FlushInterval < 0, c.SyncInterval < 0:
		return errors.Wrap(exception.ErrInvalidArgument, "recorder: intervals must be >= 0")
	}
	return nil
}

// PlaybackConfig controls capture playback behavior.
type PlaybackConfig struct {
	// Dir holds capture segments, played in name order.
	Dir        string
	FilePrefix string
	// Files are played after Dir, in the given order.
	Files []string
	// Speed paces playback, 1 is real time and 0 disables pacing.
	Speed float64
	// UseRecvTime paces by receive time instead of server time.
	UseRecvTime bool
	MaxLineSize int
}

func (c PlaybackConfig) withDefaults() PlaybackConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	if c.MaxLineSize == 0 {
		c.MaxLineSize = defaultMaxLineSize
	}
	return c
}

// Validate checks if the config is usable.
func (c PlaybackConfig) Validate() error {
	switch {
	case c.Dir == "" && len(c.Files) == 0:
		return errors.Wrap(exception.ErrInvalidArgument, "playback: neither Dir nor Files is set")
	case c.Speed < 0:
		return errors.Wrap(exception.ErrInvalidArgument, "playback: Speed must be >= 0")
	case c.MaxLineSize < 0:
		return errors.Wrap(exception.ErrInvalidArgument, "playback: MaxLineSize must be >= 0")
	}
	return nil
}
