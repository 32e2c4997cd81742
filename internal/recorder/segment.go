package recorder

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yanun0323/errors"
)

const segmentStampLayout = "20060102-150405"

func makeDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create capture dir %s", dir)
	}
	return nil
}

// roller owns the open segment and starts a new one once the current one
// is full or too old. Segment names sort in the order they were opened.
type roller struct {
	cfg    Config
	seq    uint64
	cur    *segment
	opened func(path string)
}

type segment struct {
	path     string
	file     *os.File
	buf      *bufio.Writer
	size     int64
	openedAt time.Time
}

func (r *roller) write(line []byte, now time.Time) error {
	n := int64(len(line)) + 1
	if r.due(n, now) {
		if err := r.close(); err != nil {
			return err
		}
		if err := r.open(now); err != nil {
			return err
		}
	}

	if _, err := r.cur.buf.Write(line); err != nil {
		return errors.Wrapf(err, "write %s", r.cur.path)
	}
	if err := r.cur.buf.WriteByte('\n'); err != nil {
		return errors.Wrapf(err, "write %s", r.cur.path)
	}
	r.cur.size += n
	return nil
}

// due reports whether a line of n bytes belongs in a new segment. A line
// larger than SegmentMaxBytes still gets a segment of its own.
func (r *roller) due(n int64, now time.Time) bool {
	switch {
	case r.cur == nil:
		return true
	case r.cur.size > 0 && r.cur.size+n > r.cfg.SegmentMaxBytes:
		return true
	default:
		return r.cfg.SegmentMaxDuration > 0 && now.Sub(r.cur.openedAt) >= r.cfg.SegmentMaxDuration
	}
}

func (r *roller) open(now time.Time) error {
	stamp := now.Format(segmentStampLayout)
	for {
		r.seq++
		path := filepath.Join(r.cfg.Dir, fmt.Sprintf("%s-%s-%06d%s", r.cfg.FilePrefix, stamp, r.seq, fileSuffix))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "open capture segment")
		}

		r.cur = &segment{
			path:     path,
			file:     f,
			buf:      bufio.NewWriterSize(f, r.cfg.BufferSize),
			openedAt: now,
		}
		if r.opened != nil {
			r.opened(path)
		}
		return nil
	}
}

func (r *roller) flush() error {
	if r.cur == nil {
		return nil
	}
	if err := r.cur.buf.Flush(); err != nil {
		return errors.Wrapf(err, "flush %s", r.cur.path)
	}
	return nil
}

func (r *roller) sync() error {
	if err := r.flush(); err != nil || r.cur == nil {
		return err
	}
	if err := r.cur.file.Sync(); err != nil {
		return errors.Wrapf(err, "sync %s", r.cur.path)
	}
	return nil
}

// close syncs and closes the open segment. The file is closed even when
// the sync fails.
func (r *roller) close() error {
	if r.cur == nil {
		return nil
	}
	err := r.sync()
	if cerr := r.cur.file.Close(); err == nil && cerr != nil {
		err = errors.Wrapf(cerr, "close %s", r.cur.path)
	}
	r.cur = nil
	return err
}

// interval is a ticker that never fires for a non-positive period.
type interval struct {
	t *time.Ticker
}

func every(d time.Duration) interval {
	if d <= 0 {
		return interval{}
	}
	return interval{t: time.NewTicker(d)}
}

func (i interval) c() <-chan time.Time {
	if i.t == nil {
		return nil
	}
	return i.t.C
}

func (i interval) stop() {
	if i.t != nil {
		i.t.Stop()
	}
}
