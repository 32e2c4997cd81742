package recorder

import (
	"bufio"
	"bytes"
	"io"

	"tradecore/internal/codec"
	"tradecore/internal/message"

	"github.com/yanun0323/errors"
)

// Reader decodes capture lines sequentially. Blank lines and lines starting
// with '#' are skipped.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

// NewReader wraps an io.Reader with capture decoding.
func NewReader(r io.Reader, maxLineSize int) *Reader {
	if maxLineSize <= 0 {
		maxLineSize = defaultMaxLineSize
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(maxLineSize, 64*1024)), maxLineSize)
	return &Reader{sc: sc}
}

// Line returns the number of the last line read.
func (r *Reader) Line() int {
	return r.line
}

// Next returns the next message, io.EOF at the end of input.
func (r *Reader) Next() (message.Message, codec.Envelope, error) {
	for r.sc.Scan() {
		r.line++
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		m, env, err := codec.Decode(line)
		if err != nil {
			return nil, env, errors.Wrapf(err, "line %d", r.line)
		}
		return m, env, nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, codec.Envelope{}, errors.Wrapf(err, "line %d", r.line+1)
	}
	return nil, codec.Envelope{}, io.EOF
}
