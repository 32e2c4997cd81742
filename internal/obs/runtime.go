package obs

import (
	"runtime"
	"strconv"
	"time"
)

// RuntimeMemory reports heap and GC activity between two samples.
type RuntimeMemory struct {
	buf        [512]byte
	prev, curr runtime.MemStats
	prevAt     time.Time
	currAt     time.Time
}

// Sample reads the current runtime stats.
func (m *RuntimeMemory) Sample() {
	m.prev, m.curr = m.curr, m.prev
	m.prevAt = m.currAt
	m.currAt = time.Now()

	runtime.ReadMemStats(&m.curr)

	if m.prevAt.IsZero() {
		m.prevAt = m.currAt
		m.prev = m.curr
	}
}

// String renders the last two samples as one log line.
func (m *RuntimeMemory) String() string {
	line := m.buf[:0]

	dt := m.currAt.Sub(m.prevAt).Seconds()
	if dt <= 0 {
		dt = 1
	}

	line = append(line, "heap alloc="...)
	line = appendBytes(line, m.curr.HeapAlloc)
	line = append(line, " inuse="...)
	line = appendBytes(line, m.curr.HeapInuse)
	line = append(line, " objects="...)
	line = strconv.AppendUint(line, m.curr.HeapObjects, 10)
	line = append(line, " alloc_rate="...)
	line = appendBytes(line, uint64(float64(m.curr.TotalAlloc-m.prev.TotalAlloc)/dt))
	line = append(line, "/s"...)

	line = append(line, ", gc times="...)
	line = strconv.AppendUint(line, uint64(m.curr.NumGC-m.prev.NumGC), 10)
	line = append(line, " stw="...)
	line = strconv.AppendFloat(line, float64(m.curr.PauseTotalNs-m.prev.PauseTotalNs)/1_000_000.0, 'f', 3, 64)
	line = append(line, "ms next="...)
	line = appendBytes(line, m.curr.NextGC)
	line = append(line, " goroutines="...)
	line = strconv.AppendInt(line, int64(runtime.NumGoroutine()), 10)

	return string(line)
}

const carryThreshold = 1 << 15

func appendBytes(line []byte, value uint64) []byte {
	for _, unit := range []string{" B", " KB", " MB"} {
		if value < carryThreshold {
			return append(strconv.AppendUint(line, value, 10), unit...)
		}
		value >>= 10
	}
	return append(strconv.AppendUint(line, value, 10), " GB"...)
}
