// Package scanner peeks at top-level-looking JSON fields without decoding the
// whole document. It matches the first occurrence of the quoted key, so it is
// only meant for flat hints such as a discriminant.
package scanner

import "bytes"

func valueStart(payload []byte, key string) int {
	quoted := make([]byte, 0, len(key)+2)
	quoted = append(quoted, '"')
	quoted = append(quoted, key...)
	quoted = append(quoted, '"')

	idx := bytes.Index(payload, quoted)
	if idx < 0 {
		return -1
	}
	i := skipSpace(payload, idx+len(quoted))
	if i >= len(payload) || payload[i] != ':' {
		return -1
	}
	return skipSpace(payload, i+1)
}

func skipSpace(payload []byte, i int) int {
	for i < len(payload) && IsSpace(payload[i]) {
		i++
	}
	return i
}

// StringField returns the raw bytes of a string value. Escapes are not decoded.
func StringField(payload []byte, key string) ([]byte, bool) {
	i := valueStart(payload, key)
	if i < 0 || i >= len(payload) || payload[i] != '"' {
		return nil, false
	}
	i++
	start := i
	for i < len(payload) {
		switch payload[i] {
		case '\\':
			i += 2
			continue
		case '"':
			return payload[start:i], true
		}
		i++
	}
	return nil, false
}

// IntField returns an integer value, optionally signed.
func IntField(payload []byte, key string) (int64, bool) {
	i := valueStart(payload, key)
	if i < 0 || i >= len(payload) {
		return 0, false
	}
	neg := payload[i] == '-'
	if neg {
		i++
	}
	if i >= len(payload) || payload[i] < '0' || payload[i] > '9' {
		return 0, false
	}
	var v int64
	for i < len(payload) && payload[i] >= '0' && payload[i] <= '9' {
		v = v*10 + int64(payload[i]-'0')
		i++
	}
	if neg {
		v = -v
	}
	return v, true
}

func IsSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
