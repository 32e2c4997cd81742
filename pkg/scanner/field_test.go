package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringField(t *testing.T) {
	payload := []byte(`{"kind" : "level1_change","body":{"name":"a\"b"}}`)

	v, ok := StringField(payload, "kind")
	assert.True(t, ok)
	assert.Equal(t, "level1_change", string(v))

	v, ok = StringField(payload, "name")
	assert.True(t, ok)
	assert.Equal(t, `a\"b`, string(v))

	_, ok = StringField(payload, "missing")
	assert.False(t, ok)

	_, ok = StringField([]byte(`{"kind":12}`), "kind")
	assert.False(t, ok)

	_, ok = StringField([]byte(`{"kind":"unterminated`), "kind")
	assert.False(t, ok)
}

func TestIntField(t *testing.T) {
	payload := []byte(`{"recvTime":1700000000000000000,"offset": -42,"name":"x"}`)

	v, ok := IntField(payload, "recvTime")
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000000000000), v)

	v, ok = IntField(payload, "offset")
	assert.True(t, ok)
	assert.Equal(t, int64(-42), v)

	_, ok = IntField(payload, "name")
	assert.False(t, ok)
}
