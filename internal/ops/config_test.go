package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tradecore/internal/message"
	"tradecore/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `{
	"dispatch": {"workers": 4, "queueCapacity": 1024, "shards": 32},
	"schedule": {"window": "09:30-16:00", "timezone": "America/New_York", "enforce": true},
	"boards": [
		{"code": "TQBR", "exchange": "MOEX", "securityTypes": ["Stock"], "securities": ["SBER", "GAZP"]},
		{"code": "SPBFUT", "exchange": "MOEX", "securityTypes": ["future"]}
	],
	"audit": {"enabled": true, "host": "db", "database": "tradecore", "migrate": false, "flushInterval": "2s"},
	"capture": {"enabled": true, "dir": "/tmp/capture", "onlyUncorrelated": true, "segmentDuration": "5m"},
	"profiling": {"enabled": true, "serverAddress": "http://localhost:4040"}
}`

func TestParse(t *testing.T) {
	loaded, err := Parse([]byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, 4, loaded.Dispatch.Workers)
	assert.Equal(t, 1024, loaded.Dispatch.QueueCapacity)
	assert.Equal(t, 32, loaded.Dispatch.Shards)

	require.NotNil(t, loaded.Schedule)
	assert.True(t, loaded.EnforceSchedule)
	assert.Equal(t, "America/New_York", loaded.Schedule.Location().String())

	require.Equal(t, 2, loaded.Boards.Len())
	board, ok := loaded.Boards.Board("tqbr")
	require.True(t, ok)
	assert.Equal(t, []message.SecurityType{message.SecurityTypeStock}, board.SecurityTypes)
	assert.Equal(t, message.SecurityID{SecurityCode: "GAZP", BoardCode: "TQBR"}, board.Securities[1])

	assert.True(t, loaded.Audit.Enabled)
	assert.False(t, loaded.Audit.Migrate)
	assert.Equal(t, "postgres://db:5432/tradecore?sslmode=disable", loaded.Audit.Postgres.DSN())
	assert.Equal(t, 2*time.Second, loaded.Audit.Sink.FlushInterval)

	assert.True(t, loaded.Capture.Enabled)
	assert.True(t, loaded.Capture.OnlyUncorrelated)
	assert.Equal(t, "/tmp/capture", loaded.Capture.Writer.Dir)
	assert.Equal(t, 5*time.Minute, loaded.Capture.Writer.SegmentMaxDuration)
	assert.Equal(t, time.Second, loaded.Capture.Writer.FlushInterval)

	assert.True(t, loaded.Profiling.Enabled)
	assert.Equal(t, defaultApplicationName, loaded.Profiling.ApplicationName)
}

func TestParseEmpty(t *testing.T) {
	loaded, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.Nil(t, loaded.Schedule)
	assert.Zero(t, loaded.Boards.Len())
	assert.False(t, loaded.Audit.Enabled)
	assert.False(t, loaded.Capture.Enabled)
	assert.False(t, loaded.Profiling.Enabled)
}

func TestParseInvalid(t *testing.T) {
	testCases := []struct {
		desc string
		data string
	}{
		{desc: "negative workers", data: `{"dispatch": {"workers": -1}}`},
		{desc: "bad window", data: `{"schedule": {"window": "16:00-09:30"}}`},
		{desc: "bad timezone", data: `{"schedule": {"timezone": "Mars/Olympus"}}`},
		{desc: "mic and timezone", data: `{"schedule": {"mic": "xnys", "timezone": "UTC"}}`},
		{desc: "enforce without schedule", data: `{"schedule": {"enforce": true}}`},
		{desc: "duplicate board", data: `{"boards": [{"code": "A"}, {"code": "a"}]}`},
		{desc: "empty board code", data: `{"boards": [{"exchange": "X"}]}`},
		{desc: "audit without database", data: `{"audit": {"enabled": true}}`},
		{desc: "audit bad duration", data: `{"audit": {"enabled": true, "host": "db", "flushInterval": "soon"}}`},
		{desc: "capture without dir", data: `{"capture": {"enabled": true}}`},
		{desc: "profiling without server", data: `{"profiling": {"enabled": true}}`},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := Parse([]byte(tc.data))
			require.ErrorIs(t, err, exception.ErrInvalidArgument)
		})
	}

	_, err := Parse([]byte(`{"dispatch": `))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"dispatch": {"workers": 2}}`), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Dispatch.Workers)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
