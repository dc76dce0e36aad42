package hireauth

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAccessDeliversToSink(t *testing.T) {
	sink := NewChannelAccessLogSink(4)
	h := newEngineHarness(t, func(cfg *Config) {
		cfg.AccessLog.Enabled = true
	})
	// rebuild with the sink; the harness engine has the no-op sink
	engine, err := New().
		WithConfig(h.engine.Config()).
		WithRedis(h.rdb).
		WithPolicySource(h.source).
		WithAccessLogSink(sink).
		WithLogger(quietLogger()).
		WithClock(h.clock.Now).
		Build()
	require.NoError(t, err)
	defer engine.Close()

	engine.RecordAccess(context.Background(), AccessLogEntry{
		Account: "user1",
		Method:  "GET",
		Path:    "/me",
		Status:  200,
	})

	select {
	case entry := <-sink.Entries():
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, h.clock.Now(), entry.Timestamp)
		assert.Equal(t, "/me", entry.Path)
		assert.Equal(t, 200, entry.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("access log entry not delivered")
	}
}

func TestRecordAccessDisabledIsNoop(t *testing.T) {
	h := newEngineHarness(t, nil)
	h.engine.RecordAccess(context.Background(), AccessLogEntry{Path: "/me"})
	assert.Zero(t, h.engine.AccessLogDropped())
	assert.False(t, h.engine.SecurityReport().AccessLogActive)
}

func TestJSONWriterAccessLogSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterAccessLogSink(&buf)

	require.NoError(t, sink.Emit(context.Background(), AccessLogEntry{ID: "a", Path: "/me", Status: 200}))
	require.NoError(t, sink.Emit(context.Background(), AccessLogEntry{ID: "b", Path: "/jobs", Status: 403}))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var entry AccessLogEntry
	require.NoError(t, json.Unmarshal(lines[1], &entry))
	assert.Equal(t, "b", entry.ID)
	assert.Equal(t, 403, entry.Status)
}
