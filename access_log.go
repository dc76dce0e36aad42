package hireauth

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AccessLogEntry records one authenticated request.
type AccessLogEntry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Account   string        `json:"account,omitempty"`
	UserID    int64         `json:"user_id,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	Method    string        `json:"method"`
	Path      string        `json:"path"`
	Status    int           `json:"status"`
	Duration  time.Duration `json:"duration"`
	IP        string        `json:"ip,omitempty"`
	UserAgent string        `json:"user_agent,omitempty"`
}

// AccessLogSink persists access log entries. Emit runs on the access log
// worker, never on the request goroutine.
type AccessLogSink interface {
	Emit(ctx context.Context, entry AccessLogEntry) error
}

// NoOpAccessLogSink discards every entry.
type NoOpAccessLogSink struct{}

func (NoOpAccessLogSink) Emit(context.Context, AccessLogEntry) error { return nil }

// ChannelAccessLogSink forwards entries to a buffered channel. Useful in
// tests and for fan-out to custom consumers.
type ChannelAccessLogSink struct {
	entries chan AccessLogEntry
}

func NewChannelAccessLogSink(buffer int) *ChannelAccessLogSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelAccessLogSink{
		entries: make(chan AccessLogEntry, buffer),
	}
}

func (s *ChannelAccessLogSink) Emit(ctx context.Context, entry AccessLogEntry) error {
	select {
	case s.entries <- entry:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChannelAccessLogSink) Entries() <-chan AccessLogEntry {
	return s.entries
}

// JSONWriterAccessLogSink writes one JSON document per line.
type JSONWriterAccessLogSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterAccessLogSink(w io.Writer) *JSONWriterAccessLogSink {
	return &JSONWriterAccessLogSink{
		writer: w,
	}
}

func (s *JSONWriterAccessLogSink) Emit(_ context.Context, entry AccessLogEntry) error {
	if s == nil || s.writer == nil {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.writer.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

// RecordAccess queues entry for the access log sink. It never blocks: entries
// beyond the buffer are counted and discarded. It is a no-op when the access
// log is disabled.
func (e *Engine) RecordAccess(ctx context.Context, entry AccessLogEntry) {
	if e == nil || e.accessLog == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = e.now().UTC()
	}
	e.accessLog.Submit(ctx, entry)
}

func (e *Engine) emitAccess(ctx context.Context, entry AccessLogEntry) {
	if err := e.accessSink.Emit(ctx, entry); err != nil {
		e.log.WithError(err).WithField("path", entry.Path).Warn("access log write failed")
	}
}
