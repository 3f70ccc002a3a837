package openphone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workwhile/automation/common/logging"
	"github.com/workwhile/automation/common/middleware"
)

type recordingSink struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (s *recordingSink) Deliver(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *recordingSink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// fixedClock returns a clock that advances one second per call.
func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestLogger(buf *bytes.Buffer) *logging.Logger {
	return logging.FromHandler(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		lines = append(lines, entry)
	}
	return lines
}

func messageReceivedData() map[string]any {
	return map[string]any{
		"id":        "msg_abc123",
		"from":      "+15551234567",
		"to":        "+15559876543",
		"body":      "Hello, can you call me back?",
		"createdAt": "2024-01-15T10:00:00.000Z",
	}
}

func TestDispatcher_ProcessMessageReceived(t *testing.T) {
	var buf bytes.Buffer
	sink := &recordingSink{}
	d := NewDispatcher(DispatcherConfig{Sink: sink, Logger: newTestLogger(&buf), Now: fixedClock()})

	result, err := d.Process(context.Background(), messageReceivedData(), "message.received")
	require.NoError(t, err)

	assert.Equal(t, StatusProcessed, result.Status)
	assert.Equal(t, "message_stored", result.Action)
	assert.Equal(t, "messageId", result.IDField)
	assert.Equal(t, "msg_abc123", result.EntityID)
	assert.False(t, result.ProcessedAt.IsZero())

	b, err := json.Marshal(result)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(b, &body))
	assert.Equal(t, "processed", body["status"])
	assert.Equal(t, "message_stored", body["action"])
	assert.Equal(t, "msg_abc123", body["messageId"])
	_, err = time.Parse(TimestampLayout, body["processedAt"].(string))
	assert.NoError(t, err)

	records := sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, MessageReceived, records[0].EventType)
	assert.Equal(t, "message_stored", records[0].Action)
	assert.Equal(t, "msg_abc123", records[0].EntityID)

	lines := logLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "processing webhook event", lines[0]["msg"])
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "message.received", lines[0]["event_type"])
	assert.Equal(t, "msg_abc123", lines[0]["event_id"])
	assert.NotEmpty(t, lines[0]["timestamp"])
	assert.Equal(t, "message received", lines[1]["msg"])
	assert.Equal(t, "webhook event processed", lines[2]["msg"])
	assert.Equal(t, "INFO", lines[2]["level"])
	assert.NotNil(t, lines[2]["result"])
}

func TestDispatcher_SensitiveFieldsMaskedInLogs(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(DispatcherConfig{Logger: newTestLogger(&buf), Now: fixedClock()})

	data := messageReceivedData()
	_, err := d.Process(context.Background(), data, "message.received")
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "+15551234567")
	assert.NotContains(t, out, "+15559876543")
	assert.NotContains(t, out, "Hello, can you call me back?")
	assert.Contains(t, out, "+1********67")

	// The caller's data is left untouched.
	assert.Equal(t, messageReceivedData(), data)
}

func TestDispatcher_UnknownEventType(t *testing.T) {
	var buf bytes.Buffer
	sink := &recordingSink{}
	d := NewDispatcher(DispatcherConfig{Sink: sink, Logger: newTestLogger(&buf)})

	result, err := d.Process(context.Background(), map[string]any{"id": "evt_1", "foo": "bar"}, "unknown.type")
	require.NoError(t, err)
	assert.Equal(t, StatusUnhandled, result.Status)
	assert.Equal(t, EventType("unknown.type"), result.EventType)

	b, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"unhandled","eventType":"unknown.type"}`, string(b))

	assert.Empty(t, sink.Records())
	lines := logLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN", lines[1]["level"])
	assert.Equal(t, "unhandled webhook event type", lines[1]["msg"])
}

func TestDispatcher_UnknownEventTypeStillRequiresID(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Logger: logging.Discard()})

	_, err := d.Process(context.Background(), map[string]any{"foo": "bar"}, "unknown.type")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestDispatcher_ValidationFailure(t *testing.T) {
	tests := []struct {
		name      string
		data      any
		eventType string
		missing   []string
	}{
		{"nil data", nil, "message.received", []string{"id", "from", "to", "body"}},
		{"empty object", map[string]any{}, "message.received", []string{"id", "from", "to", "body"}},
		{"missing direction", map[string]any{"id": "c1", "from": "a", "to": "b"}, "call.started", []string{"direction"}},
		{"array data", []any{"x"}, "call.ended", []string{"id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			called := false
			handlers := map[EventType]Handler{
				EventType(tt.eventType): HandlerFunc(func(context.Context, Payload) (Result, error) {
					called = true
					return Result{}, nil
				}),
			}
			d := NewDispatcher(DispatcherConfig{Handlers: handlers, Logger: newTestLogger(&buf)})

			result, err := d.Process(context.Background(), tt.data, tt.eventType)
			require.Error(t, err)
			assert.Equal(t, Result{}, result)
			assert.False(t, called, "handler must not run")

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.eventType, ve.EventType)
			assert.Equal(t, tt.missing, ve.Missing)
			assert.Contains(t, err.Error(), tt.eventType)

			lines := logLines(t, &buf)
			require.Len(t, lines, 2)
			assert.Equal(t, "INFO", lines[0]["level"])
			assert.Equal(t, "ERROR", lines[1]["level"])
			assert.Equal(t, tt.eventType, lines[1]["event_type"])
			assert.Contains(t, lines[1]["error"], tt.eventType)
		})
	}
}

func TestDispatcher_HandlerFaultPropagatesUnchanged(t *testing.T) {
	var buf bytes.Buffer
	fault := errors.New("crm unavailable")
	d := NewDispatcher(DispatcherConfig{
		Sink:   &recordingSink{err: fault},
		Logger: newTestLogger(&buf),
	})

	result, err := d.Process(context.Background(), map[string]any{"id": "call_9"}, "call.ended")
	assert.Same(t, fault, err)
	assert.Equal(t, Result{}, result)

	var errorLines []map[string]any
	for _, line := range logLines(t, &buf) {
		if line["level"] == "ERROR" {
			errorLines = append(errorLines, line)
		}
	}
	require.Len(t, errorLines, 1)
	assert.Equal(t, "call_9", errorLines[0]["event_id"])
	assert.Equal(t, "crm unavailable", errorLines[0]["error"])
}

func TestDispatcher_CustomHandlerResultReturnedVerbatim(t *testing.T) {
	want := Result{Status: StatusProcessed, Action: "custom", IDField: "callId", EntityID: "c1"}
	d := NewDispatcher(DispatcherConfig{
		Logger: logging.Discard(),
		Handlers: map[EventType]Handler{
			CallEnded: HandlerFunc(func(_ context.Context, data Payload) (Result, error) {
				assert.Equal(t, "c1", data.ID())
				return want, nil
			}),
		},
	})

	got, err := d.Process(context.Background(), map[string]any{"id": "c1"}, "call.ended")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Only the configured table is consulted.
	got, err = d.Process(context.Background(), map[string]any{"id": "m1"}, "contact.updated")
	require.NoError(t, err)
	assert.Equal(t, StatusUnhandled, got.Status)
}

func TestDispatcher_RepeatedCallsDifferOnlyInProcessedAt(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Logger: logging.Discard(), Now: fixedClock()})
	data := map[string]any{"id": "ct_1", "name": "Ada", "phone": "+15550001111"}

	first, err := d.Process(context.Background(), data, "contact.created")
	require.NoError(t, err)
	second, err := d.Process(context.Background(), data, "contact.created")
	require.NoError(t, err)

	assert.NotEqual(t, first.ProcessedAt, second.ProcessedAt)
	first.ProcessedAt, second.ProcessedAt = time.Time{}, time.Time{}
	assert.Equal(t, first, second)
	assert.Equal(t, map[string]any{"id": "ct_1", "name": "Ada", "phone": "+15550001111"}, data)
}

func TestDispatcher_ConcurrentProcessing(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(DispatcherConfig{Sink: sink, Logger: logging.Discard()})

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := map[string]any{"id": i, "from": "+15551230000", "to": "+15559870000", "direction": "incoming"}
			_, err := d.Process(context.Background(), data, "call.started")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, sink.Records(), n)
}

func TestDispatcher_RequestIDLogged(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(DispatcherConfig{Logger: newTestLogger(&buf)})

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	_, err := d.Process(ctx, map[string]any{"id": "c"}, "contact.updated")
	require.NoError(t, err)

	for _, line := range logLines(t, &buf) {
		assert.Equal(t, "req-42", line["request_id"])
	}
}
