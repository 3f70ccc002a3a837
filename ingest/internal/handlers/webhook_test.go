package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workwhile/automation/common/logging"
	"github.com/workwhile/automation/ingest/internal/config"
	"github.com/workwhile/automation/ingest/internal/openphone"
	"github.com/workwhile/automation/ingest/pkg/signature"
)

var testSigningKey = base64.StdEncoding.EncodeToString([]byte("webhook-signing-key"))

type recordingSink struct {
	mu      sync.Mutex
	records []openphone.Record
}

func (s *recordingSink) Deliver(_ context.Context, rec openphone.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type stubProcessor struct {
	result openphone.Result
	err    error
	ctx    context.Context
}

func (p *stubProcessor) Process(ctx context.Context, _ any, _ string) (openphone.Result, error) {
	p.ctx = ctx
	return p.result, p.err
}

func testWebhooksConfig() config.WebhooksConfig {
	return config.WebhooksConfig{
		Enabled:           true,
		Path:              "/api/webhooks/openphone",
		MaxPayloadSize:    1 << 20,
		ProcessingTimeout: 30 * time.Second,
		LogPayload:        true,
		MaskFields:        []string{"password", "token", "secret", "key"},
	}
}

func newTestWebhookHandler(t *testing.T, cfg config.WebhooksConfig, sink openphone.Sink) *WebhookHandler {
	t.Helper()
	d := openphone.NewDispatcher(openphone.DispatcherConfig{Sink: sink, Logger: logging.Discard()})
	h, err := NewWebhookHandler(d, cfg, logging.Discard())
	require.NoError(t, err)
	return h
}

func envelope(eventType string, object any) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":         "EV123",
		"object":     "event",
		"apiVersion": "v3",
		"createdAt":  "2024-06-01T12:00:00.000Z",
		"type":       eventType,
		"data":       map[string]any{"object": object},
	})
	return body
}

func post(h http.Handler, body []byte, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/openphone", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestWebhook_MessageReceived(t *testing.T) {
	sink := &recordingSink{}
	h := newTestWebhookHandler(t, testWebhooksConfig(), sink)

	w, resp := post(h, envelope("message.received", map[string]any{
		"id": "AC1", "from": "+15550001111", "to": "+15550002222", "body": "hello",
	}), nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, "Webhook processed successfully", resp["message"])
	assert.Equal(t, "EV123", resp["eventId"])
	assert.Equal(t, "message.received", resp["eventType"])
	assert.Equal(t, "2024-06-01T12:00:00.000Z", resp["eventCreatedAt"])
	assert.Nil(t, resp["callData"])
	assert.NotEmpty(t, resp["processedAt"])

	result := resp["result"].(map[string]any)
	assert.Equal(t, "processed", result["status"])
	assert.Equal(t, "message_stored", result["action"])
	assert.Equal(t, "AC1", result["messageId"])

	assert.Equal(t, 1, sink.len())
}

func TestWebhook_CallDataExtracted(t *testing.T) {
	h := newTestWebhookHandler(t, testWebhooksConfig(), nil)

	w, resp := post(h, envelope("call.started", map[string]any{
		"id": "CA1", "from": "+15550001111", "to": "+15550002222", "direction": "incoming",
	}), nil)

	require.Equal(t, http.StatusOK, w.Code)
	callData := resp["callData"].(map[string]any)
	assert.Equal(t, "CA1", callData["callId"])
	assert.Equal(t, "incoming", callData["direction"])
	assert.Nil(t, callData["voicemail"])
	assert.Equal(t, []any{}, callData["media"])
}

func TestWebhook_UnhandledType(t *testing.T) {
	h := newTestWebhookHandler(t, testWebhooksConfig(), nil)

	w, resp := post(h, envelope("call.recording.completed", map[string]any{"id": "CA9"}), nil)

	require.Equal(t, http.StatusOK, w.Code)
	result := resp["result"].(map[string]any)
	assert.Equal(t, map[string]any{"status": "unhandled", "eventType": "call.recording.completed"}, result)
	// call.* types still echo call data.
	assert.Equal(t, "CA9", resp["callData"].(map[string]any)["callId"])
}

func TestWebhook_BadRequests(t *testing.T) {
	h := newTestWebhookHandler(t, testWebhooksConfig(), nil)

	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{"invalid JSON", `{"type":`, "Invalid JSON payload"},
		{"missing type", `{"data":{"object":{"id":"x"}}}`, "Missing required fields: event type or data object"},
		{"missing data object", `{"type":"message.received","data":{}}`, "Missing required fields: event type or data object"},
		{"empty body", ``, "Missing required fields: event type or data object"},
		{"array body", `[1,2]`, "Missing required fields: event type or data object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := post(h, []byte(tt.body), nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantError, resp["error"])
		})
	}
}

func TestWebhook_MissingFieldsEchoesBody(t *testing.T) {
	h := newTestWebhookHandler(t, testWebhooksConfig(), nil)

	_, resp := post(h, []byte(`{"type":"message.received"}`), nil)
	assert.Equal(t, map[string]any{"type": "message.received"}, resp["received"])
}

func TestWebhook_ValidationFailureIs500(t *testing.T) {
	h := newTestWebhookHandler(t, testWebhooksConfig(), nil)

	w, resp := post(h, envelope("message.received", map[string]any{"id": "AC1"}), nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error processing webhook", resp["error"])
	assert.NotEmpty(t, resp["timestamp"])
	assert.NotContains(t, w.Body.String(), "missing")
}

func TestWebhook_ProcessorError(t *testing.T) {
	p := &stubProcessor{err: errors.New("sink unavailable")}
	h, err := NewWebhookHandler(p, testWebhooksConfig(), logging.Discard())
	require.NoError(t, err)

	w, resp := post(h, envelope("message.sent", map[string]any{"id": "AC1"}), nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, resp["error"], "sink unavailable")

	deadline, ok := p.ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(30*time.Second), deadline, 5*time.Second)
}

func TestWebhook_Disabled(t *testing.T) {
	cfg := testWebhooksConfig()
	cfg.Enabled = false
	h := newTestWebhookHandler(t, cfg, nil)

	w, _ := post(h, envelope("message.sent", map[string]any{"id": "AC1"}), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWebhook_PayloadTooLarge(t *testing.T) {
	cfg := testWebhooksConfig()
	cfg.MaxPayloadSize = 64
	h := newTestWebhookHandler(t, cfg, nil)

	body := envelope("message.received", map[string]any{"id": "AC1", "body": strings.Repeat("x", 200)})
	w, resp := post(h, body, nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "Payload too large", resp["error"])
}

func TestWebhook_AllowedIPs(t *testing.T) {
	cfg := testWebhooksConfig()
	cfg.AllowedIPs = []string{"203.0.113.0/24"}
	h := newTestWebhookHandler(t, cfg, nil)

	body := envelope("message.sent", map[string]any{"id": "AC1", "from": "a", "to": "b"})

	w, _ := post(h, body, http.Header{"X-Forwarded-For": {"198.51.100.1"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = post(h, body, http.Header{"X-Forwarded-For": {"203.0.113.50"}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhook_Signature(t *testing.T) {
	cfg := testWebhooksConfig()
	cfg.VerifySignature = true
	cfg.SigningKey = testSigningKey
	cfg.SignatureTolerance = 5 * time.Minute
	h := newTestWebhookHandler(t, cfg, nil)

	key, err := signature.DecodeKey(testSigningKey)
	require.NoError(t, err)
	body := envelope("message.sent", map[string]any{"id": "AC1", "from": "a", "to": "b"})

	w, _ := post(h, body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tampered := signature.Sign(key, time.Now(), []byte(`{}`))
	w, _ = post(h, body, http.Header{"Openphone-Signature": {tampered}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	valid := signature.Sign(key, time.Now(), body)
	w, _ = post(h, body, http.Header{"Openphone-Signature": {valid}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewWebhookHandler_InvalidConfig(t *testing.T) {
	cfg := testWebhooksConfig()
	cfg.VerifySignature = true
	cfg.SigningKey = "%%%"
	_, err := NewWebhookHandler(&stubProcessor{}, cfg, logging.Discard())
	assert.ErrorIs(t, err, signature.ErrBadKey)

	cfg = testWebhooksConfig()
	cfg.AllowedIPs = []string{"not-an-ip"}
	_, err = NewWebhookHandler(&stubProcessor{}, cfg, logging.Discard())
	assert.Error(t, err)
}

func TestWebhook_PayloadLogIsRedacted(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Options{Level: slog.LevelDebug, Output: &buf})
	d := openphone.NewDispatcher(openphone.DispatcherConfig{Logger: logger})
	h, err := NewWebhookHandler(d, testWebhooksConfig(), logger)
	require.NoError(t, err)

	body := envelope("contact.updated", map[string]any{"id": "CT1", "apiToken": "tok-123"})
	w, _ := post(h, body, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, buf.String(), "tok-123")
	assert.Contains(t, buf.String(), logging.RedactedValue)
	assert.Contains(t, buf.String(), "OpenPhone webhook received")
}

type recordedStat struct{ eventType, outcome, ip string }

type statsSpy struct{ calls []recordedStat }

func (s *statsSpy) Record(eventType, outcome, ip string) {
	s.calls = append(s.calls, recordedStat{eventType, outcome, ip})
}

func TestWebhook_RecordsStats(t *testing.T) {
	h := newTestWebhookHandler(t, testWebhooksConfig(), &recordingSink{})
	spy := &statsSpy{}
	h.SetStats(spy)

	post(h, envelope("message.received", map[string]any{
		"id": "AC1", "from": "+15550001111", "to": "+15550002222", "body": "hello",
	}), nil)
	post(h, envelope("message.received", map[string]any{"id": "AC2"}), nil)
	post(h, envelope("message.deleted", map[string]any{"id": "AC3"}), nil)

	// Requests rejected before dispatch are not counted.
	post(h, []byte(`{"type":"message.received"}`), nil)

	require.Len(t, spy.calls, 3)
	assert.Equal(t, recordedStat{"message.received", "processed", "192.0.2.1"}, spy.calls[0])
	assert.Equal(t, "invalid", spy.calls[1].outcome)
	assert.Equal(t, recordedStat{"unknown", "unhandled", "192.0.2.1"}, spy.calls[2])
}

func newLoggedWebhookHandler(t *testing.T, cfg config.WebhooksConfig, sink openphone.Sink) (*WebhookHandler, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := logging.New(logging.Options{Level: slog.LevelDebug, Output: &buf})
	d := openphone.NewDispatcher(openphone.DispatcherConfig{Sink: sink, Logger: logger})
	h, err := NewWebhookHandler(d, cfg, logger)
	require.NoError(t, err)
	return h, &buf
}

func TestWebhook_LogsNeverCarryMessageContent(t *testing.T) {
	const (
		body  = "my secret pin is 4242"
		from  = "+15551234567"
		to    = "+15559876543"
		phone = "+15550001111"
	)

	tests := []struct {
		name       string
		payload    []byte
		sink       openphone.Sink
		wantStatus int
	}{
		{
			name: "processed",
			payload: envelope("message.received", map[string]any{
				"id": "msg_1", "from": from, "to": []any{to}, "body": body,
			}),
			wantStatus: http.StatusOK,
		},
		{
			name:       "contact",
			payload:    envelope("contact.created", map[string]any{"id": "CT1", "name": "Jane", "phone": phone}),
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing type",
			payload:    []byte(`{"data":{"object":{"id":"msg_1","from":"` + from + `","body":"` + body + `"}}}`),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "validation failure",
			payload:    envelope("message.received", map[string]any{"id": "msg_1", "to": to, "body": body}),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "sink failure",
			payload: envelope("message.received", map[string]any{
				"id": "msg_1", "from": from, "to": to, "body": body,
			}),
			sink: openphone.SinkFunc(func(context.Context, openphone.Record) error {
				return errors.New("database unavailable")
			}),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, buf := newLoggedWebhookHandler(t, testWebhooksConfig(), tt.sink)

			w, _ := post(h, tt.payload, nil)
			require.Equal(t, tt.wantStatus, w.Code)

			logs := buf.String()
			assert.NotEmpty(t, logs)
			for _, secret := range []string{body, from, to, phone} {
				assert.NotContains(t, logs, secret)
			}
		})
	}
}

func TestWebhook_PayloadMaskedWithConfiguredFields(t *testing.T) {
	cfg := testWebhooksConfig()
	cfg.MaskValues = []string{"body"}
	h, buf := newLoggedWebhookHandler(t, cfg, nil)

	w, _ := post(h, envelope("message.sent", map[string]any{"id": "msg_1", "from": "a", "to": "b", "body": "hello there"}), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, buf.String(), `"body":"he*******re"`)
	assert.NotContains(t, buf.String(), "hello there")
}

func TestWebhook_PayloadLogOff(t *testing.T) {
	cfg := testWebhooksConfig()
	cfg.LogPayload = false
	h, buf := newLoggedWebhookHandler(t, cfg, nil)

	w, _ := post(h, []byte(`{"data":{"object":{"id":"msg_1","note":"plain text"}}}`), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, buf.String(), "OpenPhone webhook missing required fields")
	assert.NotContains(t, buf.String(), `"payload"`)
	assert.NotContains(t, buf.String(), "plain text")
}

func TestWebhook_EnvelopeFieldTypes(t *testing.T) {
	h := newTestWebhookHandler(t, testWebhooksConfig(), nil)

	w, resp := post(h, []byte(`{"id":42,"type":"message.sent","data":{"object":{"id":"AC1","from":"a","to":"b"}}}`), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(42), resp["eventId"])

	w, resp = post(h, []byte(`{"id":"EV1","type":7,"data":{"object":{"id":"AC1"}}}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, `Invalid webhook envelope: "type" has the wrong type`, resp["error"])
}
