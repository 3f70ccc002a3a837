package sink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workwhile/automation/common/logging"
	"github.com/workwhile/automation/common/messaging"
	"github.com/workwhile/automation/common/middleware"
	"github.com/workwhile/automation/ingest/internal/config"
	"github.com/workwhile/automation/ingest/internal/openphone"
)

func testRecord() openphone.Record {
	return openphone.Record{
		EventType:  openphone.MessageReceived,
		Action:     "message_logged",
		EntityID:   "AC123",
		Data:       openphone.Payload{"id": "AC123", "body": "hi"},
		ReceivedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

type fakeSink struct {
	err     error
	pingErr error
	calls   int
	closed  bool
}

func (f *fakeSink) Deliver(context.Context, openphone.Record) error {
	f.calls++
	return f.err
}

func (f *fakeSink) Ping(context.Context) error { return f.pingErr }

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func TestFanout_DeliverStopsAtFirstError(t *testing.T) {
	first := &fakeSink{}
	failing := &fakeSink{err: errors.New("boom")}
	last := &fakeSink{}

	err := Fanout{first, failing, last}.Deliver(context.Background(), testRecord())

	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 0, last.calls)
}

func TestFanout_PingAndClose(t *testing.T) {
	healthy := &fakeSink{}
	down := &fakeSink{pingErr: errors.New("down")}
	noPing := openphone.SinkFunc(func(context.Context, openphone.Record) error { return nil })

	f := Fanout{healthy, noPing, down}
	assert.ErrorContains(t, f.Ping(context.Background()), "down")
	assert.NoError(t, Fanout{healthy, noPing}.Ping(context.Background()))

	require.NoError(t, f.Close())
	assert.True(t, healthy.closed)
	assert.True(t, down.closed)
}

func TestInstrument(t *testing.T) {
	inner := &fakeSink{}
	s := Instrument("fake", inner)

	assert.Equal(t, "fake", s.Name())
	require.NoError(t, s.Deliver(context.Background(), testRecord()))
	assert.Equal(t, 1, inner.calls)

	inner.err = errors.New("refused")
	err := s.Deliver(context.Background(), testRecord())
	assert.EqualError(t, err, "fake sink: refused")
	assert.ErrorIs(t, err, inner.err)

	inner.pingErr = errors.New("unreachable")
	assert.EqualError(t, s.Ping(context.Background()), "unreachable")

	require.NoError(t, s.Close())
	assert.True(t, inner.closed)
}

func TestInstrument_PlainSink(t *testing.T) {
	s := Instrument("func", openphone.SinkFunc(func(context.Context, openphone.Record) error { return nil }))
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
}

func TestSimulated(t *testing.T) {
	s := &Simulated{Delay: 5 * time.Millisecond, Logger: logging.Discard()}
	assert.NoError(t, s.Deliver(context.Background(), testRecord()))
}

func TestSimulated_ContextCancelled(t *testing.T) {
	s := &Simulated{Delay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Deliver(ctx, testRecord()), context.Canceled)
}

type fakePublisher struct {
	mu     sync.Mutex
	msgs   []*messaging.Message
	err    error
	closed bool
}

func (p *fakePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	return p.PublishMsg(ctx, &messaging.Message{Subject: subject, Data: data})
}

func (p *fakePublisher) PublishMsg(_ context.Context, msg *messaging.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func TestNATS_Deliver(t *testing.T) {
	pub := &fakePublisher{}
	s := NewNATS(pub)

	ctx := middleware.WithRequestID(context.Background(), "req-42")
	require.NoError(t, s.Deliver(ctx, testRecord()))

	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, "openphone.events.message.received", msg.Subject)
	assert.Equal(t, "message.received", msg.Metadata[messaging.HeaderEventType])
	assert.Equal(t, "AC123", msg.Metadata[messaging.HeaderEventID])
	assert.Equal(t, "req-42", msg.Metadata[messaging.HeaderRequestID])

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "message_logged", got["action"])
	assert.Equal(t, "AC123", got["entityId"])
	assert.Equal(t, "hi", got["data"].(map[string]any)["body"])

	// Fake publisher has no Ping.
	assert.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	assert.True(t, pub.closed)
}

func TestNATS_DeliverError(t *testing.T) {
	s := NewNATS(&fakePublisher{err: errors.New("no responders")})

	err := s.Deliver(context.Background(), testRecord())
	assert.ErrorContains(t, err, "openphone.events.message.received")
	assert.ErrorContains(t, err, "no responders")
}

func TestEntityIDString(t *testing.T) {
	assert.Equal(t, "", entityIDString(nil))
	assert.Equal(t, "AC1", entityIDString("AC1"))
	assert.Equal(t, "42", entityIDString(float64(42)))
}

func TestBuild_Simulated(t *testing.T) {
	cfg := &config.Config{Sink: config.SinkConfig{
		Backends:       []string{config.SinkSimulated},
		SimulatedDelay: time.Millisecond,
	}}

	set, err := Build(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer set.Close()

	require.Len(t, set.Fanout, 1)
	assert.Empty(t, set.Checks)
	assert.NoError(t, set.Deliver(context.Background(), testRecord()))
}

func TestBuild_Unreachable(t *testing.T) {
	cfg := &config.Config{
		Sink: config.SinkConfig{Backends: []string{config.SinkSimulated, config.SinkNATS}},
		NATS: config.NATSConfig{URL: "nats://127.0.0.1:1", Name: "test"},
	}

	_, err := Build(context.Background(), cfg, logging.Discard())
	assert.ErrorContains(t, err, "sink nats")
}

func TestBuild_Empty(t *testing.T) {
	set, err := Build(context.Background(), &config.Config{}, logging.Discard())
	require.NoError(t, err)
	assert.Empty(t, set.Fanout)
	assert.NoError(t, set.Deliver(context.Background(), testRecord()))
}
