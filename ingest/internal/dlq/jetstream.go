package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/workwhile/automation/common/logging"
	"github.com/workwhile/automation/common/messaging"
	natsclient "github.com/workwhile/automation/common/messaging/nats"
	"github.com/workwhile/automation/ingest/internal/openphone"
)

// JetStreamQueue writes failed events to a NATS JetStream stream shared by
// every ingest instance.
type JetStreamQueue struct {
	js      *natsclient.JetStreamClient
	stream  jetstream.Stream
	logger  *logging.Logger
	written atomic.Uint64
}

// NewJetStreamQueue creates or updates the dead letter stream.
func NewJetStreamQueue(ctx context.Context, js *natsclient.JetStreamClient, logger *logging.Logger) (*JetStreamQueue, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream client is nil")
	}

	stream, err := js.CreateOrUpdateStream(ctx, natsclient.DeadLetterStream)
	if err != nil {
		return nil, fmt.Errorf("create dlq stream: %w", err)
	}
	logger.Info("dlq stream ready", "stream", natsclient.DeadLetterStream.Name)

	return &JetStreamQueue{js: js, stream: stream, logger: logger}, nil
}

// Write publishes rec to openphone.dlq.<event type>.
func (q *JetStreamQueue) Write(ctx context.Context, rec openphone.Record, err error, reason string) error {
	if q == nil {
		return nil
	}

	failed := FailedEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Record:    rec,
		Reason:    reason,
	}
	if err != nil {
		failed.Error = err.Error()
	}

	data, marshalErr := json.Marshal(failed)
	if marshalErr != nil {
		return fmt.Errorf("marshal dlq entry: %w", marshalErr)
	}

	_, pubErr := q.js.PublishSync(ctx, &messaging.Message{
		Subject: messaging.DeadLetterSubject(string(rec.EventType)),
		Data:    data,
		Metadata: map[string]string{
			messaging.HeaderEventType: string(rec.EventType),
			messaging.HeaderEventID:   failed.ID,
		},
	})
	if pubErr != nil {
		return fmt.Errorf("publish dlq entry: %w", pubErr)
	}

	q.written.Add(1)
	return nil
}

// Stats reports the stream state.
func (q *JetStreamQueue) Stats(ctx context.Context) map[string]any {
	if q == nil {
		return map[string]any{"enabled": false, "backend": "jetstream"}
	}

	stats := map[string]any{
		"enabled":       true,
		"backend":       "jetstream",
		"written_local": q.written.Load(),
	}

	info, err := q.stream.Info(ctx)
	if err != nil {
		q.logger.WarnContext(ctx, "failed to get dlq stream info", logging.Error(err))
		stats["error"] = err.Error()
		return stats
	}

	stats["total_messages"] = info.State.Msgs
	stats["total_bytes"] = info.State.Bytes
	stats["first_seq"] = info.State.FirstSeq
	stats["last_seq"] = info.State.LastSeq
	stats["consumer_count"] = info.State.Consumers
	return stats
}

// List reads up to limit events through an ephemeral consumer.
func (q *JetStreamQueue) List(ctx context.Context, limit int) ([]FailedEvent, error) {
	if q == nil {
		return nil, fmt.Errorf("dlq not enabled")
	}

	consumer, err := q.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{messaging.SubjectOpenPhoneDLQAll},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create list consumer: %w", err)
	}

	msgs, err := consumer.Fetch(listLimit(limit), jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	var events []FailedEvent
	for msg := range msgs.Messages() {
		var failed FailedEvent
		if err := json.Unmarshal(msg.Data(), &failed); err != nil {
			q.logger.WarnContext(ctx, "skipping unreadable dlq entry", logging.Error(err))
			continue
		}
		events = append(events, failed)
	}
	if err := msgs.Error(); err != nil {
		q.logger.WarnContext(ctx, "dlq fetch completed with error", logging.Error(err))
	}
	return events, nil
}

// Purge removes every event from the stream.
func (q *JetStreamQueue) Purge(ctx context.Context) error {
	if q == nil {
		return fmt.Errorf("dlq not enabled")
	}
	if err := q.stream.Purge(ctx); err != nil {
		return fmt.Errorf("purge dlq stream: %w", err)
	}
	q.logger.InfoContext(ctx, "dlq purged")
	return nil
}

// Ping checks the NATS connection.
func (q *JetStreamQueue) Ping(ctx context.Context) error {
	return q.js.Ping(ctx)
}

// Close closes the NATS connection.
func (q *JetStreamQueue) Close() error {
	return q.js.Close()
}
