package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/workwhile/automation/common/messaging"
	"github.com/workwhile/automation/common/middleware"
	"github.com/workwhile/automation/ingest/internal/openphone"
)

// NATS publishes each record as JSON on openphone.events.<type>.
type NATS struct {
	pub messaging.Publisher
}

func NewNATS(pub messaging.Publisher) *NATS {
	return &NATS{pub: pub}
}

func (s *NATS) Deliver(ctx context.Context, rec openphone.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	msg := &messaging.Message{
		Subject: messaging.EventSubject(string(rec.EventType)),
		Data:    data,
		Metadata: map[string]string{
			messaging.HeaderEventType: string(rec.EventType),
			messaging.HeaderEventID:   entityIDString(rec.EntityID),
		},
	}
	if reqID := middleware.GetRequestID(ctx); reqID != "" {
		msg.Metadata[messaging.HeaderRequestID] = reqID
	}

	if err := s.pub.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", msg.Subject, err)
	}
	return nil
}

func (s *NATS) Ping(ctx context.Context) error {
	if p, ok := s.pub.(openphone.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *NATS) Close() error {
	return s.pub.Close()
}
