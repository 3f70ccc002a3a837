package openphone

import (
	"context"
	"time"
)

// Record is what a handler hands to its Sink once an event has been accepted.
type Record struct {
	EventType  EventType `json:"eventType"`
	Action     string    `json:"action"`
	EntityID   any       `json:"entityId"`
	Data       Payload   `json:"data"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Sink performs the business action for an accepted event: storing it,
// publishing it or forwarding it elsewhere. Implementations must be safe for
// concurrent use.
type Sink interface {
	Deliver(ctx context.Context, rec Record) error
}

// SinkFunc adapts an ordinary function to the Sink interface.
type SinkFunc func(ctx context.Context, rec Record) error

// Deliver calls f(ctx, rec).
func (f SinkFunc) Deliver(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// Pinger is implemented by sinks whose backend can be health checked.
type Pinger interface {
	Ping(ctx context.Context) error
}
