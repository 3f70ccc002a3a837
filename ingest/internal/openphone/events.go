// Package openphone validates OpenPhone webhook events and dispatches them to
// the handler registered for their event type.
package openphone

// EventType is the OpenPhone event type label carried in a webhook envelope.
type EventType string

// Event types delivered by OpenPhone webhooks.
const (
	MessageReceived EventType = "message.received"
	MessageSent     EventType = "message.sent"
	CallStarted     EventType = "call.started"
	CallEnded       EventType = "call.ended"
	ContactCreated  EventType = "contact.created"
	ContactUpdated  EventType = "contact.updated"
)

// KnownEventTypes returns the event types that have a dedicated handler,
// in a stable order.
func KnownEventTypes() []EventType {
	return []EventType{
		MessageReceived,
		MessageSent,
		CallStarted,
		CallEnded,
		ContactCreated,
		ContactUpdated,
	}
}

// IsKnown reports whether t has a dedicated handler.
func (t EventType) IsKnown() bool {
	for _, known := range KnownEventTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Payload is the decoded `data` object of a webhook event.
type Payload map[string]any

// ID returns the provider-assigned id of the event, or nil when absent.
func (p Payload) ID() any {
	if p == nil {
		return nil
	}
	return p["id"]
}

// String returns the value under key when it is a string.
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// asPayload converts a decoded JSON value to a Payload. Only JSON objects qualify.
func asPayload(data any) (Payload, bool) {
	switch v := data.(type) {
	case Payload:
		return v, v != nil
	case map[string]any:
		return Payload(v), v != nil
	default:
		return nil, false
	}
}

// eventID extracts the id of data for logging without assuming its shape.
func eventID(data any) any {
	p, ok := asPayload(data)
	if !ok {
		return nil
	}
	return p.ID()
}
