package openphone

import (
	"encoding/json"
	"time"
)

// Status is the outcome recorded in a Result.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusUnhandled Status = "unhandled"
)

// TimestampLayout renders timestamps as ISO-8601 UTC with milliseconds.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Result describes how a single event was handled. A processed Result names
// the entity it touched under IDField; an unhandled Result only carries the
// event type that had no handler.
type Result struct {
	Status      Status
	Action      string
	IDField     string
	EntityID    any
	EventType   EventType
	ProcessedAt time.Time
}

// MarshalJSON emits the entity id under its event-specific key, for example
// {"status":"processed","action":"message_stored","messageId":"msg_1","processedAt":"..."}.
func (r Result) MarshalJSON() ([]byte, error) {
	out := map[string]any{"status": r.Status}
	if r.Status == StatusUnhandled {
		out["eventType"] = r.EventType
		return json.Marshal(out)
	}
	if r.Action != "" {
		out["action"] = r.Action
	}
	if r.IDField != "" {
		out[r.IDField] = r.EntityID
	}
	if !r.ProcessedAt.IsZero() {
		out["processedAt"] = r.ProcessedAt.UTC().Format(TimestampLayout)
	}
	return json.Marshal(out)
}

// LogValue returns the fields worth logging for r.
func (r Result) LogValue() map[string]any {
	out := map[string]any{"status": string(r.Status)}
	if r.Action != "" {
		out["action"] = r.Action
	}
	if r.IDField != "" {
		out[r.IDField] = r.EntityID
	}
	if r.EventType != "" {
		out["event_type"] = string(r.EventType)
	}
	return out
}

func unhandledResult(eventType string) Result {
	return Result{Status: StatusUnhandled, EventType: EventType(eventType)}
}
