package openphone

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/workwhile/automation/common/logging"
)

// Handler processes the data of one event type.
type Handler interface {
	Handle(ctx context.Context, data Payload) (Result, error)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, data Payload) (Result, error)

// Handle calls f(ctx, data).
func (f HandlerFunc) Handle(ctx context.Context, data Payload) (Result, error) {
	return f(ctx, data)
}

// handlerSpec describes one event handler: the action it reports, the key its
// entity id is returned under, and the masked summary it logs.
type handlerSpec struct {
	eventType EventType
	action    string
	idField   string
	logMsg    string
	summary   func(data Payload) ([]any, error)
}

var handlerSpecs = []handlerSpec{
	{
		eventType: MessageReceived,
		action:    "message_stored",
		idField:   "messageId",
		logMsg:    "message received",
		summary: func(p Payload) ([]any, error) {
			return []any{
				"message_id", p.ID(),
				"from", Mask(p["from"]),
				"to", Mask(p["to"]),
				"body", Mask(p["body"]),
				"timestamp", p["createdAt"],
			}, nil
		},
	},
	{
		eventType: MessageSent,
		action:    "status_updated",
		idField:   "messageId",
		logMsg:    "message sent",
		summary: func(p Payload) ([]any, error) {
			return []any{
				"message_id", p.ID(),
				"from", Mask(p["from"]),
				"to", Mask(p["to"]),
				"status", p["status"],
				"timestamp", p["createdAt"],
			}, nil
		},
	},
	{
		eventType: CallStarted,
		action:    "call_logged",
		idField:   "callId",
		logMsg:    "call started",
		summary: func(p Payload) ([]any, error) {
			return []any{
				"call_id", p.ID(),
				"from", Mask(p["from"]),
				"to", Mask(p["to"]),
				"direction", p["direction"],
				"timestamp", p["createdAt"],
			}, nil
		},
	},
	{
		eventType: CallEnded,
		action:    "call_completed",
		idField:   "callId",
		logMsg:    "call ended",
		summary: func(p Payload) ([]any, error) {
			return []any{
				"call_id", p.ID(),
				"duration", p["duration"],
				"status", p["status"],
				"timestamp", p["completedAt"],
			}, nil
		},
	},
	{
		eventType: ContactCreated,
		action:    "contact_stored",
		idField:   "contactId",
		logMsg:    "contact created",
		summary: func(p Payload) ([]any, error) {
			return []any{
				"contact_id", p.ID(),
				"name", p["name"],
				"phone", Mask(p["phone"]),
				"timestamp", p["createdAt"],
			}, nil
		},
	},
	{
		eventType: ContactUpdated,
		action:    "contact_updated",
		idField:   "contactId",
		logMsg:    "contact updated",
		summary: func(p Payload) ([]any, error) {
			fields, err := changedFields(p["changes"])
			if err != nil {
				return nil, err
			}
			return []any{
				"contact_id", p.ID(),
				"updated_fields", fields,
				"timestamp", p["updatedAt"],
			}, nil
		},
	},
}

// changedFields returns the sorted keys of a contact.updated changes object.
func changedFields(changes any) ([]string, error) {
	if changes == nil {
		return []string{}, nil
	}
	m, ok := asPayload(changes)
	if !ok {
		return nil, fmt.Errorf("changes must be an object, got %T: %w", changes, ErrMalformedInput)
	}
	fields := make([]string, 0, len(m))
	for k := range m {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields, nil
}

// NewHandlers builds the handler table for every known event type. Each handler
// logs a masked summary, delivers a Record to sink and reports the processed
// entity. A nil sink skips delivery; a nil now uses time.Now.
func NewHandlers(sink Sink, logger *logging.Logger, now func() time.Time) map[EventType]Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if now == nil {
		now = time.Now
	}
	handlers := make(map[EventType]Handler, len(handlerSpecs))
	for _, spec := range handlerSpecs {
		handlers[spec.eventType] = &eventHandler{
			spec:   spec,
			sink:   sink,
			logger: logger,
			now:    now,
		}
	}
	return handlers
}

type eventHandler struct {
	spec   handlerSpec
	sink   Sink
	logger *logging.Logger
	now    func() time.Time
}

func (h *eventHandler) Handle(ctx context.Context, data Payload) (Result, error) {
	if data == nil {
		return Result{}, fmt.Errorf("%s: nil payload: %w", h.spec.eventType, ErrMalformedInput)
	}

	attrs, err := h.spec.summary(data)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", h.spec.eventType, err)
	}
	h.logger.InfoContext(ctx, h.spec.logMsg, attrs...)

	if h.sink != nil {
		rec := Record{
			EventType:  h.spec.eventType,
			Action:     h.spec.action,
			EntityID:   data.ID(),
			Data:       data,
			ReceivedAt: h.now(),
		}
		if err := h.sink.Deliver(ctx, rec); err != nil {
			return Result{}, err
		}
	}

	return Result{
		Status:      StatusProcessed,
		Action:      h.spec.action,
		IDField:     h.spec.idField,
		EntityID:    data.ID(),
		EventType:   h.spec.eventType,
		ProcessedAt: h.now(),
	}, nil
}
