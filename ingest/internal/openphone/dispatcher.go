package openphone

import (
	"context"
	"time"

	"github.com/workwhile/automation/common/logging"
)

// DispatcherConfig holds everything a Dispatcher needs. It is read once by
// NewDispatcher.
type DispatcherConfig struct {
	// Rules overrides the required-field rules. Nil selects DefaultRules.
	Rules Rules
	// Handlers overrides the handler table. Nil builds the default table
	// around Sink.
	Handlers map[EventType]Handler
	// Sink receives accepted events when the default handler table is used.
	Sink   Sink
	Logger *logging.Logger
	Now    func() time.Time
}

// Dispatcher validates webhook event data and routes it to the handler for
// its event type. It keeps no per-call state and is safe for concurrent use.
type Dispatcher struct {
	validator *Validator
	handlers  map[EventType]Handler
	logger    *logging.Logger
	now       func() time.Time
}

// NewDispatcher creates a Dispatcher from cfg.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	handlers := cfg.Handlers
	if handlers == nil {
		handlers = NewHandlers(cfg.Sink, logger, now)
	}
	table := make(map[EventType]Handler, len(handlers))
	for t, h := range handlers {
		if h != nil {
			table[t] = h
		}
	}

	return &Dispatcher{
		validator: NewValidator(cfg.Rules),
		handlers:  table,
		logger:    logger,
		now:       now,
	}
}

// Validator returns the validator the dispatcher checks events with.
func (d *Dispatcher) Validator() *Validator {
	return d.validator
}

// Process validates data and hands it to the handler registered for
// eventType. Unknown event types are not an error: they yield an unhandled
// Result. Validation failures return a *ValidationError; handler errors are
// returned as they are.
func (d *Dispatcher) Process(ctx context.Context, data any, eventType string) (Result, error) {
	log := d.logger.With(logging.EventType(eventType), logging.EventID(eventID(data)))
	log.InfoContext(ctx, "processing webhook event",
		"timestamp", d.now().UTC().Format(TimestampLayout))

	if missing := d.validator.Missing(data, eventType); len(missing) > 0 {
		return Result{}, d.fail(ctx, log, &ValidationError{EventType: eventType, Missing: missing})
	}
	payload, _ := asPayload(data)

	handler, ok := d.handlers[EventType(eventType)]
	if !ok {
		log.WarnContext(ctx, "unhandled webhook event type")
		return unhandledResult(eventType), nil
	}

	result, err := handler.Handle(ctx, payload)
	if err != nil {
		return Result{}, d.fail(ctx, log, err)
	}

	log.InfoContext(ctx, "webhook event processed", "result", result.LogValue())
	return result, nil
}

func (d *Dispatcher) fail(ctx context.Context, log *logging.Logger, err error) error {
	log.ErrorContext(ctx, "error processing webhook event", logging.Error(err))
	return err
}
