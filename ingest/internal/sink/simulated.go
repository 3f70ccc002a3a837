package sink

import (
	"context"
	"time"

	"github.com/workwhile/automation/common/logging"
	"github.com/workwhile/automation/ingest/internal/openphone"
)

// Simulated stands in for a real backend. Each delivery waits Delay and is
// logged at debug level.
type Simulated struct {
	Delay  time.Duration
	Logger *logging.Logger
}

func (s *Simulated) Deliver(ctx context.Context, rec openphone.Record) error {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if s.Logger != nil {
		s.Logger.DebugContext(ctx, "simulated delivery",
			logging.EventType(string(rec.EventType)),
			logging.EventID(rec.EntityID),
			"action", rec.Action)
	}
	return nil
}
