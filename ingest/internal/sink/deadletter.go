package sink

import (
	"context"
	"io"
	"time"

	"github.com/workwhile/automation/common/logging"
	"github.com/workwhile/automation/ingest/internal/dlq"
	"github.com/workwhile/automation/ingest/internal/metrics"
	"github.com/workwhile/automation/ingest/internal/openphone"
)

const deadLetterTimeout = 5 * time.Second

// DeadLetter writes records next fails to deliver to a dead letter queue.
// The delivery error is still returned to the caller.
type DeadLetter struct {
	next   openphone.Sink
	queue  dlq.Writer
	logger *logging.Logger
}

func WithDeadLetter(next openphone.Sink, queue dlq.Writer, logger *logging.Logger) *DeadLetter {
	return &DeadLetter{next: next, queue: queue, logger: logger}
}

func (d *DeadLetter) Deliver(ctx context.Context, rec openphone.Record) error {
	err := d.next.Deliver(ctx, rec)
	if err == nil {
		return nil
	}

	// The request context is usually the one that just expired.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deadLetterTimeout)
	defer cancel()

	if werr := d.queue.Write(wctx, rec, err, dlq.ReasonSinkFailure); werr != nil {
		metrics.DLQWritesTotal.WithLabelValues("error").Inc()
		d.logger.ErrorContext(ctx, "failed to dead-letter event",
			logging.EventType(string(rec.EventType)), logging.Error(werr))
	} else {
		metrics.DLQWritesTotal.WithLabelValues("success").Inc()
		d.logger.WarnContext(ctx, "event dead-lettered",
			logging.EventType(string(rec.EventType)), logging.EventID(rec.EntityID), logging.Error(err))
	}
	return err
}

func (d *DeadLetter) Ping(ctx context.Context) error {
	if p, ok := d.next.(openphone.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (d *DeadLetter) Close() error {
	if c, ok := d.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
