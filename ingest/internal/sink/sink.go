// Package sink delivers accepted OpenPhone events to the configured backends.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/workwhile/automation/ingest/internal/metrics"
	"github.com/workwhile/automation/ingest/internal/openphone"
)

// Instrumented wraps a backend with delivery metrics and a name used in
// errors and health checks.
type Instrumented struct {
	name string
	next openphone.Sink
}

// Instrument names next and records its deliveries.
func Instrument(name string, next openphone.Sink) *Instrumented {
	return &Instrumented{name: name, next: next}
}

// Name returns the backend name.
func (s *Instrumented) Name() string {
	return s.name
}

func (s *Instrumented) Deliver(ctx context.Context, rec openphone.Record) error {
	start := time.Now()
	err := s.next.Deliver(ctx, rec)
	metrics.SinkDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SinkDeliveriesTotal.WithLabelValues(s.name, "error").Inc()
		return fmt.Errorf("%s sink: %w", s.name, err)
	}
	metrics.SinkDeliveriesTotal.WithLabelValues(s.name, "success").Inc()
	return nil
}

// Ping checks the wrapped backend. Backends without a health check are
// always healthy.
func (s *Instrumented) Ping(ctx context.Context) error {
	if p, ok := s.next.(openphone.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *Instrumented) Close() error {
	if c, ok := s.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Fanout delivers each record to every sink in order and stops at the first
// failure.
type Fanout []openphone.Sink

func (f Fanout) Deliver(ctx context.Context, rec openphone.Record) error {
	for _, s := range f {
		if err := s.Deliver(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks every sink that supports it and joins the failures.
func (f Fanout) Ping(ctx context.Context) error {
	var errs []error
	for _, s := range f {
		if p, ok := s.(openphone.Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink in reverse order.
func (f Fanout) Close() error {
	var errs []error
	for i := len(f) - 1; i >= 0; i-- {
		if c, ok := f[i].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func entityIDString(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
