package database

import (
	"context"
	"time"
)

// Standard timeout durations for database operations
const (
	DefaultQueryTimeout = 5 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

// Timeouts bounds individual database operations. Zero fields fall back to
// the defaults above.
type Timeouts struct {
	Query time.Duration
	Write time.Duration
}

// QueryContext derives a context bounded by the query timeout.
// Use this for SELECT queries and pings.
func (t Timeouts) QueryContext(parent context.Context) (context.Context, context.CancelFunc) {
	d := t.Query
	if d <= 0 {
		d = DefaultQueryTimeout
	}
	return context.WithTimeout(parent, d)
}

// WriteContext derives a context bounded by the write timeout.
// Use this for INSERT, UPDATE, DELETE operations.
func (t Timeouts) WriteContext(parent context.Context) (context.Context, context.CancelFunc) {
	d := t.Write
	if d <= 0 {
		d = DefaultWriteTimeout
	}
	return context.WithTimeout(parent, d)
}
