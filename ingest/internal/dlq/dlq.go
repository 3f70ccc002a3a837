// Package dlq keeps accepted OpenPhone events whose sink delivery failed so
// they can be inspected and replayed.
package dlq

import (
	"context"
	"time"

	"github.com/workwhile/automation/ingest/internal/openphone"
)

// ReasonSinkFailure marks events a sink refused or could not reach.
const ReasonSinkFailure = "sink_failure"

// FailedEvent is one dead-lettered record.
type FailedEvent struct {
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	Record    openphone.Record `json:"record"`
	Error     string           `json:"error"`
	Reason    string           `json:"reason"`
}

// Writer records failed deliveries.
type Writer interface {
	Write(ctx context.Context, rec openphone.Record, err error, reason string) error
}

// Store is a Writer that can also be read back and emptied.
type Store interface {
	Writer
	Stats(ctx context.Context) map[string]any
	List(ctx context.Context, limit int) ([]FailedEvent, error)
	Purge(ctx context.Context) error
}

const defaultListLimit = 100

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
