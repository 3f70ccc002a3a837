package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/workwhile/automation/ingest/internal/openphone"
)

// DefaultPath is used when no directory is configured.
const DefaultPath = "/var/lib/workwhile/dlq"

// Queue stores failed events as one JSON file each. It is local to a single
// instance; use JetStreamQueue when several instances share a DLQ.
type Queue struct {
	dir     string
	mu      sync.Mutex
	written atomic.Uint64
	now     func() time.Time
}

// NewQueue creates dir if needed and returns a Queue writing into it.
func NewQueue(dir string) (*Queue, error) {
	if dir == "" {
		dir = DefaultPath
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create dlq directory: %w", err)
	}
	return &Queue{dir: dir, now: time.Now}, nil
}

// Write stores rec with the delivery error. A nil Queue discards it.
func (q *Queue) Write(ctx context.Context, rec openphone.Record, err error, reason string) error {
	if q == nil {
		return nil
	}

	now := q.now().UTC()
	failed := FailedEvent{
		ID:        uuid.NewString(),
		Timestamp: now,
		Record:    rec,
		Reason:    reason,
	}
	if err != nil {
		failed.Error = err.Error()
	}

	data, marshalErr := json.MarshalIndent(failed, "", "  ")
	if marshalErr != nil {
		return fmt.Errorf("marshal dlq entry: %w", marshalErr)
	}

	// Zero-padded nanoseconds keep lexical and chronological order equal.
	name := fmt.Sprintf("%020d_%s.json", now.UnixNano(), failed.ID)

	q.mu.Lock()
	defer q.mu.Unlock()
	if err := os.WriteFile(filepath.Join(q.dir, name), data, 0o640); err != nil {
		return fmt.Errorf("write dlq entry: %w", err)
	}
	q.written.Add(1)
	return nil
}

func (q *Queue) files() ([]string, error) {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Stats reports the queue depth.
func (q *Queue) Stats(ctx context.Context) map[string]any {
	if q == nil {
		return map[string]any{"enabled": false, "backend": "file"}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	stats := map[string]any{
		"enabled":       true,
		"backend":       "file",
		"path":          q.dir,
		"written_local": q.written.Load(),
	}
	names, err := q.files()
	if err != nil {
		stats["error"] = err.Error()
		return stats
	}
	stats["total_messages"] = len(names)
	return stats
}

// List returns up to limit events, oldest first.
func (q *Queue) List(ctx context.Context, limit int) ([]FailedEvent, error) {
	if q == nil {
		return nil, fmt.Errorf("dlq not enabled")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	names, err := q.files()
	if err != nil {
		return nil, fmt.Errorf("read dlq directory: %w", err)
	}
	if limit = listLimit(limit); len(names) > limit {
		names = names[:limit]
	}

	events := make([]FailedEvent, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(q.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read dlq entry %s: %w", name, err)
		}
		var failed FailedEvent
		if err := json.Unmarshal(data, &failed); err != nil {
			continue
		}
		events = append(events, failed)
	}
	return events, nil
}

// Delete removes the event with the given ID.
func (q *Queue) Delete(ctx context.Context, id string) error {
	if q == nil {
		return fmt.Errorf("dlq not enabled")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	names, err := q.files()
	if err != nil {
		return err
	}
	for _, name := range names {
		if strings.HasSuffix(name, "_"+id+".json") {
			return os.Remove(filepath.Join(q.dir, name))
		}
	}
	return fmt.Errorf("dlq entry %s not found", id)
}

// Purge removes every event.
func (q *Queue) Purge(ctx context.Context) error {
	if q == nil {
		return fmt.Errorf("dlq not enabled")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	names, err := q.files()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(q.dir, name)); err != nil {
			return fmt.Errorf("purge dlq: %w", err)
		}
	}
	return nil
}
