package seeder

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/workwhile/automation/cli/internal/client"
)

// Sender posts one envelope. *client.WebhookClient implements it.
type Sender interface {
	Send(ctx context.Context, env client.Envelope) (*client.Response, error)
}

type Options struct {
	Count    int
	Types    []string
	Interval time.Duration
	// InvalidRatio is the share of events sent without their id.
	InvalidRatio float64
}

// Summary counts outcomes by label: the result status for accepted events,
// "http <code>" for rejected ones and "error" for transport failures.
type Summary struct {
	Sent     int
	Outcomes map[string]int
	ByType   map[string]int
	Elapsed  time.Duration
}

// Labels returns the outcome labels in sorted order.
func (s *Summary) Labels() []string {
	labels := make([]string, 0, len(s.Outcomes))
	for l := range s.Outcomes {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

type Runner struct {
	sender    Sender
	generator *Generator
	progress  func(i int, eventType, outcome string)
}

func NewRunner(sender Sender, generator *Generator) *Runner {
	return &Runner{sender: sender, generator: generator}
}

// OnProgress registers a callback invoked after each send.
func (r *Runner) OnProgress(fn func(i int, eventType, outcome string)) {
	r.progress = fn
}

// Run sends opts.Count events and stops early when ctx is done.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	types := opts.Types
	if len(types) == 0 {
		types = EventTypes
	}
	if opts.Count <= 0 {
		return nil, fmt.Errorf("count must be positive")
	}

	summary := &Summary{Outcomes: map[string]int{}, ByType: map[string]int{}}
	start := time.Now()

	for i := 0; i < opts.Count; i++ {
		if i > 0 && opts.Interval > 0 {
			select {
			case <-ctx.Done():
				summary.Elapsed = time.Since(start)
				return summary, ctx.Err()
			case <-time.After(opts.Interval):
			}
		}
		if err := ctx.Err(); err != nil {
			summary.Elapsed = time.Since(start)
			return summary, err
		}

		eventType := r.generator.Pick(types)
		object := r.generator.Object(eventType)
		if r.generator.Chance(opts.InvalidRatio) {
			delete(object, "id")
		}

		outcome := r.send(ctx, client.NewEnvelope(eventType, object, time.Now()))
		summary.Sent++
		summary.ByType[eventType]++
		summary.Outcomes[outcome]++

		if r.progress != nil {
			r.progress(i, eventType, outcome)
		}
	}

	summary.Elapsed = time.Since(start)
	return summary, nil
}

func (r *Runner) send(ctx context.Context, env client.Envelope) string {
	resp, err := r.sender.Send(ctx, env)
	if err != nil {
		return "error"
	}
	if !resp.OK() {
		return fmt.Sprintf("http %d", resp.StatusCode)
	}
	if result, ok := resp.Body["result"].(map[string]any); ok {
		if status, ok := result["status"].(string); ok {
			return status
		}
	}
	return "ok"
}
