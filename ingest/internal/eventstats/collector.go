package eventstats

import (
	"context"
	"sync"
	"time"

	"github.com/workwhile/automation/common/logging"
)

// Collector buffers Record calls and flushes them to Redis periodically so
// the webhook path never waits on Redis. Safe for concurrent use.
type Collector struct {
	client        *Client
	flushInterval time.Duration
	logger        *logging.Logger

	mu      sync.Mutex
	batches map[string]*BatchUpdate

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCollector starts the background flush loop.
func NewCollector(client *Client, flushInterval time.Duration, logger *logging.Logger) *Collector {
	if logger == nil {
		logger = logging.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Collector{
		client:        client,
		flushInterval: flushInterval,
		logger:        logger,
		batches:       make(map[string]*BatchUpdate),
		ctx:           ctx,
		cancel:        cancel,
	}

	c.wg.Add(1)
	go c.flushLoop()
	return c
}

// Record counts one dispatched event.
func (c *Collector) Record(eventType, outcome, clientIP string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch, ok := c.batches[eventType]
	if !ok {
		batch = NewBatchUpdate(eventType)
		c.batches[eventType] = batch
	}
	batch.Add(outcome, clientIP)
}

func (c *Collector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.flush()
			return
		case <-ticker.C:
			c.flush()
		}
	}
}

func (c *Collector) flush() {
	c.mu.Lock()
	batches := c.batches
	c.batches = make(map[string]*BatchUpdate)
	c.mu.Unlock()

	if len(batches) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var flushed, events int64
	for _, batch := range batches {
		if err := c.client.FlushBatch(ctx, batch); err != nil {
			c.logger.Error("failed to flush webhook stats",
				logging.EventType(batch.EventType), "event_count", batch.Count, logging.Error(err))

			// Keep the counts for the next attempt.
			c.mu.Lock()
			if existing, ok := c.batches[batch.EventType]; ok {
				existing.merge(batch)
			} else {
				c.batches[batch.EventType] = batch
			}
			c.mu.Unlock()
			continue
		}
		flushed++
		events += batch.Count
	}

	if flushed > 0 {
		c.logger.Debug("flushed webhook stats", "event_types", flushed, "total_events", events)
	}
}

// FlushNow flushes immediately.
func (c *Collector) FlushNow() {
	c.flush()
}

// Stop ends the flush loop after a final flush.
func (c *Collector) Stop() {
	c.cancel()
	c.wg.Wait()
}

// Pending returns unflushed counts per event type.
func (c *Collector) Pending() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]int64, len(c.batches))
	for t, b := range c.batches {
		out[t] = b.Count
	}
	return out
}
