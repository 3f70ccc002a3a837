// Package eventstats keeps Redis-backed webhook traffic statistics per event
// type, shared by every ingest instance.
//
// Redis key structure:
//
//	webhook:stats:{event_type}               - hash with totals, per-outcome counts and last sender
//	webhook:hourly:{event_type}:{YYYYMMDDHH} - event count for one hour (expires 48h)
//	webhook:daily:{event_type}:{YYYYMMDD}    - event count for one day (expires 7d)
//	webhook:ips:{event_type}:{YYYYMMDD}      - set of sender IPs for one day (expires 7d)
//	webhook:instances                        - hash of ingest instance -> last flush
package eventstats

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix    = "webhook:"
	statsPrefix  = keyPrefix + "stats:"
	instancesKey = keyPrefix + "instances"

	hourLayout = "2006010215"
	dayLayout  = "20060102"

	hourlyTTL = 48 * time.Hour
	dailyTTL  = 7 * 24 * time.Hour
)

// Stats summarizes traffic for one event type.
type Stats struct {
	EventType      string           `json:"eventType"`
	LastReceivedAt *time.Time       `json:"lastReceivedAt,omitempty"`
	LastSourceIP   string           `json:"lastSourceIp,omitempty"`
	Total          int64            `json:"total"`
	Outcomes       map[string]int64 `json:"outcomes"`
	LastHour       int64            `json:"lastHour"`
	Last24h        int64            `json:"last24h"`
	UniqueIPsToday int64            `json:"uniqueIpsToday"`
}

// Client records and reads statistics.
type Client struct {
	redis      *redis.Client
	instanceID string
	now        func() time.Time
}

// NewClient connects to redisURL. instanceID should be unique per ingest
// instance, e.g. the hostname or pod name.
func NewClient(redisURL, instanceID string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewClientFromRedis(client, instanceID), nil
}

// NewClientFromRedis wraps an existing connection.
func NewClientFromRedis(client *redis.Client, instanceID string) *Client {
	return &Client{redis: client, instanceID: instanceID, now: time.Now}
}

// BatchUpdate accumulates events of one type between flushes.
type BatchUpdate struct {
	EventType string
	Count     int64
	Outcomes  map[string]int64
	ClientIPs map[string]struct{}
	LastIP    string
}

func NewBatchUpdate(eventType string) *BatchUpdate {
	return &BatchUpdate{
		EventType: eventType,
		Outcomes:  make(map[string]int64),
		ClientIPs: make(map[string]struct{}),
	}
}

// Add counts one event.
func (b *BatchUpdate) Add(outcome, clientIP string) {
	b.Count++
	b.Outcomes[outcome]++
	if clientIP != "" {
		b.ClientIPs[clientIP] = struct{}{}
		b.LastIP = clientIP
	}
}

func (b *BatchUpdate) merge(o *BatchUpdate) {
	b.Count += o.Count
	for k, v := range o.Outcomes {
		b.Outcomes[k] += v
	}
	for ip := range o.ClientIPs {
		b.ClientIPs[ip] = struct{}{}
	}
	if o.LastIP != "" {
		b.LastIP = o.LastIP
	}
}

// FlushBatch writes batch to Redis in one pipeline.
func (c *Client) FlushBatch(ctx context.Context, batch *BatchUpdate) error {
	if batch.Count == 0 {
		return nil
	}

	now := c.now()
	hourKey := now.Format(hourLayout)
	dayKey := now.Format(dayLayout)
	nowUnix := strconv.FormatInt(now.Unix(), 10)

	pipe := c.redis.Pipeline()

	statsKey := statsPrefix + batch.EventType
	fields := map[string]any{"last_received_at": nowUnix}
	if batch.LastIP != "" {
		fields["last_source_ip"] = batch.LastIP
	}
	pipe.HSet(ctx, statsKey, fields)
	pipe.HIncrBy(ctx, statsKey, "total", batch.Count)
	for outcome, n := range batch.Outcomes {
		pipe.HIncrBy(ctx, statsKey, "outcome:"+outcome, n)
	}

	hourlyKey := fmt.Sprintf("%shourly:%s:%s", keyPrefix, batch.EventType, hourKey)
	pipe.IncrBy(ctx, hourlyKey, batch.Count)
	pipe.Expire(ctx, hourlyKey, hourlyTTL)

	dailyKey := fmt.Sprintf("%sdaily:%s:%s", keyPrefix, batch.EventType, dayKey)
	pipe.IncrBy(ctx, dailyKey, batch.Count)
	pipe.Expire(ctx, dailyKey, dailyTTL)

	if len(batch.ClientIPs) > 0 {
		ipsKey := fmt.Sprintf("%sips:%s:%s", keyPrefix, batch.EventType, dayKey)
		ips := make([]any, 0, len(batch.ClientIPs))
		for ip := range batch.ClientIPs {
			ips = append(ips, ip)
		}
		pipe.SAdd(ctx, ipsKey, ips...)
		pipe.Expire(ctx, ipsKey, dailyTTL)
	}

	pipe.HSet(ctx, instancesKey, c.instanceID, nowUnix)
	pipe.Expire(ctx, instancesKey, 24*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to flush batch: %w", err)
	}
	return nil
}

// GetStats reads the statistics of one event type.
func (c *Client) GetStats(ctx context.Context, eventType string) (*Stats, error) {
	now := c.now()

	pipe := c.redis.Pipeline()
	statsCmd := pipe.HGetAll(ctx, statsPrefix+eventType)

	hourly := make([]*redis.StringCmd, 24)
	for i := range hourly {
		t := now.Add(-time.Duration(i) * time.Hour)
		hourly[i] = pipe.Get(ctx, fmt.Sprintf("%shourly:%s:%s", keyPrefix, eventType, t.Format(hourLayout)))
	}

	uniqueIPsCmd := pipe.SCard(ctx, fmt.Sprintf("%sips:%s:%s", keyPrefix, eventType, now.Format(dayLayout)))

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	stats := &Stats{EventType: eventType, Outcomes: make(map[string]int64)}

	if fields, err := statsCmd.Result(); err == nil {
		for k, v := range fields {
			switch {
			case k == "last_received_at":
				if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
					t := time.Unix(unix, 0).UTC()
					stats.LastReceivedAt = &t
				}
			case k == "last_source_ip":
				stats.LastSourceIP = v
			case k == "total":
				stats.Total, _ = strconv.ParseInt(v, 10, 64)
			case strings.HasPrefix(k, "outcome:"):
				n, _ := strconv.ParseInt(v, 10, 64)
				stats.Outcomes[strings.TrimPrefix(k, "outcome:")] = n
			}
		}
	}

	// hourly[0] is the current hour.
	if n, err := hourly[0].Int64(); err == nil {
		stats.LastHour = n
	}
	for _, cmd := range hourly {
		if n, err := cmd.Int64(); err == nil {
			stats.Last24h += n
		}
	}

	if n, err := uniqueIPsCmd.Result(); err == nil {
		stats.UniqueIPsToday = n
	}
	return stats, nil
}

// EventTypes returns every event type with recorded statistics, sorted.
func (c *Client) EventTypes(ctx context.Context) ([]string, error) {
	var types []string
	iter := c.redis.Scan(ctx, 0, statsPrefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		types = append(types, strings.TrimPrefix(iter.Val(), statsPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan event types: %w", err)
	}
	sort.Strings(types)
	return types, nil
}

// All returns statistics for every recorded event type.
func (c *Client) All(ctx context.Context) ([]*Stats, error) {
	types, err := c.EventTypes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Stats, 0, len(types))
	for _, t := range types {
		s, err := c.GetStats(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Instances returns each ingest instance with the time of its last flush.
func (c *Client) Instances(ctx context.Context) (map[string]string, error) {
	raw, err := c.redis.HGetAll(ctx, instancesKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for id, v := range raw {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			out[id] = time.Unix(unix, 0).UTC().Format(time.RFC3339)
		}
	}
	return out, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.redis.Close()
}
